package api

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"cvforge/internal/database"
)

func TestServeFileOnlyExposesPublicPrefixes(t *testing.T) {
	env := newTestEnv(t)
	env.objects.objects["images/1/photo-a.png"] = pngBytes
	env.objects.objects["final-documents/1/x.pdf"] = []byte("%PDF-")

	w := env.do(http.MethodGet, "/v1/files/images/1/photo-a.png", nil, "", "")
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	requireStatus(t, env.do(http.MethodGet, "/v1/files/final-documents/1/x.pdf", nil, "", ""), http.StatusNotFound)
	requireStatus(t, env.do(http.MethodGet, "/v1/files/images/1/missing.png", nil, "", ""), http.StatusNotFound)
}

func TestProxyPDFRejectsForeignURLs(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(env.createUser("alice", false))
	env.objects.objects["images/1/photo-a.png"] = pngBytes

	for _, raw := range []string{
		"https://evil.example.com/v1/files/annexes/1/a.pdf",
		testBaseURL + "/v1/files/images/1/photo-a.png",
		testBaseURL + "/v1/files/annexes/../secret.pdf",
	} {
		w := env.do(http.MethodGet, "/v1/proxy/pdf?url="+url.QueryEscape(raw), nil, "", token)
		requireStatus(t, w, http.StatusForbidden)
	}
	requireStatus(t, env.do(http.MethodGet, "/v1/proxy/pdf", nil, "", token), http.StatusBadRequest)
}

func TestProxyPDFOnlyServesOwnAnnexes(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser("alice", false)
	bob := env.createUser("bob", false)
	own := env.createAnnexe(alice, "diploma")
	foreign := env.createAnnexe(bob, "payslip")
	proxyPath := func(a database.Annexe) string {
		return "/v1/proxy/pdf?url=" + url.QueryEscape(fileURL(testBaseURL, a.ObjectKey))
	}

	requireStatus(t, env.do(http.MethodGet, proxyPath(own), nil, "", ""), http.StatusUnauthorized)

	w := env.do(http.MethodGet, proxyPath(own), nil, "", env.token(alice))
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))

	requireStatus(t, env.do(http.MethodGet, proxyPath(foreign), nil, "", env.token(alice)), http.StatusForbidden)
	requireStatus(t, env.do(http.MethodGet, proxyPath(foreign), nil, "", env.token(bob)), http.StatusOK)
}

func TestObjectKeyFromFileURL(t *testing.T) {
	key, ok := objectKeyFromFileURL(testBaseURL, fileURL(testBaseURL, "annexes/3/abc.pdf")+"?v=2")
	assert.True(t, ok)
	assert.Equal(t, "annexes/3/abc.pdf", key)

	_, ok = objectKeyFromFileURL(testBaseURL, "http://other.test/v1/files/annexes/3/abc.pdf")
	assert.False(t, ok)
	assert.Empty(t, fileURL(testBaseURL, ""))
}
