package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"cvforge/internal/preview"
	"cvforge/internal/resume"
)

func TestViewRendersPublicResume(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	doc := resume.New("Alice CV")
	doc.Slug = "alice"
	doc.Public = true
	doc.PersonalInfo.FullName = "Alice Martin"
	env.createResume(user, doc)

	w := env.do(http.MethodGet, "/view/alice", nil, "", "")
	requireStatus(t, w, http.StatusOK)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `id="`+preview.AnchorID+`"`)
	assert.Contains(t, w.Body.String(), "Alice Martin")
}

func TestViewShowsNotFoundPage(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	hidden := resume.New("Hidden")
	hidden.Slug = "hidden"
	env.createResume(user, hidden)

	for _, path := range []string{"/view/missing", "/view/hidden"} {
		w := env.do(http.MethodGet, path, nil, "", "")
		requireStatus(t, w, http.StatusNotFound)
		assert.Contains(t, w.Body.String(), "Resume not found")
		assert.Contains(t, w.Body.String(), `href="/"`)
	}
}
