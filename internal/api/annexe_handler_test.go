package api

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvforge/internal/database"
	"cvforge/internal/resume"
)

type annexeBody struct {
	Message string        `json:"message"`
	Annexe  resume.Annexe `json:"annexe"`
}

func TestUploadAnnexeStoresPDF(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	token := env.token(user)
	pdf := makePDF(t, 2)

	body, contentType := multipartBody(t, map[string]string{"title": "Diploma"}, formFile{field: "file", filename: "diploma.pdf", data: pdf})
	w := env.do(http.MethodPost, "/v1/annexes/upload", body, contentType, token)
	requireStatus(t, w, http.StatusCreated)
	created := decodeBody[annexeBody](t, w).Annexe
	assert.Equal(t, "Diploma", created.Title)
	assert.Equal(t, "diploma.pdf", created.FileName)
	assert.Equal(t, int64(len(pdf)), created.Size)

	key := fmt.Sprintf("annexes/%d/%s.pdf", user.ID, created.ID)
	assert.Equal(t, testBaseURL+"/v1/files/"+key, created.FileURL)
	assert.True(t, env.objects.has(key))

	w = env.do(http.MethodGet, "/v1/annexes/list", nil, "", token)
	requireStatus(t, w, http.StatusOK)
	list := decodeBody[struct {
		Annexes []resume.Annexe `json:"annexes"`
	}](t, w)
	require.Len(t, list.Annexes, 1)
	assert.Equal(t, created.ID, list.Annexes[0].ID)

	w = env.do(http.MethodGet, "/v1/proxy/pdf?url="+url.QueryEscape(created.FileURL), nil, "", token)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, pdf, w.Body.Bytes())
}

func TestUploadAnnexeRejectsInvalidFiles(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(env.createUser("alice", false))

	cases := map[string][]byte{
		"not a pdf":  []byte("hello world"),
		"broken pdf": []byte("%PDF-1.7\nthis is not really a pdf"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			body, contentType := multipartBody(t, nil, formFile{field: "file", filename: "x.pdf", data: data})
			requireStatus(t, env.do(http.MethodPost, "/v1/annexes/upload", body, contentType, token), http.StatusBadRequest)
		})
	}

	body, contentType := multipartBody(t, nil, formFile{field: "file", filename: "big.pdf", data: make([]byte, (1<<20)+1)})
	requireStatus(t, env.do(http.MethodPost, "/v1/annexes/upload", body, contentType, token), http.StatusRequestEntityTooLarge)
	assert.Empty(t, env.objects.objects)
}

func TestDeleteAnnexeDetachesItFromResumes(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	a1 := env.createAnnexe(user, "a1")
	env.createAnnexe(user, "a2")
	env.createAnnexe(user, "a3")
	doc := resume.New("CV")
	doc.Annexes = resume.AssignmentsFrom([]string{"a1", "a2", "a3"})
	row := env.createResume(user, doc)
	token := env.token(user)

	requireStatus(t, env.do(http.MethodDelete, "/v1/annexes/delete/a2", nil, "", token), http.StatusOK)
	requireStatus(t, env.do(http.MethodDelete, "/v1/annexes/delete/a2", nil, "", token), http.StatusNotFound)

	var stored database.Resume
	require.NoError(t, env.db.First(&stored, "id = ?", row.ID).Error)
	loaded, err := stored.Document()
	require.NoError(t, err)
	assert.Equal(t, resume.AssignmentsFrom([]string{"a1", "a3"}), loaded.Annexes)
	assert.Contains(t, env.objects.deleted, fmt.Sprintf("annexes/%d/a2.pdf", user.ID))
	assert.True(t, env.objects.has(a1.ObjectKey))
}

func TestDeleteAnnexeIsScopedToOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("alice", false)
	env.createAnnexe(owner, "a1")
	other := env.token(env.createUser("bob", false))

	requireStatus(t, env.do(http.MethodDelete, "/v1/annexes/delete/a1", nil, "", other), http.StatusNotFound)
	var count int64
	require.NoError(t, env.db.Model(&database.Annexe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
