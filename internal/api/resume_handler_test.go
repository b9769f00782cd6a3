package api

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvforge/internal/database"
	"cvforge/internal/resume"
)

type resumeBody struct {
	Message string          `json:"message"`
	Resume  resume.Document `json:"resume"`
}

func TestCreateAndPartiallyUpdateResume(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(env.createUser("alice", false))

	w := env.doJSON(http.MethodPost, "/v1/resumes/create", map[string]string{}, token)
	requireStatus(t, w, http.StatusCreated)
	created := decodeBody[resumeBody](t, w).Resume
	assert.Equal(t, defaultResumeTitle, created.Title)
	require.NotEmpty(t, created.ID)

	w = env.doJSON(http.MethodPut, "/v1/resumes/update", map[string]any{
		"resumeId": created.ID,
		"resumeData": map[string]any{
			"professional_summary": "Go developer",
			"slug":                 "  Alice-Go ",
			"skills":               []string{"Go", "SQL"},
		},
	}, token)
	requireStatus(t, w, http.StatusOK)
	updated := decodeBody[resumeBody](t, w)
	assert.Equal(t, "Saved successfully", updated.Message)
	assert.Equal(t, defaultResumeTitle, updated.Resume.Title)
	assert.Equal(t, "alice-go", updated.Resume.Slug)
	assert.Equal(t, "Go developer", updated.Resume.ProfessionalSummary)
	assert.Equal(t, []string{"Go", "SQL"}, updated.Resume.Skills)

	w = env.do(http.MethodGet, "/v1/resumes/"+created.ID, nil, "", token)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "Go developer", decodeBody[resumeBody](t, w).Resume.ProfessionalSummary)

	w = env.do(http.MethodGet, "/v1/users/resumes", nil, "", token)
	requireStatus(t, w, http.StatusOK)
	list := decodeBody[struct {
		Resumes []resume.Document `json:"resumes"`
	}](t, w)
	require.Len(t, list.Resumes, 1)
}

func TestUpdateResumeRejectsTakenSlug(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser("alice", false)
	other := env.createUser("bob", false)

	taken := resume.New("Taken")
	taken.Slug = "jane"
	env.createResume(other, taken)
	mine := env.createResume(owner, resume.New("Mine"))

	w := env.doJSON(http.MethodPut, "/v1/resumes/update", map[string]any{
		"resumeId":   mine.ID,
		"resumeData": map[string]any{"slug": "jane"},
	}, env.token(owner))
	requireStatus(t, w, http.StatusConflict)
	assert.Contains(t, w.Body.String(), errSlugTaken.Error())

	w = env.doJSON(http.MethodPut, "/v1/resumes/update", map[string]any{
		"resumeId":   mine.ID,
		"resumeData": map[string]any{"slug": "not valid!"},
	}, env.token(owner))
	requireStatus(t, w, http.StatusBadRequest)
}

func TestUpdateResumeValidatesPayload(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	row := env.createResume(user, resume.New("CV"))
	token := env.token(user)

	cases := map[string]any{
		"not an object":     map[string]any{"resumeId": row.ID, "resumeData": []int{1}},
		"schema violation":  map[string]any{"resumeId": row.ID, "resumeData": map[string]any{"experience": "oops"}},
		"missing resume id": map[string]any{"resumeData": map[string]any{"title": "x"}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			requireStatus(t, env.doJSON(http.MethodPut, "/v1/resumes/update", body, token), http.StatusBadRequest)
		})
	}

	other := env.token(env.createUser("mallory", false))
	w := env.doJSON(http.MethodPut, "/v1/resumes/update", map[string]any{
		"resumeId":   row.ID,
		"resumeData": map[string]any{"title": "hijack"},
	}, other)
	requireStatus(t, w, http.StatusNotFound)
}

func TestUpdateResumeMultipartStoresImages(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	row := env.createResume(user, resume.New("CV"))
	token := env.token(user)

	upload := func(removeBackground string) resume.Document {
		body, contentType := multipartBody(t, map[string]string{
			"resumeId":         row.ID,
			"resumeData":       `{"personal_info":{"full_name":"Alice"}}`,
			"removeBackground": removeBackground,
		}, formFile{field: "image", filename: "me.png", data: pngBytes})
		w := env.do(http.MethodPut, "/v1/resumes/update", body, contentType, token)
		requireStatus(t, w, http.StatusOK)
		return decodeBody[resumeBody](t, w).Resume
	}

	first := upload("no")
	assert.Equal(t, "Alice", first.PersonalInfo.FullName)
	firstURL := first.PersonalInfo.Image.URL()
	prefix := fmt.Sprintf("%s/v1/files/images/%d/photo-", testBaseURL, user.ID)
	require.True(t, strings.HasPrefix(firstURL, prefix), firstURL)
	firstKey := strings.TrimPrefix(firstURL, testBaseURL+"/v1/files/")
	assert.True(t, env.objects.has(firstKey))
	assert.Equal(t, 0, env.ai.removedBackground)

	w := env.do(http.MethodGet, "/v1/files/"+firstKey, nil, "", "")
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	second := upload("yes")
	assert.Equal(t, 1, env.ai.removedBackground)
	assert.NotEqual(t, firstURL, second.PersonalInfo.Image.URL())
	assert.Contains(t, env.objects.deleted, firstKey)
}

func TestUpdateResumeRejectsNonImageUpload(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	row := env.createResume(user, resume.New("CV"))

	body, contentType := multipartBody(t, map[string]string{
		"resumeId":   row.ID,
		"resumeData": `{}`,
	}, formFile{field: "signature", filename: "sig.png", data: []byte("plain text, not an image")})
	w := env.do(http.MethodPut, "/v1/resumes/update", body, contentType, env.token(user))
	requireStatus(t, w, http.StatusBadRequest)
	assert.Empty(t, env.objects.objects)
}

func TestReplaceAnnexesValidatesAssignments(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	stranger := env.createUser("bob", false)
	env.createAnnexe(user, "a1")
	env.createAnnexe(user, "a2")
	env.createAnnexe(stranger, "b1")
	row := env.createResume(user, resume.New("CV"))
	token := env.token(user)
	path := "/v1/resumes/" + row.ID + "/annexes"

	invalid := map[string][]resume.AnnexeRef{
		"duplicate": {{AnnexeID: "a1", Order: 1}, {AnnexeID: "a1", Order: 2}},
		"gap":       {{AnnexeID: "a1", Order: 1}, {AnnexeID: "a2", Order: 3}},
		"foreign":   {{AnnexeID: "b1", Order: 1}},
		"empty id":  {{AnnexeID: "", Order: 1}},
	}
	for name, refs := range invalid {
		t.Run(name, func(t *testing.T) {
			w := env.doJSON(http.MethodPut, path, map[string]any{"annexes": refs}, token)
			requireStatus(t, w, http.StatusBadRequest)
		})
	}

	tooMany := make([]resume.AnnexeRef, resume.MaxAnnexes+1)
	for i := range tooMany {
		tooMany[i] = resume.AnnexeRef{AnnexeID: fmt.Sprintf("x%d", i), Order: i + 1}
	}
	requireStatus(t, env.doJSON(http.MethodPut, path, map[string]any{"annexes": tooMany}, token), http.StatusBadRequest)

	w := env.doJSON(http.MethodPut, path, map[string]any{"annexes": []resume.AnnexeRef{
		{AnnexeID: "a2", Order: 2},
		{AnnexeID: "a1", Order: 1},
	}}, token)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, resume.AssignmentsFrom([]string{"a1", "a2"}), decodeBody[resumeBody](t, w).Resume.Annexes)
}

type withAnnexesBody struct {
	Resume  resume.Document `json:"resume"`
	Annexes []resume.Annexe `json:"annexes"`
}

func TestResumeWithAnnexesDropsDanglingReferences(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	env.createAnnexe(user, "a1")
	env.createAnnexe(user, "a2")
	doc := resume.New("CV")
	doc.Annexes = resume.AssignmentsFrom([]string{"a2", "gone", "a1"})
	row := env.createResume(user, doc)

	w := env.do(http.MethodGet, "/v1/resumes/"+row.ID+"/with-annexes", nil, "", env.token(user))
	requireStatus(t, w, http.StatusOK)
	body := decodeBody[withAnnexesBody](t, w)
	require.Len(t, body.Annexes, 2)
	assert.Equal(t, "a2", body.Annexes[0].ID)
	assert.Equal(t, "a1", body.Annexes[1].ID)
	assert.Equal(t, fmt.Sprintf("%s/v1/files/annexes/%d/a2.pdf", testBaseURL, user.ID), body.Annexes[0].FileURL)
	assert.Equal(t, resume.AssignmentsFrom([]string{"a2", "a1"}), body.Resume.Annexes)
}

func TestPublicResumeWithAnnexes(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	env.createAnnexe(user, "a1")
	doc := resume.New("CV")
	doc.Annexes = resume.AssignmentsFrom([]string{"a1"})
	private := env.createResume(user, doc)

	requireStatus(t, env.do(http.MethodGet, "/v1/resumes/public/"+private.ID+"/with-annexes", nil, "", ""), http.StatusNotFound)

	public := doc.Clone()
	public.Slug = "alice-cv"
	public.Public = true
	row := env.createResume(user, public)

	for _, key := range []string{row.ID, "alice-cv", "Alice-CV"} {
		w := env.do(http.MethodGet, "/v1/resumes/public/"+key+"/with-annexes", nil, "", "")
		requireStatus(t, w, http.StatusOK)
		body := decodeBody[withAnnexesBody](t, w)
		assert.Equal(t, row.ID, body.Resume.ID)
		assert.Len(t, body.Annexes, 1)
	}
}

func TestCloneAndDeleteResume(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	doc := resume.New("Backend")
	doc.Slug = "backend"
	doc.Public = true
	doc.Skills = []string{"Go"}
	row := env.createResume(user, doc)
	require.NoError(t, env.db.Model(&row).Update("final_pdf_key", "final-documents/1/old.pdf").Error)
	token := env.token(user)

	w := env.doJSON(http.MethodPost, "/v1/resumes/"+row.ID+"/clone", struct{}{}, token)
	requireStatus(t, w, http.StatusCreated)
	clone := decodeBody[resumeBody](t, w).Resume
	assert.NotEqual(t, row.ID, clone.ID)
	assert.Equal(t, "Backend (Copy)", clone.Title)
	assert.Empty(t, clone.Slug)
	assert.False(t, clone.Public)
	assert.Equal(t, []string{"Go"}, clone.Skills)

	requireStatus(t, env.do(http.MethodDelete, "/v1/resumes/delete/"+row.ID, nil, "", token), http.StatusOK)
	requireStatus(t, env.do(http.MethodGet, "/v1/resumes/"+row.ID, nil, "", token), http.StatusNotFound)
	assert.Contains(t, env.objects.deleted, "final-documents/1/old.pdf")

	var count int64
	require.NoError(t, env.db.Model(&database.Resume{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMergeResumeDataDropsServerFields(t *testing.T) {
	current := resume.New("CV")
	current.ID = "keep-me"
	merged, err := mergeResumeData(current, []byte(`{"_id":"evil","userId":"9","title":"New"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(merged), "evil")
	assert.NotContains(t, string(merged), `"userId"`)
	assert.Contains(t, string(merged), `"title":"New"`)

	_, err = mergeResumeData(current, []byte(`null`))
	assert.ErrorIs(t, err, errInvalidResumeData)
}
