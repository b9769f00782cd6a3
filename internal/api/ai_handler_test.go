package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvforge/internal/database"
)

func TestAITranslateAndEnhance(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(env.createUser("alice", false))

	w := env.doJSON(http.MethodPost, "/v1/ai/translate", map[string]any{
		"resumeData":     map[string]any{"professional_summary": "Backend engineer"},
		"targetLanguage": "fr",
	}, token)
	requireStatus(t, w, http.StatusOK)
	translated := decodeBody[struct {
		TranslatedData struct {
			ProfessionalSummary string `json:"professional_summary"`
		} `json:"translatedData"`
	}](t, w)
	assert.Equal(t, "[fr] Backend engineer", translated.TranslatedData.ProfessionalSummary)

	w = env.doJSON(http.MethodPost, "/v1/ai/translate", map[string]any{"resumeData": map[string]any{}, "targetLanguage": "xx"}, token)
	requireStatus(t, w, http.StatusBadRequest)

	w = env.doJSON(http.MethodPost, "/v1/ai/enhance-job-desc", map[string]string{"userContent": "built apis"}, token)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "BUILT APIS", decodeBody[map[string]string](t, w)["enhancedContent"])
}

func TestAIUploadResumeCreatesResume(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	env.ai.structured = json.RawMessage(`{"professional_summary":"Parsed","skills":["Go"],"slug":"stolen","public":true}`)

	w := env.doJSON(http.MethodPost, "/v1/ai/upload-resume", map[string]string{"title": "Imported", "resumeText": "Alice, Go developer"}, env.token(user))
	requireStatus(t, w, http.StatusCreated)
	id := decodeBody[map[string]string](t, w)["resumeId"]
	require.NotEmpty(t, id)

	var row database.Resume
	require.NoError(t, env.db.First(&row, "id = ? AND user_id = ?", id, user.ID).Error)
	doc, err := row.Document()
	require.NoError(t, err)
	assert.Equal(t, "Imported", doc.Title)
	assert.Equal(t, "Parsed", doc.ProfessionalSummary)
	assert.Equal(t, []string{"Go"}, doc.Skills)
	assert.Empty(t, doc.Slug)
	assert.False(t, doc.Public)

	env.ai.structured = json.RawMessage(`{"experience":"not a list"}`)
	w = env.doJSON(http.MethodPost, "/v1/ai/upload-resume", map[string]string{"resumeText": "junk"}, env.token(user))
	requireStatus(t, w, http.StatusBadGateway)
}
