package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvforge/internal/assemble"
	"cvforge/internal/preview"
	"cvforge/internal/resume"
	"cvforge/internal/tasks"
)

func TestGeneratePDFRendersResume(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	doc := resume.New("Backend CV")
	doc.PersonalInfo.FullName = "Alice Martin"
	row := env.createResume(user, doc)
	token := env.token(user)

	w := env.doJSON(http.MethodPost, "/v1/resumes/"+row.ID+"/generate-pdf", map[string]string{"template": "modern", "language": "fr"}, token)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="Backend CV.pdf"`)
	assert.Equal(t, env.engine.pdf, w.Body.Bytes())
	assert.Contains(t, env.engine.html, `id="`+preview.AnchorID+`"`)
	assert.Contains(t, env.engine.html, "Alice Martin")

	w = env.do(http.MethodPost, "/v1/resumes/"+row.ID+"/generate-pdf", nil, "", token)
	requireStatus(t, w, http.StatusOK)

	w = env.doJSON(http.MethodPost, "/v1/resumes/"+row.ID+"/generate-pdf", map[string]string{"language": "de"}, token)
	requireStatus(t, w, http.StatusBadRequest)
}

func TestRequestFinalPDFEnqueuesTask(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	row := env.createResume(user, resume.New("CV"))

	w := env.doJSON(http.MethodPost, "/v1/resumes/"+row.ID+"/final-pdf", map[string]string{"language": "fr", "accentColor": "#112233"}, env.token(user))
	requireStatus(t, w, http.StatusAccepted)
	body := decodeBody[map[string]string](t, w)
	assert.Equal(t, "task-1", body["task_id"])

	require.Len(t, env.tasks.tasks, 1)
	task := env.tasks.tasks[0]
	assert.Equal(t, tasks.TypeDocumentAssemble, task.Type())
	payload, err := tasks.ParseDocumentAssemblePayload(task)
	require.NoError(t, err)
	assert.Equal(t, row.ID, payload.ResumeID)
	assert.Equal(t, user.ID, payload.UserID)
	assert.Equal(t, "fr", payload.Language)
	assert.Equal(t, "#112233", payload.AccentColor)
	assert.NotEmpty(t, payload.CorrelationID)
}

func TestFinalPDFLinkRequiresAssembledDocument(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("alice", false)
	row := env.createResume(user, resume.New("Jane Doe"))
	token := env.token(user)
	path := "/v1/resumes/" + row.ID + "/final-pdf/link"

	requireStatus(t, env.do(http.MethodGet, path, nil, "", token), http.StatusConflict)

	now := time.Now()
	require.NoError(t, env.db.Model(&row).Updates(map[string]any{
		"final_pdf_key": "final-documents/1/abc.pdf",
		"final_pdf_at":  &now,
	}).Error)

	w := env.do(http.MethodGet, path, nil, "", token)
	requireStatus(t, w, http.StatusOK)
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, assemble.FileName("Jane Doe"), body["file_name"])
	link, _ := body["url"].(string)
	assert.True(t, strings.HasPrefix(link, "https://s3.test/final-documents/1/abc.pdf"), link)
	assert.Contains(t, link, "Jane Doe_Complete.pdf")
	assert.NotNil(t, body["generated_at"])
}
