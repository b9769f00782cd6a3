package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-pdf/fpdf"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvforge/internal/auth"
	"cvforge/internal/blobcache"
	"cvforge/internal/config"
	"cvforge/internal/database"
	"cvforge/internal/i18n"
	"cvforge/internal/preview"
	"cvforge/internal/resume"
	"cvforge/internal/translate"
)

const (
	testBaseURL  = "http://api.test"
	testSecret   = "internal-secret"
	testPassword = "password123"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	keysOnce sync.Once
	privPEM  []byte
	pubPEM   []byte
)

func testKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	keysOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		privPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
		pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	})
	return privPEM, pubPEM
}

type memoryStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	deleted  []string
	prefixes []string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) PutBytes(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) ReadObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, errors.New("The specified key does not exist.")
	}
	return data, nil
}

func (m *memoryStore) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

func (m *memoryStore) DeletePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefixes = append(m.prefixes, prefix)
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

func (m *memoryStore) PresignDownload(_ context.Context, key string, _ time.Duration, fileName string) (string, error) {
	return "https://s3.test/" + key + "?filename=" + fileName, nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("task-%d", len(f.tasks)), Type: task.Type()}, nil
}

type fakeAI struct {
	removedBackground int
	structured        json.RawMessage
}

func (f *fakeAI) Translate(_ context.Context, payload translate.Payload, target i18n.Language) (translate.Payload, error) {
	payload.ProfessionalSummary = "[" + string(target) + "] " + payload.ProfessionalSummary
	return payload, nil
}

func (f *fakeAI) EnhanceJobDescription(_ context.Context, text string) (string, error) {
	return strings.ToUpper(text), nil
}

func (f *fakeAI) StructureResume(_ context.Context, _ string) (json.RawMessage, error) {
	return f.structured, nil
}

func (f *fakeAI) RemoveBackground(_ context.Context, data []byte, _ string) ([]byte, string, error) {
	f.removedBackground++
	return append(append([]byte(nil), data...), 'x'), "image/png", nil
}

type fakeEngine struct {
	mu   sync.Mutex
	html string
	pdf  []byte
}

func (f *fakeEngine) HTMLToPDF(_ context.Context, html string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.html = html
	return f.pdf, nil
}

func makePDF(t *testing.T, pages int) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		doc.AddPage()
		doc.Text(20, 20, "annexe")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

type testEnv struct {
	t       *testing.T
	router  *gin.Engine
	db      *gorm.DB
	redis   *redis.Client
	auth    *auth.AuthService
	objects *memoryStore
	tasks   *fakeEnqueuer
	ai      *fakeAI
	engine  *fakeEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	priv, pub := testKeys(t)
	authService, err := auth.NewAuthService(priv, pub, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	cfg := &config.Config{
		API: config.APIConfig{
			PublicBaseURL:  testBaseURL,
			InternalSecret: testSecret,
			MaxAnnexeSize:  1 << 20,
			MaxImageSize:   1 << 20,
		},
		Auth: config.AuthConfig{
			LoginRateLimitPerHour: 20,
			LoginLockThreshold:    3,
			LoginLockTTL:          time.Minute,
		},
		Assemble: config.AssembleConfig{RenderTimeout: 5 * time.Second, LinkTTL: time.Minute},
		Preview:  config.PreviewConfig{MaxBlobSize: 1 << 20},
		Worker:   config.WorkerConfig{MaxRetry: 2},
	}

	env := &testEnv{
		t:       t,
		db:      db,
		redis:   rdb,
		auth:    authService,
		objects: newMemoryStore(),
		tasks:   &fakeEnqueuer{},
		ai:      &fakeAI{},
		engine:  &fakeEngine{pdf: makePDF(t, 1)},
	}
	router := NewRouter(cfg, nil)
	RegisterRoutes(router, Deps{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Auth:     authService,
		Storage:  env.objects,
		Tasks:    env.tasks,
		AI:       env.ai,
		Composer: preview.NewComposer(nil, nil),
		Engine:   env.engine,
		Blobs:    blobcache.NewMemoryStore(time.Minute),
	})
	env.router = router
	return env
}

func (e *testEnv) createUser(username string, admin bool) database.User {
	e.t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(e.t, err)
	user := database.User{Username: username, PasswordHash: hash, IsAdmin: admin}
	require.NoError(e.t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) token(user database.User) string {
	e.t.Helper()
	pair, err := e.auth.GenerateTokenPair(principalOf(user))
	require.NoError(e.t, err)
	return pair.AccessToken
}

func (e *testEnv) createResume(user database.User, doc *resume.Document) database.Resume {
	e.t.Helper()
	row := database.Resume{UserID: user.ID}
	require.NoError(e.t, row.SetDocument(doc))
	require.NoError(e.t, e.db.Create(&row).Error)
	return row
}

func (e *testEnv) createAnnexe(user database.User, id string) database.Annexe {
	e.t.Helper()
	row := database.Annexe{ID: id, UserID: user.ID, Title: id, FileName: id + ".pdf", ObjectKey: fmt.Sprintf("annexes/%d/%s.pdf", user.ID, id)}
	require.NoError(e.t, e.db.Create(&row).Error)
	e.objects.objects[row.ObjectKey] = makePDF(e.t, 1)
	return row
}

func (e *testEnv) do(method, path string, body io.Reader, contentType, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) doJSON(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(data)
	}
	return e.do(method, path, reader, "application/json", token)
}

type formFile struct {
	field    string
	filename string
	data     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
