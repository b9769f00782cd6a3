package api

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/resume"
	"cvforge/internal/storage"
)

const filesPath = "/v1/files/"

// fileURL 返回对象的公开地址。
func fileURL(publicBaseURL, key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(publicBaseURL, "/") + filesPath + key
}

// objectKeyFromFileURL 是 fileURL 的逆操作，只接受本服务签发的地址。
func objectKeyFromFileURL(publicBaseURL, raw string) (string, bool) {
	prefix := strings.TrimRight(publicBaseURL, "/") + filesPath
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	rest := raw[len(prefix):]
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil || !storage.IsPublicFileKey(key) {
		return "", false
	}
	return key, true
}

// FileHandler 提供图片与附件的公开读取，以及附件 PDF 代理。
type FileHandler struct {
	db            *gorm.DB
	storage       ObjectStore
	publicBaseURL string
	logger        *slog.Logger
}

func NewFileHandler(db *gorm.DB, objects ObjectStore, publicBaseURL string, logger *slog.Logger) *FileHandler {
	return &FileHandler{db: db, storage: objects, publicBaseURL: strings.TrimRight(publicBaseURL, "/"), logger: logger}
}

// ServeFile 处理 GET /files/*key。
func (h *FileHandler) ServeFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !storage.IsPublicFileKey(key) {
		NotFound(c, "file not found")
		return
	}
	h.serveObject(c, key, contentTypeFor(key), "public, max-age=86400")
}

// ProxyPDF 处理 GET /proxy/pdf?url=，只转发当前用户自己的附件。
func (h *FileHandler) ProxyPDF(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	raw := strings.TrimSpace(c.Query("url"))
	if raw == "" {
		BadRequest(c, "url is required")
		return
	}
	logger := middleware.LoggerOr(c, h.logger)
	key, ok := objectKeyFromFileURL(h.publicBaseURL, raw)
	if !ok || !strings.HasPrefix(key, storage.PrefixAnnexes) {
		logger.Warn("proxy pdf rejected foreign url", slog.String("url", raw))
		Forbidden(c, "url is not allowed")
		return
	}

	var count int64
	err := h.db.WithContext(c.Request.Context()).Model(&database.Annexe{}).
		Where("user_id = ? AND object_key = ?", userID, key).
		Count(&count).Error
	if err != nil {
		logger.Error("lookup annexe failed", slog.String("object_key", key), slog.Any("error", err))
		Internal(c, "failed to load annexe")
		return
	}
	if count == 0 {
		logger.Warn("proxy pdf rejected annexe of another user",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("object_key", key),
		)
		Forbidden(c, "url is not allowed")
		return
	}
	h.serveObject(c, key, "application/pdf", "private, max-age=300")
}

func (h *FileHandler) serveObject(c *gin.Context, key, contentType, cacheControl string) {
	data, err := h.storage.ReadObject(c.Request.Context(), key)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "file not found")
			return
		}
		middleware.LoggerOr(c, h.logger).Error("read object failed", slog.String("object_key", key), slog.Any("error", err))
		BadGateway(c, "failed to read file")
		return
	}
	c.Header("Cache-Control", cacheControl)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, contentType, data)
}

func contentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ext == ".jpg" {
		return "image/jpeg"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// loadAssignedAnnexes 按简历中的顺序返回附件，悬空引用被丢弃。
func loadAssignedAnnexes(ctx context.Context, db *gorm.DB, userID uint, refs []resume.AnnexeRef, urlFor func(string) string) ([]resume.Annexe, error) {
	if len(refs) == 0 {
		return []resume.Annexe{}, nil
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.AnnexeID)
	}
	var rows []database.Annexe
	if err := db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	all := make([]resume.Annexe, 0, len(rows))
	for i := range rows {
		all = append(all, rows[i].Domain(urlFor(rows[i].ObjectKey)))
	}
	return resume.ResolveAnnexes(refs, all), nil
}

// findPublicResume 按 id 或 slug 查找公开简历。
func findPublicResume(ctx context.Context, db *gorm.DB, idOrSlug string) (*database.Resume, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var row database.Resume
	err := db.WithContext(ctx).
		Where("public = ? AND (id = ? OR slug = ?)", true, idOrSlug, resume.NormalizeSlug(idOrSlug)).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}
