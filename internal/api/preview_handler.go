package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvforge/internal/api/middleware"
	"cvforge/internal/blobcache"
)

// PreviewBlobHandler 托管尚未保存的图片的临时预览副本。
type PreviewBlobHandler struct {
	store   blobcache.Store
	maxSize int64
	logger  *slog.Logger
}

func NewPreviewBlobHandler(store blobcache.Store, maxSize int64, logger *slog.Logger) *PreviewBlobHandler {
	return &PreviewBlobHandler{store: store, maxSize: maxSize, logger: logger}
}

// Create 保存一张预览图片并返回 token。
func (h *PreviewBlobHandler) Create(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing file")
		return
	}
	data, err := readFormFile(file, h.maxSize)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			TooLarge(c, err.Error())
			return
		}
		Internal(c, "failed to read file")
		return
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		BadRequest(c, "preview must be an image")
		return
	}

	token, err := h.store.Put(c.Request.Context(), blobcache.Blob{Data: data, ContentType: contentType})
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("store preview blob failed", slog.Any("error", err))
		Internal(c, "failed to store preview")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// Get 返回预览图片字节；无需登录，token 本身即凭证。
func (h *PreviewBlobHandler) Get(c *gin.Context) {
	blob, err := h.store.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, blobcache.ErrNotFound) {
			NotFound(c, "preview not found")
			return
		}
		middleware.LoggerOr(c, h.logger).Error("load preview blob failed", slog.Any("error", err))
		Internal(c, "failed to load preview")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}

// Revoke 提前作废预览地址。
func (h *PreviewBlobHandler) Revoke(c *gin.Context) {
	if err := h.store.Revoke(c.Request.Context(), c.Param("token")); err != nil && !errors.Is(err, blobcache.ErrNotFound) {
		middleware.LoggerOr(c, h.logger).Error("revoke preview blob failed", slog.Any("error", err))
		Internal(c, "failed to revoke preview")
		return
	}
	c.Status(http.StatusNoContent)
}
