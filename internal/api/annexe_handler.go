package api

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/resume"
	"cvforge/internal/storage"
)

// AnnexeHandler 负责附件 PDF 的上传、列表与删除。
type AnnexeHandler struct {
	db            *gorm.DB
	storage       ObjectStore
	scanner       Scanner
	publicBaseURL string
	maxSize       int64
	logger        *slog.Logger
}

// NewAnnexeHandler 构造 AnnexeHandler。
func NewAnnexeHandler(db *gorm.DB, objects ObjectStore, scanner Scanner, publicBaseURL string, maxSize int64, logger *slog.Logger) *AnnexeHandler {
	if scanner == nil {
		scanner = noopScanner{}
	}
	return &AnnexeHandler{
		db:            db,
		storage:       objects,
		scanner:       scanner,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxSize:       maxSize,
		logger:        logger,
	}
}

// ListAnnexes 列出当前用户的附件，最新上传的在前。
func (h *AnnexeHandler) ListAnnexes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var rows []database.Annexe
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		middleware.LoggerOr(c, h.logger).Error("list annexes failed", slog.Any("error", err))
		Internal(c, "failed to list annexes")
		return
	}
	out := make([]resume.Annexe, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Domain(fileURL(h.publicBaseURL, rows[i].ObjectKey)))
	}
	c.JSON(http.StatusOK, gin.H{"annexes": out})
}

// UploadAnnexe 接收单个 PDF，校验并扫描后写入对象存储。
func (h *AnnexeHandler) UploadAnnexe(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerOr(c, h.logger).With(slog.Uint64("user_id", uint64(userID)))

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
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		BadRequest(c, "only PDF files are allowed")
		return
	}
	if _, err := pdfapi.PageCount(bytes.NewReader(data), nil); err != nil {
		logger.Info("rejecting unreadable pdf", slog.Any("error", err))
		BadRequest(c, "the PDF file could not be read")
		return
	}
	if err := h.scanner.Scan(ctx, data); err != nil {
		if errors.Is(err, ErrMaliciousFile) {
			BadRequest(c, "malicious file detected")
			return
		}
		logger.Error("scan annexe failed", slog.Any("error", err))
		Internal(c, "failed to scan file")
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		title = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}
	row := database.Annexe{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    title,
		FileName: filepath.Base(file.Filename),
		Size:     int64(len(data)),
	}
	row.ObjectKey = storage.AnnexeKey(userID, row.ID)

	if err := h.storage.PutBytes(ctx, row.ObjectKey, data, "application/pdf"); err != nil {
		logger.Error("upload annexe failed", slog.Any("error", err))
		Internal(c, "failed to upload file")
		return
	}
	if err := h.db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.Error("create annexe failed", slog.Any("error", err))
		if delErr := h.storage.DeleteObject(ctx, row.ObjectKey); delErr != nil {
			logger.Warn("delete orphan annexe failed", slog.Any("error", delErr))
		}
		Internal(c, "failed to save annexe")
		return
	}

	logger.Info("annexe uploaded", slog.String("annexe_id", row.ID), slog.Int64("size", row.Size))
	c.JSON(http.StatusCreated, gin.H{
		"message": "Annexe uploaded successfully",
		"annexe":  row.Domain(fileURL(h.publicBaseURL, row.ObjectKey)),
	})
}

// DeleteAnnexe 删除附件，并从该用户的所有简历中移除对它的引用。
func (h *AnnexeHandler) DeleteAnnexe(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerOr(c, h.logger)

	var row database.Annexe
	if err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", c.Param("id"), userID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "Annexe not found")
			return
		}
		Internal(c, "failed to query annexe")
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&database.Annexe{}, "id = ?", row.ID).Error; err != nil {
			return err
		}
		return detachAnnexe(tx, userID, row.ID)
	})
	if err != nil {
		logger.Error("delete annexe failed", slog.String("annexe_id", row.ID), slog.Any("error", err))
		Internal(c, "failed to delete annexe")
		return
	}
	if err := h.storage.DeleteObject(ctx, row.ObjectKey); err != nil {
		logger.Warn("delete annexe object failed", slog.String("object_key", row.ObjectKey), slog.Any("error", err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Annexe deleted successfully"})
}

// detachAnnexe 从用户的简历中移除某个附件引用，并重新编号。
func detachAnnexe(tx *gorm.DB, userID uint, annexeID string) error {
	var rows []database.Resume
	if err := tx.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		doc, err := rows[i].Document()
		if err != nil {
			return err
		}
		kept := make([]string, 0, len(doc.Annexes))
		removed := false
		for _, ref := range resume.SortedAnnexeIDs(doc.Annexes, refsCatalog(doc.Annexes)) {
			if ref == annexeID {
				removed = true
				continue
			}
			kept = append(kept, ref)
		}
		if !removed {
			continue
		}
		doc.Annexes = resume.AssignmentsFrom(kept)
		if err := rows[i].SetDocument(doc); err != nil {
			return err
		}
		if err := tx.Model(&rows[i]).Update("content", rows[i].Content).Error; err != nil {
			return err
		}
	}
	return nil
}

// refsCatalog 把引用本身当作目录，只用于排序而不过滤。
func refsCatalog(refs []resume.AnnexeRef) map[string]resume.Annexe {
	catalog := make(map[string]resume.Annexe, len(refs))
	for _, ref := range refs {
		catalog[ref.AnnexeID] = resume.Annexe{ID: ref.AnnexeID}
	}
	return catalog
}
