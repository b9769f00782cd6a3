package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/assemble"
	"cvforge/internal/i18n"
	"cvforge/internal/pdf"
	"cvforge/internal/preview"
	"cvforge/internal/resume"
	"cvforge/internal/tasks"
)

// DocumentHandler 负责简历 PDF 渲染与最终文档的异步合成。
type DocumentHandler struct {
	db            *gorm.DB
	composer      *preview.Composer
	engine        pdf.Engine
	tasks         TaskEnqueuer
	storage       ObjectStore
	renderTimeout time.Duration
	linkTTL       time.Duration
	maxRetry      int
	logger        *slog.Logger
}

// DocumentOptions 是渲染与合成相关的设置。
type DocumentOptions struct {
	RenderTimeout time.Duration
	LinkTTL       time.Duration
	MaxRetry      int
}

// NewDocumentHandler 构造 DocumentHandler。
func NewDocumentHandler(db *gorm.DB, composer *preview.Composer, engine pdf.Engine, enqueuer TaskEnqueuer, objects ObjectStore, opts DocumentOptions, logger *slog.Logger) *DocumentHandler {
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = assemble.DefaultRenderTimeout
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = 15 * time.Minute
	}
	return &DocumentHandler{
		db:            db,
		composer:      composer,
		engine:        engine,
		tasks:         enqueuer,
		storage:       objects,
		renderTimeout: opts.RenderTimeout,
		linkTTL:       opts.LinkTTL,
		maxRetry:      opts.MaxRetry,
		logger:        logger,
	}
}

// GeneratePDF 同步渲染简历本体并直接返回 PDF。
func (h *DocumentHandler) GeneratePDF(c *gin.Context) {
	params, err := bindRenderParams(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	row, ok := loadOwnedResume(c, h.db, h.logger, c.Param("id"))
	if !ok {
		return
	}
	doc, err := row.Document()
	if err != nil {
		Internal(c, "failed to load resume")
		return
	}
	params = withDocumentDefaults(params, doc)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.renderTimeout)
	defer cancel()
	data, err := assemble.RenderDocument(ctx, h.composer, h.engine, doc, params)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("render resume pdf failed",
			slog.String("resume_id", row.ID),
			slog.Any("error", err),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			Error(c, http.StatusGatewayTimeout, "PDF generation timed out")
			return
		}
		Internal(c, "failed to generate pdf")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename=%q`, pdfFileName(doc.Title)))
	c.Data(http.StatusOK, "application/pdf", data)
}

// RequestFinalPDF 将最终文档合成任务入队并立即返回 202。
func (h *DocumentHandler) RequestFinalPDF(c *gin.Context) {
	params, err := bindRenderParams(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	row, ok := loadOwnedResume(c, h.db, h.logger, c.Param("id"))
	if !ok {
		return
	}
	logger := middleware.LoggerOr(c, h.logger).With(slog.String("resume_id", row.ID))

	task, err := tasks.NewDocumentAssembleTask(tasks.DocumentAssemblePayload{
		ResumeID:      row.ID,
		UserID:        row.UserID,
		Template:      params.Template,
		AccentColor:   params.AccentColor,
		Language:      string(params.Language),
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		Internal(c, "failed to create task")
		return
	}

	opts := []asynq.Option{asynq.Timeout(3 * h.renderTimeout)}
	if h.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(h.maxRetry))
	}
	info, err := h.tasks.EnqueueContext(c.Request.Context(), task, opts...)
	if err != nil {
		logger.Error("enqueue final document failed", slog.Any("error", err))
		Internal(c, "failed to enqueue final document")
		return
	}

	logger.Info("final document requested", slog.String("task_id", info.ID))
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Final document request accepted",
		"task_id": info.ID,
	})
}

// GetFinalPDFLink 生成最近一次合成结果的预签名下载链接。
func (h *DocumentHandler) GetFinalPDFLink(c *gin.Context) {
	row, ok := loadOwnedResume(c, h.db, h.logger, c.Param("id"))
	if !ok {
		return
	}
	if row.FinalPDFKey == "" {
		Conflict(c, "final document not ready")
		return
	}

	fileName := assemble.FileName(row.Title)
	signedURL, err := h.storage.PresignDownload(c.Request.Context(), row.FinalPDFKey, h.linkTTL, fileName)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("generate final document link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":          signedURL,
		"file_name":    fileName,
		"generated_at": row.FinalPDFAt,
	})
}

// bindRenderParams 允许空请求体；语言必须受支持。
func bindRenderParams(c *gin.Context) (assemble.RenderParams, error) {
	var params assemble.RenderParams
	if err := c.ShouldBindJSON(&params); err != nil && !errors.Is(err, io.EOF) {
		return params, err
	}
	if params.Language != "" {
		lang, err := i18n.ParseLanguage(string(params.Language))
		if err != nil {
			return params, err
		}
		params.Language = lang
	}
	return params, nil
}

func withDocumentDefaults(params assemble.RenderParams, doc *resume.Document) assemble.RenderParams {
	if params.Template == "" {
		params.Template = doc.Template
	}
	if params.AccentColor == "" {
		params.AccentColor = doc.AccentColor
	}
	return params
}

func pdfFileName(title string) string {
	if title == "" {
		title = "Resume"
	}
	return title + ".pdf"
}
