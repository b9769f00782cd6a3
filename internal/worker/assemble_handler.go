package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/assemble"
	"cvforge/internal/database"
	"cvforge/internal/errcode"
	"cvforge/internal/i18n"
	"cvforge/internal/metrics"
	"cvforge/internal/resume"
	"cvforge/internal/storage"
	"cvforge/internal/tasks"
)

// ObjectStore 是 worker 需要的对象存储能力。
type ObjectStore interface {
	assemble.ObjectReader
	PutBytes(ctx context.Context, objectName string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, objectKey string) error
}

// AssembleTaskHandler 消费 document:assemble 任务：渲染简历、拼接附件、上传结果并通知用户。
type AssembleTaskHandler struct {
	db       *gorm.DB
	storage  ObjectStore
	redis    redis.UniversalClient
	renderer assemble.ResumeRenderer
	cfg      assemble.Config
	logger   *slog.Logger
}

// NewAssembleTaskHandler 创建任务处理器。renderer 通常是 assemble.LocalRenderer。
func NewAssembleTaskHandler(
	db *gorm.DB,
	objects ObjectStore,
	redisClient redis.UniversalClient,
	renderer assemble.ResumeRenderer,
	cfg assemble.Config,
	logger *slog.Logger,
) *AssembleTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AssembleTaskHandler{
		db:       db,
		storage:  objects,
		redis:    redisClient,
		renderer: renderer,
		cfg:      cfg,
		logger:   logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *AssembleTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	payload, err := tasks.ParseDocumentAssemblePayload(t)
	if err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("resume_id", payload.ResumeID),
		slog.Uint64("user_id", uint64(payload.UserID)),
	)
	log.Info("starting final document assembly")

	var row database.Resume
	if err := h.db.WithContext(ctx).Where("id = ? AND user_id = ?", payload.ResumeID, payload.UserID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("resume not found, skipping task")
			return nil
		}
		log.Error("query resume failed", slog.Any("error", err))
		return err
	}

	defer func() {
		if retErr == nil || !isFinalAsynqAttempt(ctx) {
			return
		}
		notify := failureNotify(row.ID, payload.CorrelationID, retErr)
		if err := publishNotify(ctx, h.redis, row.UserID, notify); err != nil {
			log.Error("publish assembly error notification failed", slog.Any("error", err))
		}
	}()

	doc, err := row.Document()
	if err != nil {
		log.Error("decode resume failed", slog.Any("error", err))
		return err
	}

	annexes, err := h.loadAnnexes(ctx, row.UserID, doc.Annexes)
	if err != nil {
		log.Error("load annexes failed", slog.Any("error", err))
		return err
	}

	params := renderParams(payload, doc)
	cfg := h.cfg
	cfg.Logger = log
	assembler := assemble.New(h.renderer, &assemble.StorageFetcher{Objects: h.storage}, cfg)

	start := time.Now()
	data, report, err := assembler.Assemble(ctx, row.ID, params, annexes)
	if err != nil {
		log.Error("assemble final document failed", slog.Any("error", err))
		return err
	}

	objectName := storage.FinalDocumentKey(row.UserID)
	if err := h.storage.PutBytes(ctx, objectName, data, "application/pdf"); err != nil {
		log.Error("upload final document failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", errResultUpload, err)
	}

	previousKey := row.FinalPDFKey
	now := time.Now()
	if err := h.db.WithContext(ctx).Model(&row).Updates(map[string]any{
		"final_pdf_key": objectName,
		"final_pdf_at":  &now,
	}).Error; err != nil {
		log.Error("update resume failed", slog.Any("error", err))
		return err
	}
	if previousKey != "" && previousKey != objectName {
		if err := h.storage.DeleteObject(ctx, previousKey); err != nil {
			log.Warn("delete previous final document failed", slog.String("object_key", previousKey), slog.Any("error", err))
		}
	}

	metrics.ObserveAssemble(time.Since(start).Seconds(), len(report.Included), len(report.Skipped), report.TotalPages)

	notify := DocumentAssembleNotifyMessage{
		Status:        "completed",
		ResumeID:      row.ID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
		FileName:      assemble.FileName(doc.Title),
		TotalPages:    report.TotalPages,
	}
	if len(report.Skipped) > 0 {
		notify.ErrorCode = errcode.AnnexeSkipped
		notify.ErrorMessage = errcode.Message(errcode.AnnexeSkipped)
		for _, s := range report.Skipped {
			notify.SkippedAnnexes = append(notify.SkippedAnnexes, s.Annexe.ID)
		}
		log.Warn("final document assembled with skipped annexes",
			slog.Int("skipped_count", len(report.Skipped)),
			slog.Any("skipped_ids", notify.SkippedAnnexes),
		)
	}
	if err := publishNotify(ctx, h.redis, row.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("final document assembly completed",
		slog.Int("total_pages", report.TotalPages),
		slog.String("object_key", objectName),
	)
	return nil
}

func (h *AssembleTaskHandler) loadAnnexes(ctx context.Context, userID uint, refs []resume.AnnexeRef) ([]resume.Annexe, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.AnnexeID)
	}
	var rows []database.Annexe
	if err := h.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	all := make([]resume.Annexe, 0, len(rows))
	for i := range rows {
		all = append(all, rows[i].Domain(""))
	}
	return resume.ResolveAnnexes(refs, all), nil
}

func renderParams(payload tasks.DocumentAssemblePayload, doc *resume.Document) assemble.RenderParams {
	params := assemble.RenderParams{
		Template:    payload.Template,
		AccentColor: payload.AccentColor,
	}
	if params.Template == "" {
		params.Template = doc.Template
	}
	if params.AccentColor == "" {
		params.AccentColor = doc.AccentColor
	}
	if lang, err := i18n.ParseLanguage(payload.Language); err == nil {
		params.Language = lang
	}
	return params
}

var errResultUpload = errors.New("upload final document")

// failureCode 把合成错误映射为通知错误码。
func failureCode(err error) int {
	switch {
	case errors.Is(err, assemble.ErrResumeRender):
		return errcode.ResumeRender
	case errors.Is(err, assemble.ErrMerge):
		return errcode.AnnexeMerge
	case errors.Is(err, errResultUpload):
		return errcode.ResultUpload
	}
	return errcode.SystemError
}

func failureNotify(resumeID, correlationID string, err error) DocumentAssembleNotifyMessage {
	code := failureCode(err)
	return DocumentAssembleNotifyMessage{
		Status:        "error",
		ResumeID:      resumeID,
		CorrelationID: correlationID,
		ErrorCode:     code,
		ErrorMessage:  errcode.Message(code) + ": " + strings.TrimSpace(err.Error()),
	}
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}

// DecodeNotify 解析通知消息，供 WebSocket 转发与 CLI 等待使用。
func DecodeNotify(data []byte) (DocumentAssembleNotifyMessage, error) {
	var msg DocumentAssembleNotifyMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}
