package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/resume"
	"cvforge/internal/storage"
)

const defaultResumeTitle = "Untitled Resume"

var (
	errInvalidResumeData = errors.New("resumeData must be a JSON object")
	errFileTooLarge      = errors.New("file is too large")
	errUnsupportedImage  = errors.New("image must be png, jpeg or webp")
	errSlugTaken         = errors.New("this custom URL is already taken")
)

// ResumeHandler 负责简历的增删改查、附件分配与公开访问。
type ResumeHandler struct {
	db            *gorm.DB
	storage       ObjectStore
	ai            AIService
	scanner       Scanner
	publicBaseURL string
	maxImageSize  int64
	logger        *slog.Logger
}

// NewResumeHandler 构造 ResumeHandler。ai 为空时忽略去背景请求。
func NewResumeHandler(db *gorm.DB, objects ObjectStore, ai AIService, scanner Scanner, publicBaseURL string, maxImageSize int64, logger *slog.Logger) *ResumeHandler {
	if scanner == nil {
		scanner = noopScanner{}
	}
	return &ResumeHandler{
		db:            db,
		storage:       objects,
		ai:            ai,
		scanner:       scanner,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxImageSize:  maxImageSize,
		logger:        logger,
	}
}

type resumeEnvelope struct {
	Message string           `json:"message,omitempty"`
	Resume  *resume.Document `json:"resume"`
}

type withAnnexesResponse struct {
	Resume  *resume.Document `json:"resume"`
	Annexes []resume.Annexe  `json:"annexes"`
}

// ListResumes 返回当前用户的全部简历，最近修改的在前。
func (h *ResumeHandler) ListResumes(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	logger := middleware.LoggerOr(c, h.logger)

	var rows []database.Resume
	if err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error; err != nil {
		logger.Error("list resumes failed", slog.Any("error", err))
		Internal(c, "failed to list resumes")
		return
	}

	docs := make([]*resume.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].Document()
		if err != nil {
			logger.Warn("skip undecodable resume", slog.String("resume_id", rows[i].ID), slog.Any("error", err))
			continue
		}
		docs = append(docs, doc)
	}
	c.JSON(http.StatusOK, gin.H{"resumes": docs})
}

type createResumeRequest struct {
	Title string `json:"title" binding:"max=200"`
}

// CreateResume 以默认内容新建简历。
func (h *ResumeHandler) CreateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req createResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, err.Error())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultResumeTitle
	}

	row := database.Resume{UserID: userID}
	if err := row.SetDocument(resume.New(title)); err != nil {
		Internal(c, "failed to create resume")
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&row).Error; err != nil {
		middleware.LoggerOr(c, h.logger).Error("create resume failed", slog.Any("error", err))
		Internal(c, "failed to create resume")
		return
	}
	h.respondResume(c, http.StatusCreated, "Resume created successfully", &row)
}

// GetResume 返回当前用户的一份简历。
func (h *ResumeHandler) GetResume(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}
	h.respondResume(c, http.StatusOK, "", row)
}

// UpdateResume 处理 PUT /resumes/update。resumeData 为部分字段时只覆盖出现的顶层字段；
// multipart 请求可附带 image 与 signature 文件。
func (h *ResumeHandler) UpdateResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerOr(c, h.logger)

	in, err := parseUpdateRequest(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if in.resumeID == "" {
		BadRequest(c, "resumeId is required")
		return
	}
	if len(in.data) == 0 {
		BadRequest(c, "resumeData is required")
		return
	}

	row, ok := h.loadOwned(c, in.resumeID)
	if !ok {
		return
	}
	current, err := row.Document()
	if err != nil {
		logger.Error("decode stored resume failed", slog.String("resume_id", row.ID), slog.Any("error", err))
		Internal(c, "failed to load resume")
		return
	}

	merged, err := mergeResumeData(current, in.data)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := resume.ValidateJSON(merged); err != nil {
		BadRequest(c, err.Error())
		return
	}
	doc := resume.New("")
	if err := json.Unmarshal(merged, doc); err != nil {
		BadRequest(c, "invalid resumeData: "+err.Error())
		return
	}
	doc.Slug = resume.NormalizeSlug(doc.Slug)
	if err := resume.ValidateSlug(doc.Slug); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if err := h.ensureSlugAvailable(ctx, doc.Slug, row.ID); err != nil {
		if errors.Is(err, errSlugTaken) {
			Conflict(c, err.Error())
			return
		}
		Internal(c, "failed to check slug")
		return
	}

	var uploaded []string
	if in.image != nil {
		url, key, err := h.storeImage(ctx, userID, "photo", in.image, in.removeBackground)
		if err != nil {
			h.respondImageError(c, err)
			return
		}
		doc.PersonalInfo.Image = resume.RemoteImage(url)
		uploaded = append(uploaded, key)
	}
	if in.signature != nil {
		url, key, err := h.storeImage(ctx, userID, "signature", in.signature, in.removeSignatureBackground)
		if err != nil {
			h.cleanup(ctx, logger, uploaded...)
			h.respondImageError(c, err)
			return
		}
		doc.Signature.Image = resume.RemoteImage(url)
		uploaded = append(uploaded, key)
	}

	if err := row.SetDocument(doc); err != nil {
		h.cleanup(ctx, logger, uploaded...)
		Internal(c, "failed to encode resume")
		return
	}
	if err := h.db.WithContext(ctx).Save(row).Error; err != nil {
		h.cleanup(ctx, logger, uploaded...)
		logger.Error("save resume failed", slog.String("resume_id", row.ID), slog.Any("error", err))
		Internal(c, "failed to update resume")
		return
	}

	h.releaseReplacedImage(ctx, logger, current.PersonalInfo.Image, doc.PersonalInfo.Image)
	h.releaseReplacedImage(ctx, logger, current.Signature.Image, doc.Signature.Image)
	h.respondResume(c, http.StatusOK, "Saved successfully", row)
}

// GetResumeWithAnnexes 返回简历及按顺序排列的附件，悬空引用被丢弃。
func (h *ResumeHandler) GetResumeWithAnnexes(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}
	h.respondWithAnnexes(c, row)
}

// GetPublicResumeWithAnnexes 按 id 或 slug 读取公开简历，无需登录。
func (h *ResumeHandler) GetPublicResumeWithAnnexes(c *gin.Context) {
	row, err := findPublicResume(c.Request.Context(), h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "Resume not found")
			return
		}
		Internal(c, "failed to load resume")
		return
	}
	h.respondWithAnnexes(c, row)
}

type replaceAnnexesRequest struct {
	Annexes []resume.AnnexeRef `json:"annexes"`
}

// ReplaceAnnexes 整体替换简历的附件引用。
func (h *ResumeHandler) ReplaceAnnexes(c *gin.Context) {
	var req replaceAnnexesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}
	ctx := c.Request.Context()

	refs, err := validateAssignments(req.Annexes)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	if len(refs) > 0 {
		ids := make([]string, len(refs))
		for i, ref := range refs {
			ids[i] = ref.AnnexeID
		}
		var count int64
		if err := h.db.WithContext(ctx).Model(&database.Annexe{}).
			Where("user_id = ? AND id IN ?", row.UserID, ids).
			Count(&count).Error; err != nil {
			Internal(c, "failed to verify annexes")
			return
		}
		if int(count) != len(ids) {
			BadRequest(c, "unknown annexe in assignment")
			return
		}
	}

	doc, err := row.Document()
	if err != nil {
		Internal(c, "failed to load resume")
		return
	}
	doc.Annexes = refs
	if err := row.SetDocument(doc); err != nil {
		Internal(c, "failed to encode resume")
		return
	}
	if err := h.db.WithContext(ctx).Save(row).Error; err != nil {
		middleware.LoggerOr(c, h.logger).Error("save annexe assignment failed", slog.Any("error", err))
		Internal(c, "failed to update annexes")
		return
	}
	h.respondResume(c, http.StatusOK, "Annexes updated", row)
}

// CloneResume 复制一份简历；副本不公开且不带 slug。
func (h *ResumeHandler) CloneResume(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}
	doc, err := row.Document()
	if err != nil {
		Internal(c, "failed to load resume")
		return
	}
	copied := doc.Clone()
	copied.ID = ""
	copied.Title = doc.Title + " (Copy)"
	copied.Slug = ""
	copied.Public = false

	clone := database.Resume{UserID: row.UserID}
	if err := clone.SetDocument(copied); err != nil {
		Internal(c, "failed to encode resume")
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&clone).Error; err != nil {
		middleware.LoggerOr(c, h.logger).Error("clone resume failed", slog.Any("error", err))
		Internal(c, "failed to clone resume")
		return
	}
	h.respondResume(c, http.StatusCreated, "Resume cloned successfully", &clone)
}

// DeleteResume 删除简历及其最终文档。
func (h *ResumeHandler) DeleteResume(c *gin.Context) {
	row, ok := h.loadOwned(c, c.Param("id"))
	if !ok {
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerOr(c, h.logger)
	if err := h.db.WithContext(ctx).Delete(&database.Resume{}, "id = ?", row.ID).Error; err != nil {
		logger.Error("delete resume failed", slog.Any("error", err))
		Internal(c, "failed to delete resume")
		return
	}
	h.cleanup(ctx, logger, row.FinalPDFKey)
	c.JSON(http.StatusOK, gin.H{"message": "Resume deleted successfully"})
}

func (h *ResumeHandler) loadOwned(c *gin.Context, resumeID string) (*database.Resume, bool) {
	return loadOwnedResume(c, h.db, h.logger, resumeID)
}

// loadOwnedResume 读取当前用户的简历，失败时已写出响应。
func loadOwnedResume(c *gin.Context, db *gorm.DB, fallback *slog.Logger, resumeID string) (*database.Resume, bool) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return nil, false
	}
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		BadRequest(c, "invalid resume id")
		return nil, false
	}
	var row database.Resume
	if err := db.WithContext(c.Request.Context()).
		Where("id = ? AND user_id = ?", resumeID, userID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "Resume not found")
			return nil, false
		}
		middleware.LoggerOr(c, fallback).Error("query resume failed", slog.Any("error", err))
		Internal(c, "failed to query resume")
		return nil, false
	}
	return &row, true
}

func (h *ResumeHandler) respondResume(c *gin.Context, status int, message string, row *database.Resume) {
	doc, err := row.Document()
	if err != nil {
		Internal(c, "failed to decode resume")
		return
	}
	c.JSON(status, resumeEnvelope{Message: message, Resume: doc})
}

func (h *ResumeHandler) respondWithAnnexes(c *gin.Context, row *database.Resume) {
	doc, err := row.Document()
	if err != nil {
		Internal(c, "failed to decode resume")
		return
	}
	annexes, err := loadAssignedAnnexes(c.Request.Context(), h.db, row.UserID, doc.Annexes, h.fileURL)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("load annexes failed", slog.Any("error", err))
		Internal(c, "failed to load annexes")
		return
	}
	ids := make([]string, len(annexes))
	for i, a := range annexes {
		ids[i] = a.ID
	}
	doc.Annexes = resume.AssignmentsFrom(ids)
	c.JSON(http.StatusOK, withAnnexesResponse{Resume: doc, Annexes: annexes})
}

func (h *ResumeHandler) ensureSlugAvailable(ctx context.Context, slug, resumeID string) error {
	if slug == "" {
		return nil
	}
	var count int64
	if err := h.db.WithContext(ctx).Model(&database.Resume{}).
		Where("slug = ? AND id <> ?", slug, resumeID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errSlugTaken
	}
	return nil
}

// storeImage 上传头像或签名图片，返回公开地址与对象 key。
func (h *ResumeHandler) storeImage(ctx context.Context, userID uint, kind string, file *multipart.FileHeader, removeBackground bool) (string, string, error) {
	data, err := readFormFile(file, h.maxImageSize)
	if err != nil {
		return "", "", err
	}
	contentType := http.DetectContentType(data)
	if _, ok := storage.ImageExtension(contentType); !ok {
		return "", "", errUnsupportedImage
	}
	if err := h.scanner.Scan(ctx, data); err != nil {
		return "", "", err
	}
	if removeBackground && h.ai != nil {
		cleaned, cleanedType, err := h.ai.RemoveBackground(ctx, data, contentType)
		if err != nil {
			return "", "", fmt.Errorf("remove background: %w", err)
		}
		if _, ok := storage.ImageExtension(cleanedType); ok {
			data, contentType = cleaned, cleanedType
		}
	}
	ext, _ := storage.ImageExtension(contentType)
	key := storage.ImageKey(userID, kind, ext)
	if err := h.storage.PutBytes(ctx, key, data, contentType); err != nil {
		return "", "", fmt.Errorf("upload %s: %w", kind, err)
	}
	return h.fileURL(key), key, nil
}

func (h *ResumeHandler) respondImageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errFileTooLarge):
		TooLarge(c, err.Error())
	case errors.Is(err, errUnsupportedImage), errors.Is(err, ErrMaliciousFile):
		BadRequest(c, err.Error())
	default:
		middleware.LoggerOr(c, h.logger).Error("store image failed", slog.Any("error", err))
		Internal(c, "failed to upload image")
	}
}

// releaseReplacedImage 删除被替换掉的自有图片。
func (h *ResumeHandler) releaseReplacedImage(ctx context.Context, logger *slog.Logger, before, after resume.Image) {
	if before.Kind() != resume.ImageRemote || before.Equal(after) {
		return
	}
	key, ok := objectKeyFromFileURL(h.publicBaseURL, before.URL())
	if !ok || !strings.HasPrefix(key, storage.PrefixImages) {
		return
	}
	h.cleanup(ctx, logger, key)
}

func (h *ResumeHandler) cleanup(ctx context.Context, logger *slog.Logger, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := h.storage.DeleteObject(ctx, key); err != nil {
			logger.Warn("delete object failed", slog.String("object_key", key), slog.Any("error", err))
		}
	}
}

func (h *ResumeHandler) fileURL(key string) string {
	return fileURL(h.publicBaseURL, key)
}

type updateRequest struct {
	resumeID                  string
	data                      []byte
	image                     *multipart.FileHeader
	signature                 *multipart.FileHeader
	removeBackground          bool
	removeSignatureBackground bool
}

func parseUpdateRequest(c *gin.Context) (updateRequest, error) {
	var in updateRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		in.resumeID = strings.TrimSpace(c.PostForm("resumeId"))
		in.data = []byte(c.PostForm("resumeData"))
		in.removeBackground = c.PostForm("removeBackground") == "yes"
		in.removeSignatureBackground = c.PostForm("removeSignatureBackground") == "yes"
		var err error
		if in.image, err = optionalFormFile(c, "image"); err != nil {
			return in, err
		}
		if in.signature, err = optionalFormFile(c, "signature"); err != nil {
			return in, err
		}
		return in, nil
	}

	var body struct {
		ResumeID   string          `json:"resumeId"`
		ResumeData json.RawMessage `json:"resumeData"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return in, err
	}
	in.resumeID = strings.TrimSpace(body.ResumeID)
	in.data = body.ResumeData
	return in, nil
}

func optionalFormFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	file, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return file, nil
}

// mergeResumeData 用 patch 的顶层字段覆盖当前简历，返回合并后的 JSON。
func mergeResumeData(current *resume.Document, patch []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil || fields == nil {
		return nil, errInvalidResumeData
	}
	base, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	for _, k := range []string{"_id", "userId", "updatedAt"} {
		delete(merged, k)
	}
	return json.Marshal(merged)
}

// validateAssignments 要求不超过上限、id 不重复、order 恰好为 1..n，返回按 order 排序的引用。
func validateAssignments(in []resume.AnnexeRef) ([]resume.AnnexeRef, error) {
	if len(in) > resume.MaxAnnexes {
		return nil, fmt.Errorf("a resume can have at most %d annexes", resume.MaxAnnexes)
	}
	refs := append([]resume.AnnexeRef{}, in...)
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Order < refs[j].Order })
	seen := make(map[string]struct{}, len(refs))
	for i, ref := range refs {
		if strings.TrimSpace(ref.AnnexeID) == "" {
			return nil, errors.New("annexeId is required")
		}
		if _, dup := seen[ref.AnnexeID]; dup {
			return nil, fmt.Errorf("annexe %s is assigned twice", ref.AnnexeID)
		}
		seen[ref.AnnexeID] = struct{}{}
		if ref.Order != i+1 {
			return nil, errors.New("annexe orders must be consecutive starting at 1")
		}
	}
	return refs, nil
}

func readFormFile(file *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit > 0 && file.Size > limit {
		return nil, errFileTooLarge
	}
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	reader := io.Reader(f)
	if limit > 0 {
		reader = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, errFileTooLarge
	}
	return data, nil
}
