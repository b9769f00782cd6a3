package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/i18n"
	"cvforge/internal/resume"
	"cvforge/internal/translate"
)

// AIHandler 把翻译、润色与简历解析转发给 AI 服务。
type AIHandler struct {
	db     *gorm.DB
	ai     AIService
	logger *slog.Logger
}

func NewAIHandler(db *gorm.DB, ai AIService, logger *slog.Logger) *AIHandler {
	return &AIHandler{db: db, ai: ai, logger: logger}
}

type translateRequest struct {
	ResumeData     translate.Payload `json:"resumeData"`
	TargetLanguage string            `json:"targetLanguage" binding:"required"`
}

// Translate 翻译简历中的展示文本。
func (h *AIHandler) Translate(c *gin.Context) {
	var req translateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	target, err := i18n.ParseLanguage(req.TargetLanguage)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}
	out, err := h.ai.Translate(c.Request.Context(), req.ResumeData, target)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("translate resume failed", slog.String("target", string(target)), slog.Any("error", err))
		BadGateway(c, "translation failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"translatedData": out})
}

type enhanceRequest struct {
	UserContent string `json:"userContent" binding:"required"`
}

// EnhanceJobDescription 润色一段职位描述。
func (h *AIHandler) EnhanceJobDescription(c *gin.Context) {
	var req enhanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	out, err := h.ai.EnhanceJobDescription(c.Request.Context(), req.UserContent)
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("enhance job description failed", slog.Any("error", err))
		BadGateway(c, "enhancement failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"enhancedContent": out})
}

type uploadResumeRequest struct {
	Title      string `json:"title"`
	ResumeText string `json:"resumeText" binding:"required"`
}

// UploadResume 让 AI 服务把纯文本简历解析为结构化数据，并保存为新简历。
func (h *AIHandler) UploadResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	var req uploadResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	logger := middleware.LoggerOr(c, h.logger)
	ctx := c.Request.Context()

	raw, err := h.ai.StructureResume(ctx, req.ResumeText)
	if err != nil {
		logger.Error("structure resume failed", slog.Any("error", err))
		BadGateway(c, "failed to parse resume text")
		return
	}
	if err := resume.ValidateJSON(raw); err != nil {
		logger.Warn("ai returned invalid resume data", slog.Any("error", err))
		BadGateway(c, "failed to parse resume text")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultResumeTitle
	}
	doc := resume.New(title)
	if err := json.Unmarshal(raw, doc); err != nil {
		BadGateway(c, "failed to parse resume text")
		return
	}
	doc.ID, doc.UserID = "", ""
	doc.Title = title
	doc.Slug = ""
	doc.Public = false
	doc.Annexes = []resume.AnnexeRef{}

	row := database.Resume{UserID: userID}
	if err := row.SetDocument(doc); err != nil {
		Internal(c, "failed to encode resume")
		return
	}
	if err := h.db.WithContext(ctx).Create(&row).Error; err != nil {
		logger.Error("create imported resume failed", slog.Any("error", err))
		Internal(c, "failed to create resume")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"resumeId": row.ID})
}
