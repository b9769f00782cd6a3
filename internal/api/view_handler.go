package api

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/i18n"
	"cvforge/internal/preview"
)

var notFoundPage = template.Must(template.New("not-found").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Resume not found</title></head>
<body style="font-family: sans-serif; text-align: center; padding: 4rem 1rem;">
  <h1>Resume not found</h1>
  <p>The resume you are looking for does not exist or is not public.</p>
  <a href="{{.Home}}">Go to home page</a>
</body>
</html>`))

// ViewHandler 把公开简历渲染为独立的 HTML 页面。
type ViewHandler struct {
	db       *gorm.DB
	composer *preview.Composer
	logger   *slog.Logger
}

func NewViewHandler(db *gorm.DB, composer *preview.Composer, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{db: db, composer: composer, logger: logger}
}

// View 处理 GET /view/:slug，参数可以是 slug 或简历 id。
func (h *ViewHandler) View(c *gin.Context) {
	row, err := findPublicResume(c.Request.Context(), h.db, c.Param("slug"))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.LoggerOr(c, h.logger).Error("query public resume failed", slog.Any("error", err))
		}
		h.notFound(c)
		return
	}
	doc, err := row.Document()
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("decode public resume failed", slog.String("resume_id", row.ID), slog.Any("error", err))
		h.notFound(c)
		return
	}

	lang := i18n.EN
	if parsed, err := i18n.ParseLanguage(c.Query("lang")); err == nil {
		lang = parsed
	}
	page, err := h.composer.Compose(c.Request.Context(), preview.Request{Document: doc, Language: lang})
	if err != nil {
		middleware.LoggerOr(c, h.logger).Error("compose public resume failed", slog.String("resume_id", row.ID), slog.Any("error", err))
		Internal(c, "failed to render resume")
		return
	}
	c.Header("Cache-Control", "public, max-age=60")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page.HTML))
}

func (h *ViewHandler) notFound(c *gin.Context) {
	c.Status(http.StatusNotFound)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := notFoundPage.Execute(c.Writer, struct{ Home string }{Home: "/"}); err != nil {
		middleware.LoggerOr(c, h.logger).Error("render not found page failed", slog.Any("error", err))
	}
}
