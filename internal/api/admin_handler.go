package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/database"
	"cvforge/internal/storage"
)

// recentWindow 是统计“最近新增”的时间窗口。
const recentWindow = 7 * 24 * time.Hour

// PrefixDeleter 是可选能力：按前缀批量删除对象。
type PrefixDeleter interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// AdminHandler 提供管理后台的统计与清理接口。
type AdminHandler struct {
	db      *gorm.DB
	storage ObjectStore
	logger  *slog.Logger
}

func NewAdminHandler(db *gorm.DB, objects ObjectStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{db: db, storage: objects, logger: logger}
}

type adminStats struct {
	TotalUsers    int64 `json:"totalUsers"`
	RecentUsers   int64 `json:"recentUsers"`
	TotalResumes  int64 `json:"totalResumes"`
	RecentResumes int64 `json:"recentResumes"`
	PublicResumes int64 `json:"publicResumes"`
	TotalAnnexes  int64 `json:"totalAnnexes"`
}

// Stats 返回用户、简历与附件的数量统计。
func (h *AdminHandler) Stats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	since := time.Now().Add(-recentWindow)

	var stats adminStats
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, db.Model(&database.User{})},
		{&stats.RecentUsers, db.Model(&database.User{}).Where("created_at >= ?", since)},
		{&stats.TotalResumes, db.Model(&database.Resume{})},
		{&stats.RecentResumes, db.Model(&database.Resume{}).Where("created_at >= ?", since)},
		{&stats.PublicResumes, db.Model(&database.Resume{}).Where("public = ?", true)},
		{&stats.TotalAnnexes, db.Model(&database.Annexe{})},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dst).Error; err != nil {
			middleware.LoggerOr(c, h.logger).Error("admin stats query failed", slog.Any("error", err))
			Internal(c, "failed to load stats")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

type adminUser struct {
	ID          uint      `json:"id"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
	ResumeCount int64     `json:"resume_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Users 列出全部用户。
func (h *AdminHandler) Users(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	var rows []database.User
	if err := db.Order("created_at DESC").Find(&rows).Error; err != nil {
		middleware.LoggerOr(c, h.logger).Error("admin list users failed", slog.Any("error", err))
		Internal(c, "failed to list users")
		return
	}
	var counts []struct {
		UserID uint
		Total  int64
	}
	if err := db.Model(&database.Resume{}).
		Select("user_id, COUNT(*) AS total").
		Group("user_id").
		Scan(&counts).Error; err != nil {
		middleware.LoggerOr(c, h.logger).Error("admin count resumes failed", slog.Any("error", err))
		Internal(c, "failed to list users")
		return
	}
	perUser := make(map[uint]int64, len(counts))
	for _, n := range counts {
		perUser[n.UserID] = n.Total
	}

	out := make([]adminUser, 0, len(rows))
	for _, r := range rows {
		role := "user"
		if r.IsAdmin {
			role = "admin"
		}
		out = append(out, adminUser{
			ID:          r.ID,
			Username:    r.Username,
			Role:        role,
			ResumeCount: perUser[r.ID],
			CreatedAt:   r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

type adminResume struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug,omitempty"`
	Public    bool      `json:"public"`
	UserID    uint      `json:"user_id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resumes 列出全部简历及其所有者。
func (h *AdminHandler) Resumes(c *gin.Context) {
	var rows []database.Resume
	if err := h.db.WithContext(c.Request.Context()).
		Preload("User").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		middleware.LoggerOr(c, h.logger).Error("admin list resumes failed", slog.Any("error", err))
		Internal(c, "failed to list resumes")
		return
	}
	out := make([]adminResume, 0, len(rows))
	for _, r := range rows {
		item := adminResume{
			ID:        r.ID,
			Title:     r.Title,
			Public:    r.Public,
			UserID:    r.UserID,
			Owner:     r.User.Username,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		}
		if r.Slug != nil {
			item.Slug = *r.Slug
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, gin.H{"resumes": out})
}

// DeleteUser 删除普通用户及其全部简历、附件与文件；管理员不可删除。
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid user id")
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerOr(c, h.logger).With(slog.Uint64("target_user_id", id))

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "User not found")
			return
		}
		Internal(c, "failed to query user")
		return
	}
	if user.IsAdmin {
		Forbidden(c, "cannot delete an admin user")
		return
	}

	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&database.Resume{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&database.Annexe{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&user).Error
	})
	if err != nil {
		logger.Error("admin delete user failed", slog.Any("error", err))
		Internal(c, "failed to delete user")
		return
	}

	if deleter, ok := h.storage.(PrefixDeleter); ok {
		for _, prefix := range []string{storage.PrefixImages, storage.PrefixAnnexes, storage.PrefixFinalDocuments} {
			userPrefix := fmt.Sprintf("%s%d/", prefix, user.ID)
			if err := deleter.DeletePrefix(ctx, userPrefix); err != nil {
				logger.Warn("delete user objects failed", slog.String("prefix", userPrefix), slog.Any("error", err))
			}
		}
	}

	logger.Info("user deleted by admin")
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// DeleteResume 删除任意一份简历。
func (h *AdminHandler) DeleteResume(c *gin.Context) {
	ctx := c.Request.Context()
	var row database.Resume
	if err := h.db.WithContext(ctx).First(&row, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "Resume not found")
			return
		}
		Internal(c, "failed to query resume")
		return
	}
	logger := middleware.LoggerOr(c, h.logger).With(slog.String("resume_id", row.ID))
	if err := h.db.WithContext(ctx).Delete(&database.Resume{}, "id = ?", row.ID).Error; err != nil {
		logger.Error("admin delete resume failed", slog.Any("error", err))
		Internal(c, "failed to delete resume")
		return
	}
	if row.FinalPDFKey != "" {
		if err := h.storage.DeleteObject(ctx, row.FinalPDFKey); err != nil {
			logger.Warn("delete final document failed", slog.Any("error", err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Resume deleted successfully"})
}
