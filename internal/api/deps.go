package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvforge/internal/api/middleware"
	"cvforge/internal/auth"
	"cvforge/internal/blobcache"
	"cvforge/internal/config"
	"cvforge/internal/i18n"
	"cvforge/internal/pdf"
	"cvforge/internal/preview"
	"cvforge/internal/translate"
)

// ObjectStore 是处理器用到的对象存储能力，由 storage.Client 实现。
type ObjectStore interface {
	PutBytes(ctx context.Context, objectName string, data []byte, contentType string) error
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	DeleteObject(ctx context.Context, objectKey string) error
	PresignDownload(ctx context.Context, objectKey string, ttl time.Duration, fileName string) (string, error)
}

// TaskEnqueuer 由 asynq.Client 实现。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AIService 由 translate.AIClient 实现。
type AIService interface {
	Translate(ctx context.Context, payload translate.Payload, target i18n.Language) (translate.Payload, error)
	EnhanceJobDescription(ctx context.Context, text string) (string, error)
	StructureResume(ctx context.Context, text string) (json.RawMessage, error)
	RemoveBackground(ctx context.Context, data []byte, contentType string) ([]byte, string, error)
}

// Deps 汇总 API 处理器的协作者。
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    redis.UniversalClient
	Auth     *auth.AuthService
	Storage  ObjectStore
	Tasks    TaskEnqueuer
	AI       AIService
	Scanner  Scanner
	Composer *preview.Composer
	Engine   pdf.Engine
	Blobs    blobcache.Store
	Logger   *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func userIDFromContext(c *gin.Context) (uint, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint64:
		return uint(v), true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	default:
		return 0, false
	}
}
