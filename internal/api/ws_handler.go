package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"cvforge/internal/auth"
	"cvforge/internal/errcode"
	"cvforge/internal/worker"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// wsRejection 是认证阶段的拒绝原因，会以 close frame 发回客户端。
type wsRejection struct {
	code   int
	reason string
	err    error
}

func (r *wsRejection) Error() string { return r.reason + ": " + r.err.Error() }

func reject(reason string, err error) *wsRejection {
	return &wsRejection{code: websocket.ClosePolicyViolation, reason: reason, err: err}
}

// WsHandler 通过 WebSocket 把最终文档合成结果推送给用户。
// 连接建立后客户端必须在 10 秒内发送 {"type":"auth","token":"<access token>"}。
type WsHandler struct {
	redisClient redis.UniversalClient
	authService *auth.AuthService
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

func NewWsHandler(redisClient redis.UniversalClient, authService *auth.AuthService, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WsHandler{
		redisClient: redisClient,
		authService: authService,
		logger:      logger,
		upgrader:    websocket.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
	}
}

// originChecker 未配置白名单时只允许同源。
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			return slices.Contains(allowed, origin)
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection 完成认证后订阅 user_notify:<id> 并转发消息，直到任一方断开。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn)
	if err != nil {
		var rej *wsRejection
		if errors.As(err, &rej) {
			writeClose(conn, rej.code, rej.reason)
		}
		log.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))
	log.Info("websocket authenticated")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 认证后客户端消息一律丢弃，读取只用于发现断开。
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.forward(ctx, conn, userID, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	log.Info("websocket connection closed")
}

func (h *WsHandler) authenticate(conn *websocket.Conn) (uint, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, message, err := conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("read auth message: %w", err)
	}
	var msg wsAuthMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return 0, reject("invalid auth payload", err)
	}
	if msg.Type != "auth" || msg.Token == "" {
		return 0, reject("auth required", errors.New("first message must be an auth message"))
	}
	claims, err := h.authService.ValidateToken(msg.Token)
	if err != nil {
		return 0, reject("unauthorized", err)
	}
	switch {
	case claims.TokenType != auth.TokenTypeAccess:
		return 0, reject("access token required", fmt.Errorf("token type %q", claims.TokenType))
	case claims.MustChangePassword:
		return 0, reject("password change required", errors.New("password change pending"))
	}
	return claims.UserID, nil
}

func (h *WsHandler) forward(ctx context.Context, conn *websocket.Conn, userID uint, log *slog.Logger) error {
	channel := worker.NotifyChannel(userID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()
	log.Debug("subscribed to notifications", slog.String("channel", channel))

	messages := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("notification channel closed")
			}
			notify, err := worker.DecodeNotify([]byte(msg.Payload))
			if err != nil {
				log.Warn("dropping malformed notification", slog.Any("error", err))
				continue
			}
			level := slog.LevelInfo
			if errcode.Failed(notify.ErrorCode) {
				level = slog.LevelWarn
			}
			log.Log(ctx, level, "forwarding assembly notification",
				slog.String("resume_id", notify.ResumeID),
				slog.String("status", notify.Status),
				slog.Int("error_code", notify.ErrorCode),
			)
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteTimeout))
}
