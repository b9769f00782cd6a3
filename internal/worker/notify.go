package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DocumentAssembleNotifyMessage 是通过 Redis Pub/Sub 转发给 WebSocket 客户端的合成结果。
type DocumentAssembleNotifyMessage struct {
	Status         string   `json:"status"`
	ResumeID       string   `json:"resume_id"`
	CorrelationID  string   `json:"correlation_id"`
	ErrorCode      int      `json:"error_code"`
	ErrorMessage   string   `json:"error_message"`
	FileName       string   `json:"file_name,omitempty"`
	TotalPages     int      `json:"total_pages,omitempty"`
	SkippedAnnexes []string `json:"skipped_annexes,omitempty"`
}

// NotifyChannel 返回用户的通知频道。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

func publishNotify(ctx context.Context, client redis.UniversalClient, userID uint, notify DocumentAssembleNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
