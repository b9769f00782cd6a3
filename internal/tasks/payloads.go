package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeDocumentAssemble = "document:assemble"
)

// DocumentAssemblePayload 描述合成最终文档（简历 + 附件）所需的信息。
type DocumentAssemblePayload struct {
	ResumeID      string `json:"resume_id"`
	UserID        uint   `json:"user_id"`
	Template      string `json:"template,omitempty"`
	AccentColor   string `json:"accent_color,omitempty"`
	Language      string `json:"language,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// NewDocumentAssembleTask 构造一个最终文档合成任务。
func NewDocumentAssembleTask(payload DocumentAssemblePayload, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDocumentAssemble, data, opts...), nil
}

// ParseDocumentAssemblePayload 解析任务负载。
func ParseDocumentAssemblePayload(task *asynq.Task) (DocumentAssemblePayload, error) {
	var payload DocumentAssemblePayload
	err := json.Unmarshal(task.Payload(), &payload)
	return payload, err
}
