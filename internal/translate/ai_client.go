package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cvforge/internal/i18n"
)

// AIClient 调用外部 AI 服务完成翻译、职位描述润色与简历文本结构化。
type AIClient struct {
	BaseURL  string
	HTTP     *http.Client
	Attempts int
	Backoff  time.Duration
}

func NewAIClient(baseURL string, timeout time.Duration) *AIClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AIClient{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		HTTP:     &http.Client{Timeout: timeout},
		Attempts: 3,
		Backoff:  time.Second,
	}
}

// ErrAIService 表示 AI 服务返回了非成功状态。
var ErrAIService = errors.New("ai service error")

type translateRequest struct {
	ResumeData     Payload `json:"resumeData"`
	TargetLanguage string  `json:"targetLanguage"`
}

type translateResponse struct {
	TranslatedData Payload `json:"translatedData"`
}

func (c *AIClient) Translate(ctx context.Context, payload Payload, target i18n.Language) (Payload, error) {
	var out translateResponse
	if err := c.postJSON(ctx, "/translate", translateRequest{ResumeData: payload, TargetLanguage: string(target)}, &out); err != nil {
		return Payload{}, err
	}
	return out.TranslatedData, nil
}

// EnhanceJobDescription 润色一段职位描述。
func (c *AIClient) EnhanceJobDescription(ctx context.Context, text string) (string, error) {
	var out struct {
		EnhancedContent string `json:"enhancedContent"`
	}
	if err := c.postJSON(ctx, "/enhance-job-desc", map[string]string{"userContent": text}, &out); err != nil {
		return "", err
	}
	return out.EnhancedContent, nil
}

// StructureResume 把纯文本简历交给 AI 服务解析为 resumeData JSON。
func (c *AIClient) StructureResume(ctx context.Context, text string) (json.RawMessage, error) {
	var out struct {
		ResumeData json.RawMessage `json:"resumeData"`
	}
	if err := c.postJSON(ctx, "/upload-resume", map[string]string{"resumeText": text}, &out); err != nil {
		return nil, err
	}
	return out.ResumeData, nil
}

// RemoveBackground 去除图片背景，返回处理后的图片与类型。
func (c *AIClient) RemoveBackground(ctx context.Context, data []byte, contentType string) ([]byte, string, error) {
	in := struct {
		Image       []byte `json:"image"`
		ContentType string `json:"contentType"`
	}{Image: data, ContentType: contentType}
	var out struct {
		Image       []byte `json:"image"`
		ContentType string `json:"contentType"`
	}
	if err := c.postJSON(ctx, "/remove-background", in, &out); err != nil {
		return nil, "", err
	}
	if len(out.Image) == 0 {
		return nil, "", fmt.Errorf("%w: empty image from /remove-background", ErrAIService)
	}
	if out.ContentType == "" {
		out.ContentType = "image/png"
	}
	return out.Image, out.ContentType, nil
}

func (c *AIClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode ai request: %w", err)
	}
	resp, err := c.doPostWithRetry(ctx, path, body)
	if err != nil {
		return fmt.Errorf("call ai service %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read ai response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %d: %s", ErrAIService, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode ai response: %w", err)
	}
	return nil
}

// doPostWithRetry 对连接错误与 5xx 做指数退避重试。
func (c *AIClient) doPostWithRetry(ctx context.Context, path string, body []byte) (*http.Response, error) {
	attempts := max(c.Attempts, 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTP.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err == nil {
			lastErr = fmt.Errorf("%w: status %d", ErrAIService, resp.StatusCode)
			if i == attempts-1 {
				return resp, nil
			}
			_ = resp.Body.Close()
		} else {
			lastErr = err
		}
		if i < attempts-1 {
			backoff := c.Backoff * time.Duration(1<<i)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}
