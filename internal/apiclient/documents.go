package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"cvforge/internal/assemble"
	"cvforge/internal/i18n"
	"cvforge/internal/resume"
	"cvforge/internal/translate"
)

// ListAnnexes 返回当前用户的全部附件。
func (c *Client) ListAnnexes(ctx context.Context) ([]resume.Annexe, error) {
	var out struct {
		Annexes []resume.Annexe `json:"annexes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/annexes/list", nil, &out); err != nil {
		return nil, err
	}
	return out.Annexes, nil
}

// UploadAnnexe 上传一个 PDF 附件。
func (c *Client) UploadAnnexe(ctx context.Context, title, filename string, data []byte) (resume.Annexe, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("title", title)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", "application/pdf")
	part, err := w.CreatePart(h)
	if err != nil {
		return resume.Annexe{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return resume.Annexe{}, fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return resume.Annexe{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/annexes/upload", nil, &buf, w.FormDataContentType())
	if err != nil {
		return resume.Annexe{}, err
	}
	var out struct {
		Annexe resume.Annexe `json:"annexe"`
	}
	if err := c.send(req, &out); err != nil {
		return resume.Annexe{}, err
	}
	return out.Annexe, nil
}

func (c *Client) DeleteAnnexe(ctx context.Context, annexeID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/annexes/delete/"+url.PathEscape(annexeID), nil, nil)
}

// ReplaceAnnexes 整体替换简历的附件引用。
func (c *Client) ReplaceAnnexes(ctx context.Context, resumeID string, refs []resume.AnnexeRef) error {
	if refs == nil {
		refs = []resume.AnnexeRef{}
	}
	body := map[string]any{"annexes": refs}
	return c.doJSON(ctx, http.MethodPut, "/resumes/"+url.PathEscape(resumeID)+"/annexes", body, nil)
}

// Translate 调用服务端翻译接口。
func (c *Client) Translate(ctx context.Context, payload translate.Payload, target i18n.Language) (translate.Payload, error) {
	in := map[string]any{"resumeData": payload, "targetLanguage": string(target)}
	var out struct {
		TranslatedData translate.Payload `json:"translatedData"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/ai/translate", in, &out); err != nil {
		return translate.Payload{}, err
	}
	return out.TranslatedData, nil
}

// EnhanceJobDescription 润色职位描述。
func (c *Client) EnhanceJobDescription(ctx context.Context, text string) (string, error) {
	var out struct {
		EnhancedContent string `json:"enhancedContent"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/ai/enhance-job-desc", map[string]string{"userContent": text}, &out); err != nil {
		return "", err
	}
	return out.EnhancedContent, nil
}

// ImportResumeText 由纯文本简历生成新简历，返回其 id。
func (c *Client) ImportResumeText(ctx context.Context, title, text string) (string, error) {
	var out struct {
		ResumeID string `json:"resumeId"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/ai/upload-resume", map[string]string{"title": title, "resumeText": text}, &out); err != nil {
		return "", err
	}
	return out.ResumeID, nil
}

// RenderPDF 由服务端渲染简历 PDF。
func (c *Client) RenderPDF(ctx context.Context, resumeID string, params assemble.RenderParams) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode render params: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/resumes/"+url.PathEscape(resumeID)+"/generate-pdf", nil, bytes.NewReader(body), "application/json")
	if err != nil {
		return nil, err
	}
	data, _, err := c.sendRaw(req)
	return data, err
}

// FetchPDF 通过服务端代理下载附件，规避跨域限制。
func (c *Client) FetchPDF(ctx context.Context, annexe resume.Annexe) ([]byte, error) {
	if annexe.FileURL == "" {
		return nil, fmt.Errorf("annexe %s has no file url", annexe.ID)
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/proxy/pdf", url.Values{"url": {annexe.FileURL}}, nil, "")
	if err != nil {
		return nil, err
	}
	data, _, err := c.sendRaw(req)
	return data, err
}

// RequestFinalPDF 让 worker 异步合成最终文档，返回任务 id。
func (c *Client) RequestFinalPDF(ctx context.Context, resumeID string, params assemble.RenderParams) (string, error) {
	var out struct {
		TaskID string `json:"task_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/resumes/"+url.PathEscape(resumeID)+"/final-pdf", params, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// FinalPDFLink 返回最近一次合成结果的临时下载地址。
func (c *Client) FinalPDFLink(ctx context.Context, resumeID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/resumes/"+url.PathEscape(resumeID)+"/final-pdf/link", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}
