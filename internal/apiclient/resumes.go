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

	"cvforge/internal/resume"
	"cvforge/internal/session"
)

type resumeEnvelope struct {
	Message string           `json:"message,omitempty"`
	Resume  *resume.Document `json:"resume"`
}

// ListResumes 返回当前用户的简历列表。
func (c *Client) ListResumes(ctx context.Context) ([]resume.Document, error) {
	var out struct {
		Resumes []resume.Document `json:"resumes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/users/resumes", nil, &out); err != nil {
		return nil, err
	}
	return out.Resumes, nil
}

// CreateResume 以默认内容新建一份简历。
func (c *Client) CreateResume(ctx context.Context, title string) (*resume.Document, error) {
	var out resumeEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/resumes/create", map[string]string{"title": title}, &out); err != nil {
		return nil, err
	}
	return out.Resume, nil
}

func (c *Client) GetResume(ctx context.Context, resumeID string) (*resume.Document, error) {
	var out resumeEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/resumes/"+url.PathEscape(resumeID), nil, &out); err != nil {
		return nil, err
	}
	return out.Resume, nil
}

// CloneResume 复制一份简历，返回副本。
func (c *Client) CloneResume(ctx context.Context, resumeID string) (*resume.Document, error) {
	var out resumeEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/resumes/"+url.PathEscape(resumeID)+"/clone", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out.Resume, nil
}

func (c *Client) DeleteResume(ctx context.Context, resumeID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/resumes/delete/"+url.PathEscape(resumeID), nil, nil)
}

// RenameResume 只更新标题。
func (c *Client) RenameResume(ctx context.Context, resumeID, title string) (*resume.Document, error) {
	return c.UpdateResume(ctx, session.UpdateRequest{ResumeID: resumeID, Data: map[string]any{"title": title}})
}

// UpdateResume 对应 PUT /resumes/update。含待上传图片或去背景标记时走 multipart；
// ResumeID 为空时先创建简历。
func (c *Client) UpdateResume(ctx context.Context, in session.UpdateRequest) (*resume.Document, error) {
	if in.ResumeID == "" {
		title := ""
		if doc, ok := in.Data.(*resume.Document); ok {
			title = doc.Title
		}
		created, err := c.CreateResume(ctx, title)
		if err != nil {
			return nil, fmt.Errorf("create resume: %w", err)
		}
		in.ResumeID = created.ID
	}

	data, err := json.Marshal(in.Data)
	if err != nil {
		return nil, fmt.Errorf("encode resume data: %w", err)
	}

	multipartNeeded := in.Image.Kind() == resume.ImagePending ||
		in.Signature.Kind() == resume.ImagePending ||
		in.RemoveBackground || in.RemoveSignatureBackground

	var req *http.Request
	if !multipartNeeded {
		body, err := json.Marshal(map[string]any{"resumeId": in.ResumeID, "resumeData": json.RawMessage(data)})
		if err != nil {
			return nil, fmt.Errorf("encode update: %w", err)
		}
		req, err = c.newRequest(ctx, http.MethodPut, "/resumes/update", nil, bytes.NewReader(body), "application/json")
		if err != nil {
			return nil, err
		}
	} else {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		_ = w.WriteField("resumeId", in.ResumeID)
		_ = w.WriteField("resumeData", string(data))
		if in.RemoveBackground {
			_ = w.WriteField("removeBackground", "yes")
		}
		if in.RemoveSignatureBackground {
			_ = w.WriteField("removeSignatureBackground", "yes")
		}
		if err := writeImagePart(w, "image", in.Image); err != nil {
			return nil, err
		}
		if err := writeImagePart(w, "signature", in.Signature); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("close multipart: %w", err)
		}
		req, err = c.newRequest(ctx, http.MethodPut, "/resumes/update", nil, &buf, w.FormDataContentType())
		if err != nil {
			return nil, err
		}
	}

	var out resumeEnvelope
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return out.Resume, nil
}

func writeImagePart(w *multipart.Writer, field string, img resume.Image) error {
	if img.Kind() != resume.ImagePending {
		return nil
	}
	filename := img.Filename()
	if filename == "" {
		filename = field
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", img.ContentType())
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", field, err)
	}
	if _, err := part.Write(img.Data()); err != nil {
		return fmt.Errorf("write %s part: %w", field, err)
	}
	return nil
}

// WithAnnexes 是带已解析附件的简历。
type WithAnnexes struct {
	Resume  *resume.Document `json:"resume"`
	Annexes []resume.Annexe  `json:"annexes"`
}

// GetResumeWithAnnexes 返回简历与按顺序排列的附件，悬空引用已被服务端丢弃。
func (c *Client) GetResumeWithAnnexes(ctx context.Context, resumeID string) (WithAnnexes, error) {
	var out WithAnnexes
	err := c.doJSON(ctx, http.MethodGet, "/resumes/"+url.PathEscape(resumeID)+"/with-annexes", nil, &out)
	return out, err
}

// GetPublicResume 按 id 或 slug 读取公开简历，无需登录。
func (c *Client) GetPublicResume(ctx context.Context, idOrSlug string) (WithAnnexes, error) {
	var out WithAnnexes
	err := c.doJSON(ctx, http.MethodGet, "/resumes/public/"+url.PathEscape(idOrSlug)+"/with-annexes", nil, &out)
	return out, err
}
