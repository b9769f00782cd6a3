package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"cvforge/internal/blobcache"
)

// BlobStore 把预览图片托管到服务端 /preview-blobs，实现 blobcache.Store。
type BlobStore struct {
	client *Client
}

func (c *Client) BlobStore() *BlobStore { return &BlobStore{client: c} }

// PreviewBaseURL 是 blobcache.Resolver 需要的地址前缀。
func (c *Client) PreviewBaseURL() string { return c.endpoint("/preview-blobs", nil) }

func (s *BlobStore) Put(ctx context.Context, blob blobcache.Blob) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="preview"`)
	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return "", fmt.Errorf("create preview part: %w", err)
	}
	if _, err := part.Write(blob.Data); err != nil {
		return "", fmt.Errorf("write preview part: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := s.client.newRequest(ctx, http.MethodPost, "/preview-blobs", nil, &buf, w.FormDataContentType())
	if err != nil {
		return "", err
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := s.client.send(req, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (s *BlobStore) Get(ctx context.Context, token string) (blobcache.Blob, error) {
	req, err := s.client.newRequest(ctx, http.MethodGet, "/preview-blobs/"+url.PathEscape(token), nil, nil, "")
	if err != nil {
		return blobcache.Blob{}, err
	}
	data, contentType, err := s.client.sendRaw(req)
	if IsStatus(err, http.StatusNotFound) {
		return blobcache.Blob{}, blobcache.ErrNotFound
	}
	if err != nil {
		return blobcache.Blob{}, err
	}
	return blobcache.Blob{Data: data, ContentType: contentType}, nil
}

func (s *BlobStore) Revoke(ctx context.Context, token string) error {
	err := s.client.doJSON(ctx, http.MethodDelete, "/preview-blobs/"+url.PathEscape(token), nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return nil
	}
	return err
}
