package blobcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"cvforge/internal/resume"
)

// Resolver 为待上传图片签发临时预览地址；同一份图片重复解析复用同一个 token。
type Resolver struct {
	store   Store
	baseURL string

	mu     sync.Mutex
	issued map[string]string
}

// NewResolver baseURL 形如 "https://api.example.com/v1/preview-blobs"。
func NewResolver(store Store, baseURL string) *Resolver {
	return &Resolver{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		issued:  make(map[string]string),
	}
}

// ResolveImage 远程图片直接返回 URL，待上传图片返回临时预览地址。
func (r *Resolver) ResolveImage(ctx context.Context, img resume.Image) (string, error) {
	switch img.Kind() {
	case resume.ImageRemote:
		return img.URL(), nil
	case resume.ImagePending:
	default:
		return "", nil
	}

	id := fingerprint(img)
	r.mu.Lock()
	defer r.mu.Unlock()
	if token, ok := r.issued[id]; ok {
		return r.urlFor(token), nil
	}
	token, err := r.store.Put(ctx, Blob{Data: img.Data(), ContentType: img.ContentType()})
	if err != nil {
		return "", err
	}
	r.issued[id] = token
	return r.urlFor(token), nil
}

// Release 撤销某张图片的预览地址；未签发过时不做任何事。
// 相同内容共用一个 token，调用方需确认没有其他位置仍在显示它。
func (r *Resolver) Release(ctx context.Context, img resume.Image) error {
	if img.Kind() != resume.ImagePending {
		return nil
	}
	id := fingerprint(img)
	r.mu.Lock()
	token, ok := r.issued[id]
	delete(r.issued, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.store.Revoke(ctx, token)
}

// Close 撤销全部已签发的预览地址。
func (r *Resolver) Close(ctx context.Context) error {
	r.mu.Lock()
	tokens := make([]string, 0, len(r.issued))
	for _, token := range r.issued {
		tokens = append(tokens, token)
	}
	r.issued = make(map[string]string)
	r.mu.Unlock()

	var firstErr error
	for _, token := range tokens {
		if err := r.store.Revoke(ctx, token); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close resolver: %w", err)
		}
	}
	return firstErr
}

// Outstanding 返回尚未撤销的预览地址数量。
func (r *Resolver) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issued)
}

func (r *Resolver) urlFor(token string) string {
	return r.baseURL + "/" + token
}

func fingerprint(img resume.Image) string {
	h := sha256.New()
	h.Write([]byte(img.Filename()))
	h.Write([]byte{0})
	h.Write([]byte(img.ContentType()))
	h.Write([]byte{0})
	h.Write(img.Data())
	return hex.EncodeToString(h.Sum(nil))
}
