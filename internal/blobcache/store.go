// Package blobcache 保存编辑期间待上传图片的临时预览副本，并签发可撤销的预览地址。
package blobcache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound 表示预览 token 不存在或已过期/被撤销。
var ErrNotFound = errors.New("preview blob not found")

// DefaultTTL 是预览副本的默认存活时间。
const DefaultTTL = 30 * time.Minute

// Blob 是一份预览图片。
type Blob struct {
	Data        []byte
	ContentType string
}

// Store 按 token 保存预览图片。
type Store interface {
	Put(ctx context.Context, blob Blob) (string, error)
	Get(ctx context.Context, token string) (Blob, error)
	Revoke(ctx context.Context, token string) error
}

// MemoryStore 是进程内实现，供 CLI 与测试使用。
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	blobs map[string]memoryEntry
}

type memoryEntry struct {
	blob    Blob
	expires time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, blobs: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(_ context.Context, blob Blob) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[token] = memoryEntry{
		blob:    Blob{Data: append([]byte(nil), blob.Data...), ContentType: blob.ContentType},
		expires: s.now().Add(s.ttl),
	}
	return token, nil
}

func (s *MemoryStore) Get(_ context.Context, token string) (Blob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.blobs[token]
	if !ok {
		return Blob{}, ErrNotFound
	}
	if s.now().After(entry.expires) {
		delete(s.blobs, token)
		return Blob{}, ErrNotFound
	}
	return entry.blob, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, token)
	return nil
}

// Len 返回当前持有的副本数量。
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
