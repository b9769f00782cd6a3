// Package translate 实现简历草稿的双语切换：翻译时保留一代原稿，切回时原样恢复。
package translate

import (
	"context"
	"fmt"
	"sync"

	"cvforge/internal/i18n"
	"cvforge/internal/resume"
)

// Translator 调用翻译服务。
type Translator interface {
	Translate(ctx context.Context, payload Payload, target i18n.Language) (Payload, error)
}

// Swap 持有当前语言与翻译前的原稿（只保留一代）。
type Swap struct {
	translator Translator
	base       i18n.Language

	mu       sync.Mutex
	current  i18n.Language
	original *resume.Document
}

// NewSwap base 是草稿的原始语言。
func NewSwap(translator Translator, base i18n.Language) *Swap {
	return &Swap{translator: translator, base: base, current: base}
}

// Language 返回当前界面语言。
func (s *Swap) Language() i18n.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// HasOriginal 表示是否存在可恢复的原稿。
func (s *Swap) HasOriginal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original != nil
}

// Translate 把草稿翻译到 target。已处于 target 时直接返回原草稿；
// 切回原始语言时恢复原稿而不调用翻译服务。失败时状态不变。
func (s *Swap) Translate(ctx context.Context, doc *resume.Document, target i18n.Language) (*resume.Document, error) {
	if _, err := i18n.LabelsFor(target); err != nil {
		return nil, err
	}
	s.mu.Lock()
	current, hasOriginal := s.current, s.original != nil
	s.mu.Unlock()

	if target == current {
		return doc, nil
	}
	if target == s.base && hasOriginal {
		restored, _ := s.Revert()
		return restored, nil
	}

	translated, err := s.translator.Translate(ctx, Extract(doc), target)
	if err != nil {
		return nil, fmt.Errorf("translate resume to %s: %w", target, err)
	}
	merged := Merge(doc, translated)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.original == nil {
		s.original = doc.Clone()
	}
	s.current = target
	return merged, nil
}

// Revert 恢复翻译前的原稿并清空缓冲；没有原稿时返回 false。
func (s *Swap) Revert() (*resume.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.original == nil {
		return nil, false
	}
	out := s.original
	s.original = nil
	s.current = s.base
	return out, true
}

// Reset 丢弃原稿并回到原始语言，用于草稿被整体替换（例如已保存译文）之后。
func (s *Swap) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.original = nil
	s.current = s.base
}
