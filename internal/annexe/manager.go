// Package annexe 管理一份简历所关联附件的选择与排序。
package annexe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"cvforge/internal/resume"
)

// MaxSelected 是单份简历可选附件上限。
const MaxSelected = resume.MaxAnnexes

var (
	// ErrCapacityReached 表示已选满，拒绝继续追加。
	ErrCapacityReached = fmt.Errorf("you can select at most %d annexes", MaxSelected)
	// ErrIndexOutOfRange 表示移动的下标越界。
	ErrIndexOutOfRange = errors.New("annexe index out of range")
	// ErrUnknownAnnexe 表示 id 不在当前用户的附件目录中。
	ErrUnknownAnnexe = errors.New("annexe not found in catalog")
)

// Backend 是附件管理所需的远端接口。
type Backend interface {
	ListAnnexes(ctx context.Context) ([]resume.Annexe, error)
	GetResume(ctx context.Context, resumeID string) (*resume.Document, error)
	ReplaceAnnexes(ctx context.Context, resumeID string, refs []resume.AnnexeRef) error
}

// Manager 持有附件目录、有序的已选 id 以及拖拽中的下标。
type Manager struct {
	backend  Backend
	resumeID string

	mu       sync.Mutex
	all      []resume.Annexe
	selected []string
	dragged  int
}

func NewManager(backend Backend, resumeID string) *Manager {
	return &Manager{backend: backend, resumeID: resumeID, dragged: -1}
}

// Load 拉取附件目录与简历当前的附件顺序；失败时保留原有状态。
func (m *Manager) Load(ctx context.Context) error {
	all, err := m.backend.ListAnnexes(ctx)
	if err != nil {
		return fmt.Errorf("load annexe catalog: %w", err)
	}
	doc, err := m.backend.GetResume(ctx, m.resumeID)
	if err != nil {
		return fmt.Errorf("load resume annexes: %w", err)
	}
	selected := resume.SortedAnnexeIDs(doc.Annexes, resume.CatalogOf(all))
	if len(selected) > MaxSelected {
		selected = selected[:MaxSelected]
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = all
	m.selected = selected
	m.dragged = -1
	return nil
}

// Catalog 返回附件目录副本。
func (m *Manager) Catalog() []resume.Annexe {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.all)
}

// SelectedIDs 返回有序的已选 id 副本。
func (m *Manager) SelectedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.selected)
}

// Selected 返回已选附件实体，目录中已不存在的 id 被过滤。
func (m *Manager) Selected() []resume.Annexe {
	m.mu.Lock()
	defer m.mu.Unlock()
	catalog := resume.CatalogOf(m.all)
	out := make([]resume.Annexe, 0, len(m.selected))
	for _, id := range m.selected {
		if a, ok := catalog[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// IsSelected 表示 id 是否已选。
func (m *Manager) IsSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.selected, id)
}

// Toggle 已选则移除，未选则追加到末尾；已满时返回 ErrCapacityReached 且不修改状态。
func (m *Manager) Toggle(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := slices.Index(m.selected, id); i >= 0 {
		m.selected = slices.Delete(slices.Clone(m.selected), i, i+1)
		return nil
	}
	if len(m.selected) >= MaxSelected {
		return ErrCapacityReached
	}
	if m.all != nil && !slices.ContainsFunc(m.all, func(a resume.Annexe) bool { return a.ID == id }) {
		return fmt.Errorf("%w: %s", ErrUnknownAnnexe, id)
	}
	m.selected = append(slices.Clone(m.selected), id)
	return nil
}

// Reorder 把 from 处的元素移动到 to，中间元素顺移一位（先删除再插入，不是交换）。
func (m *Manager) Reorder(from, to int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reorderLocked(from, to)
}

func (m *Manager) reorderLocked(from, to int) error {
	n := len(m.selected)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: move %d -> %d with %d selected", ErrIndexOutOfRange, from, to, n)
	}
	if from == to {
		return nil
	}
	next := slices.Clone(m.selected)
	item := next[from]
	next = slices.Delete(next, from, from+1)
	next = slices.Insert(next, to, item)
	m.selected = next
	return nil
}

// DragStart 记录被拖拽的下标。
func (m *Manager) DragStart(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dragged = index
}

// DragOver 在拖拽经过 index 时实时移动元素，并把拖拽下标更新为新位置。
func (m *Manager) DragOver(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dragged < 0 || m.dragged == index {
		return nil
	}
	if err := m.reorderLocked(m.dragged, index); err != nil {
		return err
	}
	m.dragged = index
	return nil
}

// DragEnd 结束拖拽。
func (m *Manager) DragEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dragged = -1
}

// Assignments 把当前顺序转换为 order 从 1 开始的引用列表。
func (m *Manager) Assignments() []resume.AnnexeRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return resume.AssignmentsFrom(m.selected)
}

// Save 以整体替换的方式持久化当前顺序。
func (m *Manager) Save(ctx context.Context) error {
	refs := m.Assignments()
	if err := m.backend.ReplaceAnnexes(ctx, m.resumeID, refs); err != nil {
		return fmt.Errorf("save annexe assignments: %w", err)
	}
	return nil
}
