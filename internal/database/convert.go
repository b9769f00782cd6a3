package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"cvforge/internal/resume"
)

// ErrResumeNotFound 表示简历不存在。
var ErrResumeNotFound = errors.New("resume not found")

// Document 把数据库行还原为领域模型，独立列优先于 Content 中的同名字段。
func (r *Resume) Document() (*resume.Document, error) {
	doc := resume.New(r.Title)
	if len(r.Content) > 0 {
		if err := json.Unmarshal(r.Content, doc); err != nil {
			return nil, fmt.Errorf("decode resume %s content: %w", r.ID, err)
		}
	}
	doc.ID = r.ID
	doc.UserID = strconv.FormatUint(uint64(r.UserID), 10)
	doc.Title = r.Title
	doc.Slug = ""
	if r.Slug != nil {
		doc.Slug = *r.Slug
	}
	doc.Public = r.Public
	if r.Template != "" {
		doc.Template = r.Template
	}
	if r.AccentColor != "" {
		doc.AccentColor = r.AccentColor
	}
	if doc.TemplateSettings == nil {
		doc.TemplateSettings = resume.TemplateSettings{}
	}
	doc.UpdatedAt = r.UpdatedAt
	return doc, nil
}

// SetDocument 把领域模型写回数据库行（不修改 ID 与 UserID）。
func (r *Resume) SetDocument(doc *resume.Document) error {
	content := doc.Clone()
	content.ID, content.UserID = "", ""
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode resume content: %w", err)
	}
	r.Content = data
	r.Title = doc.Title
	r.Public = doc.Public
	r.Template = doc.Template
	r.AccentColor = doc.AccentColor
	if doc.Slug == "" {
		r.Slug = nil
	} else {
		slug := doc.Slug
		r.Slug = &slug
	}
	return nil
}

// Domain 转换为领域附件；fileURL 由调用方按对象 key 生成。
func (a *Annexe) Domain(fileURL string) resume.Annexe {
	return resume.Annexe{
		ID:         a.ID,
		UserID:     strconv.FormatUint(uint64(a.UserID), 10),
		Title:      a.Title,
		FileName:   a.FileName,
		Size:       a.Size,
		FileURL:    fileURL,
		CreatedAt:  a.CreatedAt,
		StorageKey: a.ObjectKey,
	}
}

// ResumeSource 按 id 读取简历，供渲染与合成使用。
type ResumeSource struct {
	DB *gorm.DB
}

func (s ResumeSource) LoadDocument(ctx context.Context, resumeID string) (*resume.Document, error) {
	var row Resume
	if err := s.DB.WithContext(ctx).First(&row, "id = ?", resumeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrResumeNotFound
		}
		return nil, fmt.Errorf("load resume %s: %w", resumeID, err)
	}
	return row.Document()
}
