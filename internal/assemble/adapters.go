package assemble

import (
	"context"
	"fmt"

	"cvforge/internal/pdf"
	"cvforge/internal/preview"
	"cvforge/internal/resume"
)

// DocumentSource 按 id 加载简历。
type DocumentSource interface {
	LoadDocument(ctx context.Context, resumeID string) (*resume.Document, error)
}

// LocalRenderer 在本进程内用预览组合器加 PDF 引擎渲染简历。
type LocalRenderer struct {
	Source   DocumentSource
	Composer *preview.Composer
	Engine   pdf.Engine
}

func (r *LocalRenderer) RenderPDF(ctx context.Context, resumeID string, params RenderParams) ([]byte, error) {
	doc, err := r.Source.LoadDocument(ctx, resumeID)
	if err != nil {
		return nil, fmt.Errorf("load resume %s: %w", resumeID, err)
	}
	return RenderDocument(ctx, r.Composer, r.Engine, doc, params)
}

// RenderDocument 把已加载的简历渲染为 PDF。
func RenderDocument(ctx context.Context, composer *preview.Composer, engine pdf.Engine, doc *resume.Document, params RenderParams) ([]byte, error) {
	page, err := composer.Compose(ctx, preview.Request{
		Document:    doc,
		TemplateKey: params.Template,
		AccentColor: params.AccentColor,
		Language:    params.Language,
	})
	if err != nil {
		return nil, err
	}
	data, err := engine.HTMLToPDF(ctx, page.HTML)
	if err != nil {
		return nil, fmt.Errorf("html to pdf: %w", err)
	}
	return data, nil
}

// ObjectReader 读取对象存储中的完整对象。
type ObjectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

// StorageFetcher 直接从对象存储读取附件，供服务端 worker 使用。
type StorageFetcher struct {
	Objects ObjectReader
}

func (f *StorageFetcher) FetchPDF(ctx context.Context, annexe resume.Annexe) ([]byte, error) {
	if annexe.StorageKey == "" {
		return nil, fmt.Errorf("annexe %s has no storage key", annexe.ID)
	}
	data, err := f.Objects.ReadObject(ctx, annexe.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read annexe %s: %w", annexe.ID, err)
	}
	return data, nil
}
