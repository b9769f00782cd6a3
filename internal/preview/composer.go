// Package preview 把简历数据与模板设置组合成可预览、可打印的页面。
package preview

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"cvforge/internal/i18n"
	"cvforge/internal/render"
	"cvforge/internal/resume"
)

// AnchorID 是打印/导出路径定位简历内容的稳定锚点。
const AnchorID = "resume-preview"

// PrintCSS 在打印时隐藏锚点以外的全部内容。
const PrintCSS = `@page { size: A4; margin: 0; }
@media print {
  html, body { margin: 0 !important; padding: 0 !important; background: white !important; }
  body * { visibility: hidden !important; }
  #resume-preview, #resume-preview * { visibility: visible !important; }
  #resume-preview { position: absolute; left: 0; top: 0; width: 100%; box-shadow: none !important; margin: 0 !important; }
  * { -webkit-print-color-adjust: exact !important; print-color-adjust: exact !important; }
}`

// Request 描述一次预览。
type Request struct {
	Document    *resume.Document
	TemplateKey string
	AccentColor string
	Language    i18n.Language
}

// Page 是组合后的结果。Fragment 只含锚点，HTML 是可独立打开的完整文档。
type Page struct {
	TemplateKey string
	Fragment    template.HTML
	HTML        string
}

// Composer 解析模板设置并委托给对应的渲染器。
type Composer struct {
	registry *render.Registry
	images   render.ImageResolver
}

// NewComposer images 为空时只显示已上传的远程图片。
func NewComposer(registry *render.Registry, images render.ImageResolver) *Composer {
	if registry == nil {
		registry = render.NewRegistry()
	}
	return &Composer{registry: registry, images: images}
}

// Options 按模板 key 解析 showImage 与 sidebarColor。
func Options(doc *resume.Document, templateKey, accentColor string, lang i18n.Language) render.Options {
	opts := render.Options{
		AccentColor: accentColor,
		ShowImage:   doc.TemplateSettings.ShowImage(templateKey),
		Language:    lang,
	}
	if templateKey == resume.SidebarTemplateKey {
		opts.SidebarColor = doc.TemplateSettings.SidebarColor()
	}
	return opts
}

// Compose 渲染简历并包上打印锚点。
func (c *Composer) Compose(ctx context.Context, req Request) (Page, error) {
	if req.Document == nil {
		return Page{}, fmt.Errorf("compose preview: nil document")
	}
	key := req.TemplateKey
	if key == "" {
		key = req.Document.Template
	}
	accent := req.AccentColor
	if accent == "" {
		accent = req.Document.AccentColor
	}

	renderer := c.registry.Lookup(key)
	opts := Options(req.Document, renderer.Key(), accent, req.Language)
	opts.Images = c.images
	body, err := renderer.Render(ctx, req.Document, opts)
	if err != nil {
		return Page{}, fmt.Errorf("compose preview: %w", err)
	}

	fragment := template.HTML(`<div id="` + AnchorID + `">` + string(body) + `</div>`)
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, documentView{
		Title:    req.Document.Title,
		Lang:     string(opts.Language),
		PrintCSS: template.CSS(PrintCSS),
		BaseCSS:  template.CSS(baseCSS),
		Body:     fragment,
	}); err != nil {
		return Page{}, fmt.Errorf("compose preview document: %w", err)
	}
	return Page{TemplateKey: renderer.Key(), Fragment: fragment, HTML: buf.String()}, nil
}

type documentView struct {
	Title    string
	Lang     string
	PrintCSS template.CSS
	BaseCSS  template.CSS
	Body     template.HTML
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="{{if .Lang}}{{.Lang}}{{else}}en{{end}}">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>{{.BaseCSS}}</style>
<style>{{.PrintCSS}}</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

const baseCSS = `body { margin: 0; font-family: 'Inter', 'Helvetica Neue', Arial, sans-serif; color: #27272a; background: #ffffff; }
.cv { width: 210mm; min-height: 297mm; box-sizing: border-box; margin: 0 auto; background: #ffffff; }
.cv-single, .cv-timeline { padding: 32px; }
.cv-sidebar, .cv-split { display: grid; grid-template-columns: 1fr 2fr; }
.cv-side, .cv-main { padding: 24px; }
.cv-header { margin-bottom: 24px; }
.cv-name { font-size: 28px; margin: 0; }
.cv-photo { width: 96px; height: 96px; overflow: hidden; border: 3px solid; }
.cv-photo-circle { border-radius: 50%; }
.cv-photo-rounded { border-radius: 12px; }
.cv-photo img { width: 100%; height: 100%; object-fit: cover; }
.cv-section { margin-bottom: 20px; }
.cv-section h2 { font-size: 15px; letter-spacing: 0.05em; border-bottom: 1px solid; padding-bottom: 4px; }
.cv-timeline .cv-entry { position: relative; padding-left: 20px; border-left: 2px solid #e5e7eb; }
.cv-dot { position: absolute; left: -9px; top: 4px; width: 12px; height: 12px; border: 3px solid; border-radius: 50%; background: #ffffff; }
.cv-entry-head { display: flex; justify-content: space-between; }
.cv-tags { display: flex; flex-wrap: wrap; gap: 6px; list-style: none; padding: 0; }
.cv-tags li { border: 1px solid; border-radius: 9999px; padding: 2px 10px; font-size: 12px; }
.cv-languages { list-style: none; padding: 0; }
.cv-bar { height: 6px; background: #e5e7eb; border-radius: 9999px; overflow: hidden; }
.cv-bar-fill { height: 100%; }
.cv-signature { margin-top: 32px; text-align: right; }
.cv-signature-image { height: 64px; object-fit: contain; }
.cv-declaration { font-style: italic; font-size: 12px; text-align: left; }`
