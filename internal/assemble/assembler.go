// Package assemble 把简历 PDF、分隔页与附件 PDF 按顺序合并为一份最终文档。
package assemble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"cvforge/internal/i18n"
	"cvforge/internal/resume"
)

func init() {
	// 不读写 pdfcpu 的用户配置目录。
	model.ConfigPath = "disable"
}

// 默认超时与并发。
const (
	DefaultRenderTimeout = 60 * time.Second
	DefaultFetchTimeout  = 30 * time.Second
	DefaultConcurrency   = 4
)

var (
	// ErrResumeRender 表示简历本体渲染失败，整个合并中止。
	ErrResumeRender = errors.New("resume pdf render failed")
	// ErrMerge 表示 PDF 合并失败。
	ErrMerge = errors.New("pdf merge failed")
)

// RenderParams 是渲染简历 PDF 的参数。
type RenderParams struct {
	Template    string        `json:"template"`
	AccentColor string        `json:"accentColor"`
	Language    i18n.Language `json:"language,omitempty"`
}

// ResumeRenderer 渲染不含附件的简历 PDF。
type ResumeRenderer interface {
	RenderPDF(ctx context.Context, resumeID string, params RenderParams) ([]byte, error)
}

// AnnexeFetcher 获取单个附件的 PDF 字节。
type AnnexeFetcher interface {
	FetchPDF(ctx context.Context, annexe resume.Annexe) ([]byte, error)
}

// Config 控制超时与并发度。
type Config struct {
	RenderTimeout time.Duration
	FetchTimeout  time.Duration
	Concurrency   int
	Logger        *slog.Logger
}

// Report 记录一次合并的结果。
type Report struct {
	ResumePages    int
	SeparatorPages int
	Included       []Included
	Skipped        []Skipped
	TotalPages     int
}

// Included 是成功并入的附件。
type Included struct {
	Annexe resume.Annexe
	Pages  int
}

// Skipped 是因获取或解析失败而被跳过的附件。
type Skipped struct {
	Annexe resume.Annexe
	Err    error
}

// Assembler 执行合并流程。
type Assembler struct {
	renderer ResumeRenderer
	fetcher  AnnexeFetcher
	cfg      Config
	pdfConf  *model.Configuration
}

func New(renderer ResumeRenderer, fetcher AnnexeFetcher, cfg Config) *Assembler {
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = DefaultRenderTimeout
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Assembler{renderer: renderer, fetcher: fetcher, cfg: cfg, pdfConf: conf}
}

type fetched struct {
	data []byte
	err  error
}

// Assemble 输出页序为：简历页 + （有附件时）分隔页 + 各附件页。
// 单个附件失败只记录并跳过；简历渲染失败或超时则整体失败。
func (a *Assembler) Assemble(ctx context.Context, resumeID string, params RenderParams, annexes []resume.Annexe) ([]byte, Report, error) {
	var report Report
	logger := a.cfg.Logger.With(slog.String("resume_id", resumeID))

	renderCtx, cancel := context.WithTimeout(ctx, a.cfg.RenderTimeout)
	resumePDF, err := a.renderer.RenderPDF(renderCtx, resumeID, params)
	cancel()
	if err != nil {
		return nil, report, fmt.Errorf("%w: %w", ErrResumeRender, err)
	}
	report.ResumePages, err = a.pageCount(resumePDF)
	if err != nil {
		return nil, report, fmt.Errorf("%w: invalid resume pdf: %w", ErrResumeRender, err)
	}

	parts := []io.ReadSeeker{bytes.NewReader(resumePDF)}
	if len(annexes) > 0 {
		separator, err := SeparatorPage()
		if err != nil {
			return nil, report, fmt.Errorf("build separator page: %w", err)
		}
		parts = append(parts, bytes.NewReader(separator))
		report.SeparatorPages = 1

		results, err := a.fetchAll(ctx, annexes)
		if err != nil {
			return nil, report, err
		}
		for i, annexe := range annexes {
			res := results[i]
			pages := 0
			if res.err == nil {
				pages, res.err = a.pageCount(res.data)
			}
			if res.err != nil {
				logger.Warn("assemble: skipping annexe",
					slog.String("annexe_id", annexe.ID),
					slog.String("title", annexe.Title),
					slog.Any("error", res.err),
				)
				report.Skipped = append(report.Skipped, Skipped{Annexe: annexe, Err: res.err})
				continue
			}
			parts = append(parts, bytes.NewReader(res.data))
			report.Included = append(report.Included, Included{Annexe: annexe, Pages: pages})
		}
	}

	var out bytes.Buffer
	if len(parts) == 1 {
		out.Write(resumePDF)
	} else if err := api.MergeRaw(parts, &out, false, a.pdfConf); err != nil {
		return nil, report, fmt.Errorf("%w: %w", ErrMerge, err)
	}

	report.TotalPages, err = a.pageCount(out.Bytes())
	if err != nil {
		return nil, report, fmt.Errorf("%w: read merged pdf: %w", ErrMerge, err)
	}
	logger.Info("assemble: document assembled",
		slog.Int("resume_pages", report.ResumePages),
		slog.Int("annexes_included", len(report.Included)),
		slog.Int("annexes_skipped", len(report.Skipped)),
		slog.Int("total_pages", report.TotalPages),
	)
	return out.Bytes(), report, nil
}

// fetchAll 并发获取附件，结果按下标存放，与完成顺序无关。
func (a *Assembler) fetchAll(ctx context.Context, annexes []resume.Annexe) ([]fetched, error) {
	results := make([]fetched, len(annexes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)
	for i, annexe := range annexes {
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, a.cfg.FetchTimeout)
			defer cancel()
			data, err := a.fetcher.FetchPDF(fetchCtx, annexe)
			results[i] = fetched{data: data, err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch annexes: %w", err)
	}
	return results, nil
}

func (a *Assembler) pageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, errors.New("empty pdf")
	}
	n, err := api.PageCount(bytes.NewReader(data), a.pdfConf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("pdf has no pages")
	}
	return n, nil
}

// FileName 返回下载文件名：<标题或 Resume>_Complete.pdf。
func FileName(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Resume"
	}
	title = strings.NewReplacer("/", "-", `\`, "-", `"`, "").Replace(title)
	return title + "_Complete.pdf"
}
