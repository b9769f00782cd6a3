// Package pdf 把 HTML 页面交给无头浏览器打印为 A4 PDF。
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// A4 纸张尺寸（英寸）。
const (
	A4WidthInch  = 8.27
	A4HeightInch = 11.69
)

// DefaultTimeout 是单次 HTML→PDF 转换的默认超时。
const DefaultTimeout = 60 * time.Second

// Engine 把完整的 HTML 文档转换为 PDF 字节。
type Engine interface {
	HTMLToPDF(ctx context.Context, html string) ([]byte, error)
}

// 支持的引擎名称。
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// Options 是浏览器相关配置。
type Options struct {
	BrowserBin string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// New 根据名称创建引擎，空名称使用 rod。
func New(name string, opts Options) (Engine, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EngineRod:
		return NewRodEngine(opts), nil
	case EngineChromedp:
		return NewChromedpEngine(opts), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", name)
	}
}
