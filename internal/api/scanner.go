package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dutchcoders/go-clamd"
)

// ErrMaliciousFile 表示病毒扫描未通过。
var ErrMaliciousFile = errors.New("malicious file detected")

// Scanner 在上传前扫描文件内容。
type Scanner interface {
	Scan(ctx context.Context, data []byte) error
}

// NewScanner addr 为空时不扫描。
func NewScanner(addr string) Scanner {
	if addr == "" {
		return noopScanner{}
	}
	return &ClamdScanner{addr: addr}
}

type noopScanner struct{}

func (noopScanner) Scan(context.Context, []byte) error { return nil }

// ClamdScanner 通过 clamd 的 INSTREAM 扫描。
type ClamdScanner struct {
	addr string
}

func (s *ClamdScanner) Scan(ctx context.Context, data []byte) error {
	client := clamd.NewClamd(s.addr)
	abort := make(chan bool)
	defer close(abort)

	results, err := client.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return fmt.Errorf("clamd scan: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case result, ok := <-results:
			if !ok {
				return nil
			}
			switch result.Status {
			case clamd.RES_OK:
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: %s", ErrMaliciousFile, result.Description)
			default:
				return fmt.Errorf("clamd scan: %s %s", result.Status, result.Description)
			}
		}
	}
}
