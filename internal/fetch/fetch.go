// Package fetch downloads the input document and detects its format.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
)

// Result describes a fetched document written to the tmp dir.
type Result struct {
	Path   string
	Format constants.Format
	Size   int64
}

// Config for the HTTP fetcher.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64 // hard cap on document size
	TmpDir   string
}

// HTTPFetcher downloads documents over HTTP(S), sniffs the content type,
// and rejects anything that is not pdf/png/jpg/webp.
type HTTPFetcher struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewHTTPFetcher(cfg Config, logger *slog.Logger) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 15 << 20
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = "./tmp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Fetch downloads url into <TmpDir>/<jobID>.<ext>. The caller owns the
// file and removes it when the job finishes.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, jobID uuid.UUID) (Result, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: build request: %v", common.ErrFetch, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", common.ErrFetch, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.logger.Warn("fetch.body_close_error", "error", err)
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("%w: status %d from %s", common.ErrFetch, resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return Result{}, fmt.Errorf("%w: read body: %v", common.ErrFetch, err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return Result{}, fmt.Errorf("%w: document exceeds %d bytes", common.ErrFetch, f.cfg.MaxBytes)
	}

	mt := mimetype.Detect(data)
	format := constants.MapMIMEToFormat(mt.String())
	if format == "" {
		return Result{}, fmt.Errorf("%w: unsupported content type %q", common.ErrFetch, mt.String())
	}

	if err := os.MkdirAll(f.cfg.TmpDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: tmp dir: %v", common.ErrFetch, err)
	}
	path := filepath.Join(f.cfg.TmpDir, jobID.String()+"."+format.Ext())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("%w: write file: %v", common.ErrFetch, err)
	}

	f.logger.Info("fetch.ok",
		"job_id", jobID,
		"format", format,
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Path: path, Format: format, Size: int64(len(data))}, nil
}
