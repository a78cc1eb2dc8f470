// Package raster normalizes fetched documents to a single PNG the OCR
// engines can consume: PDFs are rendered (first page) with pdftoppm,
// images are decoded and optionally enhanced for OCR.
package raster

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/ocr"
)

// Config for the rasterizer.
type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"
	DPI      int    // rasterization DPI, default 300
	Enhance  bool   // grayscale/contrast/sharpen pass before OCR
}

type Rasterizer struct {
	cfg    Config
	runner ocr.Runner
	logger *slog.Logger
}

func New(cfg Config, runner ocr.Runner, logger *slog.Logger) *Rasterizer {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if runner == nil {
		runner = ocr.ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rasterizer{cfg: cfg, runner: runner, logger: logger}
}

// ToImage converts a fetched document into a PNG next to the input file
// and returns its path. The current pipeline processes exactly one page;
// multi-page PDFs are rendered first page only.
func (r *Rasterizer) ToImage(ctx context.Context, path string, format constants.Format) (string, error) {
	switch {
	case format == constants.PDF:
		return r.pdfFirstPage(ctx, path)
	case format.IsImage():
		return r.normalizeImage(path, format)
	default:
		return "", fmt.Errorf("%w: unsupported format %q", common.ErrRasterize, format)
	}
}

func (r *Rasterizer) pdfFirstPage(ctx context.Context, path string) (string, error) {
	prefix := strings.TrimSuffix(path, filepath.Ext(path)) + "_page"
	// pdftoppm -r <dpi> -png -f 1 -l 1 <in.pdf> <prefix>
	_, errb, err := r.runner.Run(ctx, r.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", r.cfg.DPI), "-png", "-f", "1", "-l", "1", path, prefix)
	if err != nil {
		r.logger.Error("raster.pdftoppm_failed", "path", path, "stderr", string(errb), "error", err)
		return "", fmt.Errorf("%w: pdftoppm: %v", common.ErrRasterize, err)
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: pdftoppm produced no images", common.ErrRasterize)
	}
	out := matches[0]

	if r.cfg.Enhance {
		if err := r.enhanceInPlace(out); err != nil {
			r.logger.Warn("raster.enhance_failed", "path", out, "error", err)
		}
	}
	r.logger.Info("raster.pdf.ok", "path", path, "out", out)
	return out, nil
}

func (r *Rasterizer) normalizeImage(path string, format constants.Format) (string, error) {
	img, err := r.decode(path, format)
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", common.ErrRasterize, format, err)
	}
	if r.cfg.Enhance {
		img = enhance(img)
	}
	out := strings.TrimSuffix(path, filepath.Ext(path)) + "_norm.png"
	if err := imaging.Save(img, out); err != nil {
		return "", fmt.Errorf("%w: save png: %v", common.ErrRasterize, err)
	}
	r.logger.Info("raster.image.ok", "path", path, "out", out)
	return out, nil
}

func (r *Rasterizer) enhanceInPlace(path string) error {
	img, err := imaging.Open(path)
	if err != nil {
		return err
	}
	return imaging.Save(enhance(img), path)
}

func (r *Rasterizer) decode(path string, format constants.Format) (image.Image, error) {
	if format == constants.WEBP {
		// imaging has no webp decoder
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return webp.Decode(f)
	}
	return imaging.Open(path)
}

// enhance applies the grayscale / contrast / sharpen pass that improves
// OCR recall on photographed bills.
func enhance(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 30)
	out = imaging.Sharpen(out, 1.5)
	return out
}
