package ocr

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/billscan/billscan/internal/common"
)

// TesseractConfig configures the local OCR engine.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
}

// Tesseract is the local OCR engine. It asks tesseract for TSV output to
// get per-line boxes and word confidence; when TSV yields no usable lines
// it falls back to plain text and a single virtual line.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (Document, error) {
	args := t.baseArgs(imagePath)
	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, append(args, "tsv")...)
	if err != nil {
		t.logger.Error("ocr.tesseract.tsv_failed", "path", imagePath, "stderr", truncate(string(errb), 2<<10), "error", err)
		return Document{}, common.WrapError(fmt.Errorf("%w: tesseract: %v", common.ErrOCR, err), "tsv mode")
	}

	pages := FromTesseractTSV(string(out))
	if pages != nil {
		return Document{Pages: pages, RawText: FlattenText(pages)}, nil
	}

	// No line segmentation; degrade to plain text.
	t.logger.Warn("ocr.tesseract.no_lines", "path", imagePath, "hint", "falling back to plain text")
	out, errb, err = t.runner.Run(ctx, t.cfg.Binary, args...)
	if err != nil {
		t.logger.Error("ocr.tesseract.text_failed", "path", imagePath, "stderr", truncate(string(errb), 2<<10), "error", err)
		return Document{}, common.WrapError(fmt.Errorf("%w: tesseract: %v", common.ErrOCR, err), "text mode")
	}
	text := string(out)
	return Document{Pages: FromPlainText(text), RawText: text}, nil
}

func (t *Tesseract) baseArgs(imagePath string) []string {
	args := []string{imagePath, "stdout", "-l", t.cfg.Lang}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return args
}
