// Package pipeline orchestrates a bill through fetch, rasterize, OCR,
// extraction and persistence. Each stage either advances the job or
// finalizes it in error state with a short stage reason.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/fetch"
	"github.com/billscan/billscan/internal/ocr"
	"github.com/billscan/billscan/internal/parse"
	"github.com/billscan/billscan/internal/store"
)

// Fetcher downloads the input document to local disk.
type Fetcher interface {
	Fetch(ctx context.Context, url string, jobID uuid.UUID) (fetch.Result, error)
}

// Rasterizer turns a fetched document into a single OCR-ready PNG.
type Rasterizer interface {
	ToImage(ctx context.Context, path string, format constants.Format) (string, error)
}

// Uploader stores the fetched document as a durable artifact and returns
// its location. Upload failures never fail the job.
type Uploader interface {
	Upload(ctx context.Context, key, path string) (string, error)
}

// Processor runs the extraction pipeline for one document URL per call.
// Engines and stores are injected so tests can run the whole pipeline
// with fakes.
type Processor struct {
	fetcher    Fetcher
	rasterizer Rasterizer
	uploader   Uploader // optional
	engine     ocr.Engine
	fallback   ocr.Engine // optional, tried when engine fails
	extractor  parse.Extractor
	jobs       store.JobStore
	logger     *slog.Logger
}

func NewProcessor(
	fetcher Fetcher,
	rasterizer Rasterizer,
	uploader Uploader,
	engine ocr.Engine,
	fallback ocr.Engine,
	extractor parse.Extractor,
	jobs store.JobStore,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		fetcher:    fetcher,
		rasterizer: rasterizer,
		uploader:   uploader,
		engine:     engine,
		fallback:   fallback,
		extractor:  extractor,
		jobs:       jobs,
		logger:     logger,
	}
}

// Run processes one document URL end to end. It always returns the job
// id once the job record exists, so callers can surface it even when a
// later stage failed.
func (p *Processor) Run(ctx context.Context, url string) (uuid.UUID, parse.ExtractionResult, error) {
	jobID := uuid.New()
	start := time.Now()
	log := p.logger.With("job_id", jobID.String())
	log.Info("pipeline.start", "url", url)

	if err := p.jobs.Create(ctx, jobID, url); err != nil {
		return jobID, parse.ExtractionResult{}, fmt.Errorf("%w: create job: %v", common.ErrPersistence, err)
	}

	res, err := p.run(ctx, log, jobID, url)
	if err != nil {
		p.fail(ctx, log, jobID, err)
		return jobID, parse.ExtractionResult{}, err
	}

	if err := p.jobs.MarkDone(ctx, jobID, res); err != nil {
		log.Error("pipeline.mark_done_failed", "error", err)
		return jobID, res, fmt.Errorf("%w: finalize job: %v", common.ErrPersistence, err)
	}
	log.Info("pipeline.done",
		"item_count", res.TotalItemCount,
		"calculated_total", res.CalculatedTotal,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return jobID, res, nil
}

func (p *Processor) run(ctx context.Context, log *slog.Logger, jobID uuid.UUID, url string) (parse.ExtractionResult, error) {
	var zero parse.ExtractionResult

	fetched, err := p.fetcher.Fetch(ctx, url, jobID)
	if err != nil {
		return zero, err
	}
	defer p.cleanup(log, fetched.Path)

	if p.uploader != nil {
		key := fmt.Sprintf("uploads/%s.%s", jobID, fetched.Format.Ext())
		if loc, upErr := p.uploader.Upload(ctx, key, fetched.Path); upErr != nil {
			log.Warn("pipeline.upload_failed", "error", upErr)
		} else if saveErr := p.jobs.SaveArtifactPath(ctx, jobID, loc); saveErr != nil {
			log.Warn("pipeline.save_artifact_failed", "error", saveErr)
		}
	}

	imgPath, err := p.rasterizer.ToImage(ctx, fetched.Path, fetched.Format)
	if err != nil {
		return zero, err
	}
	if imgPath != fetched.Path {
		defer p.cleanup(log, imgPath)
	}

	doc, err := p.recognize(ctx, log, imgPath)
	if err != nil {
		return zero, err
	}
	// Snapshot raw text before extraction so a failed parse keeps the OCR.
	if err := p.jobs.SaveRawOCR(ctx, jobID, doc.RawText); err != nil {
		log.Warn("pipeline.save_ocr_failed", "error", err)
	}

	return p.extractor.Extract(ctx, doc)
}

func (p *Processor) recognize(ctx context.Context, log *slog.Logger, imgPath string) (ocr.Document, error) {
	doc, err := p.engine.Recognize(ctx, imgPath)
	if err == nil {
		return doc, nil
	}
	if p.fallback == nil {
		return ocr.Document{}, err
	}
	log.Warn("pipeline.ocr_fallback",
		"engine", p.engine.Name(),
		"fallback", p.fallback.Name(),
		"error", err,
	)
	return p.fallback.Recognize(ctx, imgPath)
}

func (p *Processor) fail(ctx context.Context, log *slog.Logger, jobID uuid.UUID, cause error) {
	reason := common.StageMessage(cause)
	log.Error("pipeline.failed", "reason", reason, "error", cause)
	if err := p.jobs.MarkError(ctx, jobID, reason); err != nil {
		log.Error("pipeline.mark_error_failed", "error", err)
	}
}

func (p *Processor) cleanup(log *slog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("pipeline.cleanup_failed", "path", path, "error", err)
	}
}
