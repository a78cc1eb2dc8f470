package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/billscan/billscan/internal/artifact"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/export"
	"github.com/billscan/billscan/internal/fetch"
	"github.com/billscan/billscan/internal/llm"
	"github.com/billscan/billscan/internal/ocr"
	"github.com/billscan/billscan/internal/parse"
	"github.com/billscan/billscan/internal/pipeline"
	"github.com/billscan/billscan/internal/raster"
	"github.com/billscan/billscan/internal/server"
	"github.com/billscan/billscan/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config invalid", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store init failed", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer jobs.Close()
	if err := jobs.Ping(ctx); err != nil {
		logger.Error("store health failed", "error", err)
		os.Exit(1)
	}
	logger.Info("store ready", "driver", cfg.Store.Driver)

	fetcher := fetch.NewHTTPFetcher(fetch.Config{
		Timeout:  cfg.Fetch.Timeout,
		MaxBytes: cfg.Fetch.MaxBytes,
		TmpDir:   cfg.Fetch.TmpDir,
	}, logger)

	rasterizer := raster.New(raster.Config{
		Pdftoppm: cfg.OCR.Pdftoppm,
		DPI:      cfg.OCR.DPI,
		Enhance:  cfg.OCR.Enhance,
	}, nil, logger)

	engine, fallback, err := newEngines(ctx, cfg, logger)
	if err != nil {
		logger.Error("ocr init failed", "engine", cfg.OCR.Engine, "error", err)
		os.Exit(1)
	}

	extractor, err := newExtractor(cfg, logger)
	if err != nil {
		logger.Error("extractor init failed", "path", cfg.Extract.Path, "error", err)
		os.Exit(1)
	}

	var uploader pipeline.Uploader
	if cfg.S3.Bucket != "" {
		up, err := artifact.NewS3Uploader(ctx, cfg.S3, logger)
		if err != nil {
			logger.Error("s3 init failed", "bucket", cfg.S3.Bucket, "error", err)
			os.Exit(1)
		}
		uploader = up
	}

	proc := pipeline.NewProcessor(fetcher, rasterizer, uploader, engine, fallback, extractor, jobs, logger)
	exporter := export.NewService(jobs, logger)
	srv := server.New(proc, jobs, exporter, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

func newStore(ctx context.Context, cfg *common.Config, logger *slog.Logger) (store.JobStore, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(ctx, cfg.Store.DSN, logger)
	default:
		return store.NewPostgres(ctx, store.PostgresConfig{
			DSN:             cfg.Store.DSN,
			MaxConns:        cfg.Store.MaxConns,
			MinConns:        cfg.Store.MinConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
			MaxConnIdleTime: cfg.Store.MaxConnIdleTime,
			DialTimeout:     cfg.Store.DialTimeout,
		}, logger)
	}
}

// newEngines returns the configured OCR engine and, when fallback is
// enabled for the cloud engine, the local one as a backstop.
func newEngines(ctx context.Context, cfg *common.Config, logger *slog.Logger) (ocr.Engine, ocr.Engine, error) {
	tess := ocr.NewTesseract(ocr.TesseractConfig{
		Binary:      cfg.OCR.Tesseract,
		Lang:        cfg.OCR.TesseractLang,
		TessdataDir: cfg.OCR.TessdataDir,
	}, nil, logger)

	if cfg.OCR.Engine != "textract" {
		return tess, nil, nil
	}
	cloud, err := ocr.NewTextract(ctx, cfg.OCR.AWSRegion, logger)
	if err != nil {
		return nil, nil, err
	}
	if cfg.OCR.Fallback {
		return cloud, tess, nil
	}
	return cloud, nil, nil
}

func newExtractor(cfg *common.Config, logger *slog.Logger) (parse.Extractor, error) {
	switch cfg.Extract.Path {
	case "llm":
		client := llm.NewClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		return llm.NewExtractor(client, logger), nil
	default:
		return parse.NewHeuristic(logger), nil
	}
}
