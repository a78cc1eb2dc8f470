// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/billscan/billscan/internal/parse"
	"github.com/billscan/billscan/internal/store"
)

// Runner executes the whole pipeline for one document URL.
type Runner interface {
	Run(ctx context.Context, url string) (uuid.UUID, parse.ExtractionResult, error)
}

// Exporter renders a done job as an XLSX workbook.
type Exporter interface {
	ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error)
}

// Server wires the pipeline and job store behind the HTTP routes.
type Server struct {
	runner   Runner
	jobs     store.JobStore
	exporter Exporter
	logger   *slog.Logger
}

func New(runner Runner, jobs store.JobStore, exporter Exporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, jobs: jobs, exporter: exporter, logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.POST("/extract-bill-data", s.handleExtract)
	r.GET("/jobs/:id", s.handleGetJob)
	r.GET("/jobs/:id/export", s.handleExportJob)
	r.GET("/healthz", s.handleHealth)
	return r
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.jobs.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
