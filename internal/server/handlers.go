package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/parse"
	"github.com/billscan/billscan/internal/store"
)

type extractRequest struct {
	Document string `json:"document"`
}

type extractData struct {
	PagewiseLineItems []parse.PageResult `json:"pagewise_line_items"`
	TotalItemCount    int                `json:"total_item_count"`
}

type extractResponse struct {
	IsSuccess  bool             `json:"is_success"`
	TokenUsage parse.TokenUsage `json:"token_usage"`
	Data       *extractData     `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
	JobID      string           `json:"job_id,omitempty"`
}

func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Document == "" {
		c.JSON(http.StatusBadRequest, extractResponse{
			IsSuccess: false,
			Error:     "document URL is required",
		})
		return
	}

	jobID, result, err := s.runner.Run(c.Request.Context(), req.Document)
	if err != nil {
		c.JSON(http.StatusInternalServerError, extractResponse{
			IsSuccess: false,
			Error:     common.StageMessage(err),
			JobID:     jobID.String(),
		})
		return
	}

	c.JSON(http.StatusOK, extractResponse{
		IsSuccess:  true,
		TokenUsage: result.TokenUsage,
		Data: &extractData{
			PagewiseLineItems: result.PagewiseLineItems,
			TotalItemCount:    result.TotalItemCount,
		},
		JobID: jobID.String(),
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	job, err := s.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		s.logger.Error("http.get_job_failed", "job_id", jobID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	doc, err := jobDocument(job)
	if err != nil {
		s.logger.Error("http.job_encode_failed", "job_id", jobID.String(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode job"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) handleExportJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	data, err := s.exporter.ExportJobXLSX(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, common.ErrInvalidInput):
			c.JSON(http.StatusConflict, gin.H{"error": "job has no exportable result"})
		default:
			s.logger.Error("http.export_failed", "job_id", jobID.String(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		}
		return
	}

	filename := fmt.Sprintf("bill-%s.xlsx", jobID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// jobDocument flattens the job record with its result fields merged into
// the top-level document, mirroring how finished jobs are stored.
func jobDocument(job *store.Job) (map[string]any, error) {
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if result, ok := doc["result"].(map[string]any); ok {
		delete(doc, "result")
		for k, v := range result {
			doc[k] = v
		}
	}
	return doc, nil
}
