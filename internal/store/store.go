// Package store persists extraction jobs as documents keyed by job id.
// Two drivers exist: Postgres (production) and SQLite (local dev). Both
// enforce the job lifecycle: created in processing, finalized exactly
// once to done or error, never revisited.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/billscan/billscan/internal/parse"
)

// Job is the persisted job document. Result holds the merged
// ExtractionResult fields once the job is done.
type Job struct {
	JobID      uuid.UUID       `json:"job_id"`
	InputURL   string          `json:"input_url"`
	Status     string          `json:"status"`
	Error      *string         `json:"error,omitempty"`
	RawOCRText *string         `json:"raw_ocr_text,omitempty"`
	S3Path     *string         `json:"s3_path,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// JobStore records status transitions and stage payloads. The pipeline
// only reports "stage completed with payload" / "stage failed with
// reason"; translation into writes lives here.
type JobStore interface {
	// Create inserts a new job in processing state.
	Create(ctx context.Context, jobID uuid.UUID, inputURL string) error
	// SaveRawOCR snapshots engine output so a failed later stage does not
	// lose it.
	SaveRawOCR(ctx context.Context, jobID uuid.UUID, text string) error
	// SaveArtifactPath records the optional S3 location of the fetched document.
	SaveArtifactPath(ctx context.Context, jobID uuid.UUID, s3Path string) error
	// MarkDone finalizes a processing job with its result. Fails if the
	// job is not in processing state.
	MarkDone(ctx context.Context, jobID uuid.UUID, result parse.ExtractionResult) error
	// MarkError finalizes a processing job with a short reason. Fails if
	// the job is not in processing state.
	MarkError(ctx context.Context, jobID uuid.UUID, message string) error
	// Get returns the job document or common.ErrNotFound.
	Get(ctx context.Context, jobID uuid.UUID) (*Job, error)

	Ping(ctx context.Context) error
	Close()
}
