package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/parse"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS bill_jobs (
	job_id       TEXT PRIMARY KEY,
	input_url    TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	raw_ocr_text TEXT,
	s3_path      TEXT,
	result       TEXT,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
)`

// SQLite is the local-dev JobStore; timestamps are stored as RFC 3339
// text and the result document as JSON text.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLite(ctx context.Context, dsn string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", common.ErrPersistence, err)
	}
	// modernc/sqlite serializes writes; keep a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", common.ErrPersistence, err)
	}
	logger.Info("sqlite job store ready", "dsn", dsn)
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Create(ctx context.Context, jobID uuid.UUID, inputURL string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bill_jobs (job_id, input_url, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		jobID.String(), inputURL, string(constants.JobStatusProcessing), now, now)
	if err != nil {
		return fmt.Errorf("%w: create job: %v", common.ErrPersistence, err)
	}
	s.logger.Info("store.job_created", "job_id", jobID)
	return nil
}

func (s *SQLite) SaveRawOCR(ctx context.Context, jobID uuid.UUID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bill_jobs SET raw_ocr_text = ?, updated_at = ? WHERE job_id = ?`,
		text, time.Now().UTC().Format(time.RFC3339Nano), jobID.String())
	if err != nil {
		return fmt.Errorf("%w: save raw ocr: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *SQLite) SaveArtifactPath(ctx context.Context, jobID uuid.UUID, s3Path string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bill_jobs SET s3_path = ?, updated_at = ? WHERE job_id = ?`,
		s3Path, time.Now().UTC().Format(time.RFC3339Nano), jobID.String())
	if err != nil {
		return fmt.Errorf("%w: save artifact path: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *SQLite) MarkDone(ctx context.Context, jobID uuid.UUID, result parse.ExtractionResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: encode result: %v", common.ErrPersistence, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bill_jobs SET status = ?, result = ?, updated_at = ?
		 WHERE job_id = ? AND status = ?`,
		string(constants.JobStatusDone), string(doc), time.Now().UTC().Format(time.RFC3339Nano),
		jobID.String(), string(constants.JobStatusProcessing))
	if err != nil {
		return fmt.Errorf("%w: mark done: %v", common.ErrPersistence, err)
	}
	return s.requireOneRow(res, jobID)
}

func (s *SQLite) MarkError(ctx context.Context, jobID uuid.UUID, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bill_jobs SET status = ?, error = ?, updated_at = ?
		 WHERE job_id = ? AND status = ?`,
		string(constants.JobStatusError), message, time.Now().UTC().Format(time.RFC3339Nano),
		jobID.String(), string(constants.JobStatusProcessing))
	if err != nil {
		return fmt.Errorf("%w: mark error: %v", common.ErrPersistence, err)
	}
	return s.requireOneRow(res, jobID)
}

func (s *SQLite) requireOneRow(res sql.Result, jobID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", common.ErrPersistence, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: job %s not in processing state", common.ErrPersistence, jobID)
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	var (
		job                  Job
		id                   string
		result               sql.NullString
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, input_url, status, error, raw_ocr_text, s3_path, result, created_at, updated_at
		 FROM bill_jobs WHERE job_id = ?`, jobID.String()).
		Scan(&id, &job.InputURL, &job.Status, &job.Error, &job.RawOCRText,
			&job.S3Path, &result, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %v", common.ErrPersistence, err)
	}

	job.JobID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: parse job id: %v", common.ErrPersistence, err)
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("%w: parse created_at: %v", common.ErrPersistence, err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("%w: parse updated_at: %v", common.ErrPersistence, err)
	}
	return &job, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("failed to close sqlite store", "error", err)
	}
}
