package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/parse"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS bill_jobs (
	job_id       UUID PRIMARY KEY,
	input_url    TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	raw_ocr_text TEXT,
	s3_path      TEXT,
	result       JSONB,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
)`

// PostgresConfig mirrors the pool knobs exposed via env.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// Postgres is the production JobStore on a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgres(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("connecting to database")

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", common.ErrPersistence, err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "billscand"

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", common.ErrPersistence, err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ensure schema: %v", common.ErrPersistence, err)
	}

	logger.Info("successfully connected to database")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (s *Postgres) Create(ctx context.Context, jobID uuid.UUID, inputURL string) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO bill_jobs (job_id, input_url, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)`,
		jobID, inputURL, string(constants.JobStatusProcessing), now)
	if err != nil {
		return fmt.Errorf("%w: create job: %v", common.ErrPersistence, err)
	}
	s.logger.Info("store.job_created", "job_id", jobID)
	return nil
}

func (s *Postgres) SaveRawOCR(ctx context.Context, jobID uuid.UUID, text string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bill_jobs SET raw_ocr_text = $2, updated_at = $3 WHERE job_id = $1`,
		jobID, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: save raw ocr: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *Postgres) SaveArtifactPath(ctx context.Context, jobID uuid.UUID, s3Path string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE bill_jobs SET s3_path = $2, updated_at = $3 WHERE job_id = $1`,
		jobID, s3Path, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%w: save artifact path: %v", common.ErrPersistence, err)
	}
	return nil
}

func (s *Postgres) MarkDone(ctx context.Context, jobID uuid.UUID, result parse.ExtractionResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: encode result: %v", common.ErrPersistence, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE bill_jobs SET status = $2, result = $3, updated_at = $4
		 WHERE job_id = $1 AND status = $5`,
		jobID, string(constants.JobStatusDone), doc, time.Now().UTC(),
		string(constants.JobStatusProcessing))
	if err != nil {
		return fmt.Errorf("%w: mark done: %v", common.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s not in processing state", common.ErrPersistence, jobID)
	}
	s.logger.Info("store.job_done", "job_id", jobID)
	return nil
}

func (s *Postgres) MarkError(ctx context.Context, jobID uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bill_jobs SET status = $2, error = $3, updated_at = $4
		 WHERE job_id = $1 AND status = $5`,
		jobID, string(constants.JobStatusError), message, time.Now().UTC(),
		string(constants.JobStatusProcessing))
	if err != nil {
		return fmt.Errorf("%w: mark error: %v", common.ErrPersistence, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s not in processing state", common.ErrPersistence, jobID)
	}
	s.logger.Warn("store.job_error", "job_id", jobID, "reason", message)
	return nil
}

func (s *Postgres) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	var job Job
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, input_url, status, error, raw_ocr_text, s3_path, result, created_at, updated_at
		 FROM bill_jobs WHERE job_id = $1`, jobID).
		Scan(&job.JobID, &job.InputURL, &job.Status, &job.Error, &job.RawOCRText,
			&job.S3Path, &job.Result, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %v", common.ErrPersistence, err)
	}
	return &job, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Postgres) Close() {
	s.pool.Close()
}
