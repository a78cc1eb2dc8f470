package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/fetch"
	"github.com/billscan/billscan/internal/ocr"
	"github.com/billscan/billscan/internal/parse"
	"github.com/billscan/billscan/internal/store"
)

type fakeFetcher struct {
	dir string
	err error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, jobID uuid.UUID) (fetch.Result, error) {
	if f.err != nil {
		return fetch.Result{}, f.err
	}
	path := filepath.Join(f.dir, jobID.String()+".pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o644); err != nil {
		return fetch.Result{}, err
	}
	return fetch.Result{Path: path, Format: constants.PDF, Size: 4}, nil
}

type fakeRasterizer struct {
	err error
}

func (r *fakeRasterizer) ToImage(_ context.Context, path string, _ constants.Format) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	out := path + ".png"
	if err := os.WriteFile(out, []byte("png"), 0o644); err != nil {
		return "", err
	}
	return out, nil
}

type fakeEngine struct {
	name string
	doc  ocr.Document
	err  error
}

func (e *fakeEngine) Name() string { return e.name }

func (e *fakeEngine) Recognize(_ context.Context, _ string) (ocr.Document, error) {
	return e.doc, e.err
}

type fakeExtractor struct {
	res parse.ExtractionResult
	err error
}

func (e *fakeExtractor) Extract(_ context.Context, _ ocr.Document) (parse.ExtractionResult, error) {
	return e.res, e.err
}

type fakeUploader struct {
	key string
	err error
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string) (string, error) {
	u.key = key
	if u.err != nil {
		return "", u.err
	}
	return "s3://bills/" + key, nil
}

// memJobs is an in-memory JobStore mirroring the terminal-once lifecycle.
type memJobs struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*store.Job
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[uuid.UUID]*store.Job{}}
}

func (m *memJobs) Create(_ context.Context, jobID uuid.UUID, inputURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID] = &store.Job{
		JobID:    jobID,
		InputURL: inputURL,
		Status:   string(constants.JobStatusProcessing),
	}
	return nil
}

func (m *memJobs) SaveRawOCR(_ context.Context, jobID uuid.UUID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID].RawOCRText = &text
	return nil
}

func (m *memJobs) SaveArtifactPath(_ context.Context, jobID uuid.UUID, s3Path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[jobID].S3Path = &s3Path
	return nil
}

func (m *memJobs) MarkDone(_ context.Context, jobID uuid.UUID, result parse.ExtractionResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[jobID]
	if job.Status != string(constants.JobStatusProcessing) {
		return fmt.Errorf("%w: job %s not in processing state", common.ErrPersistence, jobID)
	}
	doc, err := json.Marshal(result)
	if err != nil {
		return err
	}
	job.Status = string(constants.JobStatusDone)
	job.Result = doc
	return nil
}

func (m *memJobs) MarkError(_ context.Context, jobID uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[jobID]
	if job.Status != string(constants.JobStatusProcessing) {
		return fmt.Errorf("%w: job %s not in processing state", common.ErrPersistence, jobID)
	}
	job.Status = string(constants.JobStatusError)
	job.Error = &message
	return nil
}

func (m *memJobs) Get(_ context.Context, jobID uuid.UUID) (*store.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

func (m *memJobs) Ping(context.Context) error { return nil }
func (m *memJobs) Close()                     {}

func sampleDoc() ocr.Document {
	return ocr.Document{
		Pages:   ocr.FromPlainText("Livi Tab 448.00"),
		RawText: "Livi Tab 448.00",
	}
}

func sampleResult() parse.ExtractionResult {
	amount := 448.00
	return parse.ExtractionResult{
		PagewiseLineItems: []parse.PageResult{{
			PageNo:    "1",
			PageType:  parse.PageTypeBillDetail,
			BillItems: []parse.BillItem{{ItemName: "Livi Tab", ItemAmount: &amount}},
		}},
		TotalItemCount:  1,
		CalculatedTotal: 448.00,
	}
}

func TestProcessorSuccess(t *testing.T) {
	jobs := newMemJobs()
	uploader := &fakeUploader{}
	p := NewProcessor(
		&fakeFetcher{dir: t.TempDir()},
		&fakeRasterizer{},
		uploader,
		&fakeEngine{name: "tesseract", doc: sampleDoc()},
		nil,
		&fakeExtractor{res: sampleResult()},
		jobs,
		nil,
	)

	jobID, res, err := p.Run(context.Background(), "https://example.com/bill.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalItemCount)

	job, err := jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusDone), job.Status)
	require.NotNil(t, job.RawOCRText)
	assert.Equal(t, "Livi Tab 448.00", *job.RawOCRText)
	require.NotNil(t, job.S3Path)
	assert.Equal(t, "s3://bills/uploads/"+jobID.String()+".pdf", *job.S3Path)
	assert.Equal(t, "uploads/"+jobID.String()+".pdf", uploader.key)
}

func TestProcessorFetchFailure(t *testing.T) {
	jobs := newMemJobs()
	p := NewProcessor(
		&fakeFetcher{err: fmt.Errorf("%w: status 404", common.ErrFetch)},
		&fakeRasterizer{},
		nil,
		&fakeEngine{name: "tesseract"},
		nil,
		&fakeExtractor{},
		jobs,
		nil,
	)

	jobID, _, err := p.Run(context.Background(), "https://example.com/missing.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFetch)

	job, err := jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusError), job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "document fetch failed", *job.Error)
}

func TestProcessorOCRFailureRecordsReason(t *testing.T) {
	jobs := newMemJobs()
	p := NewProcessor(
		&fakeFetcher{dir: t.TempDir()},
		&fakeRasterizer{},
		nil,
		&fakeEngine{name: "tesseract", err: fmt.Errorf("%w: tesseract exited 1", common.ErrOCR)},
		nil,
		&fakeExtractor{},
		jobs,
		nil,
	)

	jobID, _, err := p.Run(context.Background(), "u")
	require.Error(t, err)

	job, err := jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusError), job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "OCR failed", *job.Error)
	assert.Nil(t, job.RawOCRText, "no OCR snapshot when recognition failed")
}

func TestProcessorFallbackEngine(t *testing.T) {
	jobs := newMemJobs()
	p := NewProcessor(
		&fakeFetcher{dir: t.TempDir()},
		&fakeRasterizer{},
		nil,
		&fakeEngine{name: "textract", err: errors.New("throttled")},
		&fakeEngine{name: "tesseract", doc: sampleDoc()},
		&fakeExtractor{res: sampleResult()},
		jobs,
		nil,
	)

	jobID, _, err := p.Run(context.Background(), "u")
	require.NoError(t, err)

	job, err := jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusDone), job.Status)
}

func TestProcessorUploadFailureDoesNotFailJob(t *testing.T) {
	jobs := newMemJobs()
	p := NewProcessor(
		&fakeFetcher{dir: t.TempDir()},
		&fakeRasterizer{},
		&fakeUploader{err: errors.New("access denied")},
		&fakeEngine{name: "tesseract", doc: sampleDoc()},
		nil,
		&fakeExtractor{res: sampleResult()},
		jobs,
		nil,
	)

	jobID, _, err := p.Run(context.Background(), "u")
	require.NoError(t, err)

	job, err := jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusDone), job.Status)
	assert.Nil(t, job.S3Path)
}

func TestProcessorExtractionFailureKeepsOCRSnapshot(t *testing.T) {
	jobs := newMemJobs()
	p := NewProcessor(
		&fakeFetcher{dir: t.TempDir()},
		&fakeRasterizer{},
		nil,
		&fakeEngine{name: "tesseract", doc: sampleDoc()},
		nil,
		&fakeExtractor{err: fmt.Errorf("%w: no JSON object in response", common.ErrMalformedExtraction)},
		jobs,
		nil,
	)

	jobID, _, err := p.Run(context.Background(), "u")
	require.Error(t, err)

	job, err := jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, string(constants.JobStatusError), job.Status)
	require.NotNil(t, job.RawOCRText)
	assert.Equal(t, "Livi Tab 448.00", *job.RawOCRText)
	require.NotNil(t, job.Error)
	assert.Equal(t, "LLM extraction failed", *job.Error)
}

func TestProcessorCleansUpTempFiles(t *testing.T) {
	dir := t.TempDir()
	jobs := newMemJobs()
	p := NewProcessor(
		&fakeFetcher{dir: dir},
		&fakeRasterizer{},
		nil,
		&fakeEngine{name: "tesseract", doc: sampleDoc()},
		nil,
		&fakeExtractor{res: sampleResult()},
		jobs,
		nil,
	)

	_, _, err := p.Run(context.Background(), "u")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
