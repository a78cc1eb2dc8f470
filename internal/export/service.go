// Package export renders a finished job's line items as an XLSX workbook.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/billscan/billscan/constants"
	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/parse"
	"github.com/billscan/billscan/internal/store"
)

// Service produces XLSX bytes for a job's extraction result.
type Service struct {
	jobs   store.JobStore
	logger *slog.Logger
}

func NewService(jobs store.JobStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, logger: logger}
}

// ExportJobXLSX returns an XLSX workbook (as bytes) with the line items
// of a done job. Jobs that are still processing or finished in error
// cannot be exported.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID uuid.UUID) ([]byte, error) {
	start := time.Now()

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != string(constants.JobStatusDone) {
		return nil, fmt.Errorf("%w: job %s is %s, not done", common.ErrInvalidInput, jobID, job.Status)
	}

	var result parse.ExtractionResult
	if err := json.Unmarshal(job.Result, &result); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Line Items"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		_, err := f.NewSheet(sheet)
		if err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Page",
		"Item Name",
		"Quantity",
		"Rate",
		"Amount",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	write := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	row := 2
	items := 0
	for _, page := range result.PagewiseLineItems {
		for _, item := range page.BillItems {
			write(1, row, page.PageNo)
			write(2, row, item.ItemName)
			writeNumber(write, 3, row, item.ItemQuantity)
			writeNumber(write, 4, row, item.ItemRate)
			writeNumber(write, 5, row, item.ItemAmount)
			row++
			items++
		}
	}

	// Summary rows after a blank line.
	row++
	write(2, row, "Item Count")
	write(5, row, result.TotalItemCount)
	row++
	write(2, row, "Calculated Total")
	write(5, row, result.CalculatedTotal)
	if result.ExtractedTotal != nil {
		row++
		write(2, row, "Extracted Total")
		write(5, row, *result.ExtractedTotal)
	}

	_ = f.SetColWidth(sheet, "A", "A", 8)  // page
	_ = f.SetColWidth(sheet, "B", "B", 42) // name
	_ = f.SetColWidth(sheet, "C", "E", 12) // numbers

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", jobID.String(),
		"rows", items,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func writeNumber(write func(col, row int, v any), col, row int, v *float64) {
	if v == nil {
		write(col, row, "")
		return
	}
	write(col, row, *v)
}
