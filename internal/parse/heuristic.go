package parse

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/billscan/billscan/internal/ocr"
)

// Maximal numeric substrings: digits with optional internal '.' or ','.
var reNumericToken = regexp.MustCompile(`\d[\d.,]*`)

// Heuristic is the geometry-based extractor: it classifies each OCR line
// as a total line, a line-item candidate, or noise, assigns qty/rate/amount
// from the line's numeric tokens right to left, and deduplicates candidates
// across pages by bounding-box overlap and fuzzy name similarity.
//
// Rows whose only numeric content is a date-like token are still picked up
// as items unless a "total" keyword matched; no date detection is done
// here. Known precision limitation.
type Heuristic struct {
	logger *slog.Logger
}

func NewHeuristic(logger *slog.Logger) *Heuristic {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heuristic{logger: logger}
}

func (h *Heuristic) Extract(_ context.Context, doc ocr.Document) (ExtractionResult, error) {
	var (
		pagewise       []PageResult
		allItems       []BillItem
		extractedTotal *float64
	)

	for _, page := range doc.Pages {
		pageItems := []BillItem{}

		for _, line := range page.Lines {
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}

			if strings.Contains(strings.ToLower(text), "total") {
				// Document-level total; last total line wins, no
				// reconciliation against the calculated sum.
				if num := ExtractNumber(text); num != nil {
					extractedTotal = num
				}
				continue
			}

			matches := reNumericToken.FindAllStringIndex(text, -1)
			if len(matches) == 0 {
				continue // noise
			}

			token := func(fromEnd int) *float64 {
				if len(matches) < fromEnd {
					return nil
				}
				m := matches[len(matches)-fromEnd]
				return ExtractNumber(text[m[0]:m[1]])
			}
			amount := token(1)
			rate := token(2)
			qty := token(3)

			name := strings.TrimSpace(text[:matches[0][0]])
			if name == "" {
				name = text
			}

			if amount == nil {
				continue
			}
			rounded := Round2(*amount)
			bbox := line.BBox
			item := BillItem{
				ItemName:     name,
				ItemQuantity: qty,
				ItemRate:     rate,
				ItemAmount:   &rounded,
				BBox:         &bbox,
			}
			pageItems = append(pageItems, item)
			allItems = append(allItems, item)
		}

		pagewise = append(pagewise, PageResult{
			PageNo:    strconv.Itoa(page.PageNo),
			PageType:  PageTypeBillDetail,
			BillItems: pageItems,
		})
	}

	unique := Dedupe(allItems)
	var sum float64
	for _, item := range unique {
		sum += *item.ItemAmount
	}

	h.logger.Info("parse.heuristic.ok",
		"pages", len(pagewise),
		"candidates", len(allItems),
		"unique", len(unique),
		"has_extracted_total", extractedTotal != nil,
	)

	return ExtractionResult{
		PagewiseLineItems: pagewise,
		TotalItemCount:    len(unique),
		CalculatedTotal:   Round2(sum),
		ExtractedTotal:    extractedTotal,
	}, nil
}
