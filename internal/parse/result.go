// Package parse turns normalized OCR documents into structured bill line
// items. Two extractors produce the same result shape: the geometric
// heuristic in this package and the LLM-backed one in internal/llm.
package parse

import (
	"context"

	"github.com/billscan/billscan/internal/ocr"
)

// TokenUsage reports LLM token consumption; all zeros when the extraction
// path does not involve a model.
type TokenUsage struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// BillItem is one extracted line item, candidate or final.
// ItemAmount is required for a candidate to be emitted; the bounding box
// is present only on geometry-derived items.
type BillItem struct {
	ItemName     string    `json:"item_name"`
	ItemQuantity *float64  `json:"item_quantity"`
	ItemRate     *float64  `json:"item_rate"`
	ItemAmount   *float64  `json:"item_amount"`
	BBox         *ocr.BBox `json:"bbox,omitempty"`
}

// PageResult groups the items found on one page.
type PageResult struct {
	PageNo    string     `json:"page_no"`
	PageType  string     `json:"page_type"`
	BillItems []BillItem `json:"bill_items"`
}

// PageTypeBillDetail is the only page type in current scope.
const PageTypeBillDetail = "Bill Detail"

// ExtractionResult is the top-level structured output of either path.
type ExtractionResult struct {
	PagewiseLineItems []PageResult `json:"pagewise_line_items"`
	TotalItemCount    int          `json:"total_item_count"`
	CalculatedTotal   float64      `json:"calculated_total"`
	ExtractedTotal    *float64     `json:"extracted_total"`
	TokenUsage        TokenUsage   `json:"token_usage"`
}

// Extractor converts a recognized document into the structured result.
// Implementations must be safe for concurrent use: jobs share no state.
type Extractor interface {
	Extract(ctx context.Context, doc ocr.Document) (ExtractionResult, error)
}
