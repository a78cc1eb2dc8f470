package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/billscan/billscan/internal/common"
	"github.com/billscan/billscan/internal/ocr"
	"github.com/billscan/billscan/internal/parse"
)

// Extractor is the LLM-backed implementation of parse.Extractor: it
// prompts a text-generation backend with the raw OCR text and validates,
// repairs, and normalizes the returned JSON into an ExtractionResult.
type Extractor struct {
	backend Backend
	logger  *slog.Logger
}

func NewExtractor(backend Backend, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{backend: backend, logger: logger}
}

// loose mirrors of the target schema; numeric fields arrive as number,
// string, or null and are coerced afterwards.
type rawItem struct {
	ItemName     string `json:"item_name"`
	ItemAmount   any    `json:"item_amount"`
	ItemRate     any    `json:"item_rate"`
	ItemQuantity any    `json:"item_quantity"`
}

type rawPage struct {
	PageNo    json.RawMessage `json:"page_no"`
	PageType  string          `json:"page_type"`
	BillItems []rawItem       `json:"bill_items"`
}

type rawResult struct {
	PagewiseLineItems []rawPage         `json:"pagewise_line_items"`
	TotalItemCount    int               `json:"total_item_count"`
	TokenUsage        *parse.TokenUsage `json:"token_usage"`
}

func (e *Extractor) Extract(ctx context.Context, doc ocr.Document) (parse.ExtractionResult, error) {
	start := time.Now()
	e.logger.Info("llm.extract.start", "ocr_bytes", len(doc.RawText))

	completion, err := e.backend.Generate(ctx, BuildPrompt(doc.RawText))
	if err != nil {
		return parse.ExtractionResult{}, common.WrapError(err, "llm backend")
	}

	body, err := extractJSONObject(completion.Text)
	if err != nil {
		e.logger.Error("llm.extract.malformed", "error", err, "content_len", len(completion.Text))
		return parse.ExtractionResult{}, err
	}

	if err := ValidateJSONAgainstSchema(BuildExtractionJSONSchema(), body); err != nil {
		e.logger.Error("llm.extract.schema_violation", "error", err)
		return parse.ExtractionResult{}, fmt.Errorf("%w: %v", common.ErrSchemaViolation, err)
	}

	var raw rawResult
	if err := json.Unmarshal(body, &raw); err != nil {
		return parse.ExtractionResult{}, fmt.Errorf("%w: decode: %v", common.ErrMalformedExtraction, err)
	}

	result := parse.ExtractionResult{TokenUsage: completion.Usage}
	nameBearing := 0
	for _, page := range raw.PagewiseLineItems {
		items := make([]parse.BillItem, 0, len(page.BillItems))
		for _, it := range page.BillItems {
			item := parse.BillItem{
				ItemName:     it.ItemName,
				ItemAmount:   NormalizeNumber(it.ItemAmount),
				ItemRate:     NormalizeNumber(it.ItemRate),
				ItemQuantity: NormalizeNumber(it.ItemQuantity),
			}
			if item.ItemName != "" {
				nameBearing++
			}
			items = append(items, item)
		}
		result.PagewiseLineItems = append(result.PagewiseLineItems, parse.PageResult{
			PageNo:    pageNoString(page.PageNo),
			PageType:  pageTypeOrDefault(page.PageType),
			BillItems: items,
		})
	}

	// The model's own count wins when supplied; otherwise count items that
	// carry a name.
	result.TotalItemCount = raw.TotalItemCount
	if result.TotalItemCount == 0 {
		result.TotalItemCount = nameBearing
	}
	if result.TokenUsage == (parse.TokenUsage{}) && raw.TokenUsage != nil {
		result.TokenUsage = *raw.TokenUsage
	}

	e.logger.Info("llm.extract.ok",
		"pages", len(result.PagewiseLineItems),
		"items", result.TotalItemCount,
		"total_tokens", result.TokenUsage.TotalTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// extractJSONObject tolerates leading prose or markdown fences by parsing
// from the first '{' to end of string.
func extractJSONObject(text string) ([]byte, error) {
	idx := strings.IndexByte(text, '{')
	if idx == -1 {
		return nil, fmt.Errorf("%w: no JSON object in response", common.ErrMalformedExtraction)
	}
	body := []byte(text[idx:])
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON after first '{'", common.ErrMalformedExtraction)
	}
	return body, nil
}

// NormalizeNumber coerces a model-supplied numeric field: nil stays nil,
// numbers are rounded to 2 decimals, strings are stripped of everything
// but digits, '.' and '-', then parsed and rounded; anything unparseable
// becomes nil.
func NormalizeNumber(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		r := parse.Round2(t)
		return &r
	case string:
		var b strings.Builder
		for _, r := range t {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				b.WriteRune(r)
			}
		}
		cleaned := b.String()
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		r := parse.Round2(f)
		return &r
	default:
		return nil
	}
}

func pageNoString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "1"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return "1"
}

func pageTypeOrDefault(t string) string {
	if t == "" {
		return parse.PageTypeBillDetail
	}
	return t
}
