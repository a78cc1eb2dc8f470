package parse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/billscan/internal/ocr"
)

func line(text string, top float64) ocr.Line {
	return ocr.Line{
		Text:       text,
		BBox:       ocr.BBox{Left: 0, Top: top, Width: 1, Height: 0.02},
		Confidence: 90,
	}
}

func TestHeuristicExtractsTriple(t *testing.T) {
	doc := ocr.Document{Pages: []ocr.Page{{
		PageNo: 1,
		Lines: []ocr.Line{
			line("Livi Tab 14 32.00 448.00", 0.1),
			line("Total 448.00", 0.9),
		},
	}}}

	res, err := NewHeuristic(nil).Extract(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, res.PagewiseLineItems, 1)
	page := res.PagewiseLineItems[0]
	assert.Equal(t, "1", page.PageNo)
	assert.Equal(t, PageTypeBillDetail, page.PageType)
	require.Len(t, page.BillItems, 1)

	got := page.BillItems[0]
	assert.Equal(t, "Livi Tab", got.ItemName)
	require.NotNil(t, got.ItemQuantity)
	assert.InDelta(t, 14, *got.ItemQuantity, 1e-9)
	require.NotNil(t, got.ItemRate)
	assert.InDelta(t, 32.00, *got.ItemRate, 1e-9)
	require.NotNil(t, got.ItemAmount)
	assert.InDelta(t, 448.00, *got.ItemAmount, 1e-9)
	require.NotNil(t, got.BBox)

	assert.Equal(t, 1, res.TotalItemCount)
	assert.InDelta(t, 448.00, res.CalculatedTotal, 1e-9)
	require.NotNil(t, res.ExtractedTotal)
	assert.InDelta(t, 448.00, *res.ExtractedTotal, 1e-9)
	assert.Equal(t, TokenUsage{}, res.TokenUsage)
}

func TestHeuristicNameStopsAtFirstNumericToken(t *testing.T) {
	doc := ocr.Document{Pages: []ocr.Page{{
		PageNo: 1,
		Lines:  []ocr.Line{line("Livi 300mg Tab 14 32.00 448.00", 0.1)},
	}}}

	res, err := NewHeuristic(nil).Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, res.PagewiseLineItems[0].BillItems, 1)

	// "300" inside "300mg" is the first numeric token, so the name is
	// cut before it; the right-to-left assignment is unaffected.
	got := res.PagewiseLineItems[0].BillItems[0]
	assert.Equal(t, "Livi", got.ItemName)
	assert.InDelta(t, 14, *got.ItemQuantity, 1e-9)
	assert.InDelta(t, 32.00, *got.ItemRate, 1e-9)
	assert.InDelta(t, 448.00, *got.ItemAmount, 1e-9)
}

func TestHeuristicFewerThanThreeTokens(t *testing.T) {
	doc := ocr.Document{Pages: []ocr.Page{{
		PageNo: 1,
		Lines: []ocr.Line{
			line("Consultation 500.00", 0.2),
			line("Syringe 2 15.00", 0.4),
		},
	}}}

	res, err := NewHeuristic(nil).Extract(context.Background(), doc)
	require.NoError(t, err)
	items := res.PagewiseLineItems[0].BillItems
	require.Len(t, items, 2)

	assert.Equal(t, "Consultation", items[0].ItemName)
	assert.Nil(t, items[0].ItemQuantity)
	assert.Nil(t, items[0].ItemRate)
	assert.InDelta(t, 500.00, *items[0].ItemAmount, 1e-9)

	assert.Equal(t, "Syringe", items[1].ItemName)
	assert.Nil(t, items[1].ItemQuantity)
	assert.InDelta(t, 2, *items[1].ItemRate, 1e-9)
	assert.InDelta(t, 15.00, *items[1].ItemAmount, 1e-9)
}

func TestHeuristicNameFallsBackToFullLine(t *testing.T) {
	doc := ocr.Document{Pages: []ocr.Page{{
		PageNo: 1,
		Lines:  []ocr.Line{line("12.50", 0.3)},
	}}}

	res, err := NewHeuristic(nil).Extract(context.Background(), doc)
	require.NoError(t, err)
	items := res.PagewiseLineItems[0].BillItems
	require.Len(t, items, 1)
	assert.Equal(t, "12.50", items[0].ItemName)
	assert.InDelta(t, 12.50, *items[0].ItemAmount, 1e-9)
}

func TestHeuristicSkipsNoiseAndBlankLines(t *testing.T) {
	doc := ocr.Document{Pages: []ocr.Page{{
		PageNo: 1,
		Lines: []ocr.Line{
			line("   ", 0.1),
			line("Patient Name: John Doe", 0.2),
			line("----------------", 0.3),
		},
	}}}

	res, err := NewHeuristic(nil).Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Empty(t, res.PagewiseLineItems[0].BillItems)
	assert.Equal(t, 0, res.TotalItemCount)
	assert.InDelta(t, 0, res.CalculatedTotal, 1e-9)
	assert.Nil(t, res.ExtractedTotal)
}

func TestHeuristicLastTotalWins(t *testing.T) {
	doc := ocr.Document{Pages: []ocr.Page{{
		PageNo: 1,
		Lines: []ocr.Line{
			line("Sub Total 400.00", 0.7),
			line("Grand Total 448.00", 0.9),
		},
	}}}

	res, err := NewHeuristic(nil).Extract(context.Background(), doc)
	require.NoError(t, err)
	require.NotNil(t, res.ExtractedTotal)
	assert.InDelta(t, 448.00, *res.ExtractedTotal, 1e-9)
	assert.Empty(t, res.PagewiseLineItems[0].BillItems, "total lines are never candidates")
}

func TestHeuristicDedupeAffectsTotalsNotPagewise(t *testing.T) {
	// The same physical row recognized on both passes stays in pagewise
	// output but is counted and summed once.
	doc := ocr.Document{Pages: []ocr.Page{
		{PageNo: 1, Lines: []ocr.Line{line("Livi Tab 14 32.00 448.00", 0.1)}},
		{PageNo: 2, Lines: []ocr.Line{line("Livi Tab 14 32.00 448.00", 0.1)}},
	}}

	res, err := NewHeuristic(nil).Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, res.PagewiseLineItems, 2)
	assert.Len(t, res.PagewiseLineItems[0].BillItems, 1)
	assert.Len(t, res.PagewiseLineItems[1].BillItems, 1)
	assert.Equal(t, 1, res.TotalItemCount)
	assert.InDelta(t, 448.00, res.CalculatedTotal, 1e-9)
}
