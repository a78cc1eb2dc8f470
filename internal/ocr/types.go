// Package ocr defines the engine-agnostic intermediate representation for
// recognized documents and the engines that produce it. Downstream parsing
// never branches on engine identity; everything past Recognize works on
// Pages of Lines.
package ocr

import "context"

// BBox is an axis-aligned rectangle locating a text region on a page.
// Coordinates are consistent within a page but the unit depends on the
// engine (Textract emits normalized 0..1, tesseract emits pixels).
type BBox struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IoU returns the intersection-over-union of two rectangles in [0,1].
// A zero or negative union area yields 0, not an error.
func (a BBox) IoU(b BBox) float64 {
	interLeft := max(a.Left, b.Left)
	interTop := max(a.Top, b.Top)
	interRight := min(a.Left+a.Width, b.Left+b.Width)
	interBottom := min(a.Top+a.Height, b.Top+b.Height)

	interArea := max(0, interRight-interLeft) * max(0, interBottom-interTop)
	union := a.Width*a.Height + b.Width*b.Height - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// Line is one recognized line of text on a page.
// Confidence is in [0,100]; a negative value means the engine did not
// report one (unknown, not zero).
type Line struct {
	Text       string  `json:"text"`
	BBox       BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Page is an ordered sequence of lines. Order follows the engine's
// emission order, which is not guaranteed to be vertical reading order.
type Page struct {
	PageNo int    `json:"page_no"`
	Lines  []Line `json:"lines"`
}

// Document is the normalized output of an engine: structured pages for
// the geometric extraction path plus the raw text snapshot persisted on
// the job and fed to the LLM path.
type Document struct {
	Pages   []Page
	RawText string
}

// Engine recognizes text in a raster image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (Document, error)
}
