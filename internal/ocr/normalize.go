package ocr

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// Geometry defaults applied when a structured block carries no bounding
// box, so every line stays dedup-comparable even with incomplete metadata.
const (
	defaultBoxWidth  = 1
	defaultBoxHeight = 0.02
)

// FromTextractBlocks groups LINE blocks by page number (default 1 when
// absent) into the intermediate representation.
func FromTextractBlocks(blocks []types.Block) []Page {
	byPage := map[int]*Page{}
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeLine {
			continue
		}
		pageNo := 1
		if block.Page != nil {
			pageNo = int(*block.Page)
		}
		p, ok := byPage[pageNo]
		if !ok {
			p = &Page{PageNo: pageNo}
			byPage[pageNo] = p
		}

		line := Line{BBox: BBox{Width: defaultBoxWidth, Height: defaultBoxHeight}, Confidence: -1}
		if block.Text != nil {
			line.Text = *block.Text
		}
		if block.Confidence != nil {
			line.Confidence = float64(*block.Confidence)
		}
		if block.Geometry != nil && block.Geometry.BoundingBox != nil {
			bb := block.Geometry.BoundingBox
			line.BBox = BBox{
				Left:   float64(bb.Left),
				Top:    float64(bb.Top),
				Width:  float64(bb.Width),
				Height: float64(bb.Height),
			}
		}
		p.Lines = append(p.Lines, line)
	}

	pages := make([]Page, 0, len(byPage))
	for _, p := range byPage {
		pages = append(pages, *p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNo < pages[j].PageNo })
	return pages
}

// FromTesseractTSV parses tesseract's TSV output into a single page of
// lines with pixel-space boxes and mean word confidence.
//
// TSV columns: level page block par line word left top width height conf text.
// Level 4 rows open a line (carrying its box); level 5 rows are the words.
func FromTesseractTSV(tsv string) []Page {
	var lines []Line
	var cur *Line
	var confSum float64
	var confN int

	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(cur.Text)
		if confN > 0 {
			cur.Confidence = confSum / float64(confN)
		}
		if cur.Text != "" {
			lines = append(lines, *cur)
		}
		cur, confSum, confN = nil, 0, 0
	}

	for i, row := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(row) == "" {
			continue // header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 11 {
			continue
		}
		level, err := strconv.Atoi(cols[0])
		if err != nil {
			continue
		}
		switch level {
		case 4: // line
			flush()
			left, _ := strconv.ParseFloat(cols[6], 64)
			top, _ := strconv.ParseFloat(cols[7], 64)
			width, _ := strconv.ParseFloat(cols[8], 64)
			height, _ := strconv.ParseFloat(cols[9], 64)
			cur = &Line{BBox: BBox{Left: left, Top: top, Width: width, Height: height}, Confidence: -1}
		case 5: // word
			if cur == nil || len(cols) < 12 {
				continue
			}
			word := cols[11]
			if word == "" {
				continue
			}
			if cur.Text != "" {
				cur.Text += " "
			}
			cur.Text += word
			if conf, err := strconv.ParseFloat(cols[10], 64); err == nil && conf >= 0 {
				confSum += conf
				confN++
			}
		}
	}
	flush()

	if len(lines) == 0 {
		return nil
	}
	return []Page{{PageNo: 1, Lines: lines}}
}

// FromPlainText wraps bare engine text with no line segmentation into a
// single-page, single-virtual-line document so downstream stages degrade
// gracefully. Geometry-based deduplication is non-functional in this mode.
func FromPlainText(text string) []Page {
	return []Page{{
		PageNo: 1,
		Lines: []Line{{
			Text:       strings.TrimSpace(text),
			BBox:       BBox{Width: defaultBoxWidth, Height: defaultBoxHeight},
			Confidence: -1,
		}},
	}}
}

// FlattenText joins every line of every page into one raw-text snapshot.
func FlattenText(pages []Page) string {
	var b strings.Builder
	for _, p := range pages {
		for _, l := range p.Lines {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(l.Text)
		}
	}
	return b.String()
}
