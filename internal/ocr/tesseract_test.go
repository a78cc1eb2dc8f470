package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/billscan/billscan/internal/common"
)

// stubRunner replays canned process output keyed by the last argument.
type stubRunner struct {
	calls   [][]string
	outputs map[string][]byte
	err     error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, append([]string{name}, args...))
	if s.err != nil {
		return nil, []byte("boom"), s.err
	}
	last := args[len(args)-1]
	if out, ok := s.outputs[last]; ok {
		return out, nil, nil
	}
	return s.outputs["*"], nil, nil
}

func TestTesseractRecognizeTSV(t *testing.T) {
	runner := &stubRunner{outputs: map[string][]byte{"tsv": []byte(sampleTSV)}}
	engine := NewTesseract(TesseractConfig{Lang: "eng"}, runner, nil)

	doc, err := engine.Recognize(context.Background(), "/tmp/bill.png")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.Len(t, doc.Pages[0].Lines, 2)
	assert.Equal(t, "Livi Tab 448.00\nTotal 448.00", doc.RawText)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"tesseract", "/tmp/bill.png", "stdout", "-l", "eng", "tsv"}, runner.calls[0])
}

func TestTesseractPlainTextFallback(t *testing.T) {
	// TSV output with no usable lines degrades to a plain-text run.
	runner := &stubRunner{outputs: map[string][]byte{
		"tsv": []byte("level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n"),
		"*":   []byte("Livi Tab 448.00"),
	}}
	engine := NewTesseract(TesseractConfig{}, runner, nil)

	doc, err := engine.Recognize(context.Background(), "/tmp/bill.png")
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Lines, 1)
	assert.Equal(t, "Livi Tab 448.00", doc.Pages[0].Lines[0].Text)
	assert.Len(t, runner.calls, 2)
}

func TestTesseractRunError(t *testing.T) {
	runner := &stubRunner{err: errors.New("exec: not found")}
	engine := NewTesseract(TesseractConfig{}, runner, nil)

	_, err := engine.Recognize(context.Background(), "/tmp/bill.png")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrOCR)
}

func TestTesseractTessdataDirFlag(t *testing.T) {
	runner := &stubRunner{outputs: map[string][]byte{"tsv": []byte(sampleTSV)}}
	engine := NewTesseract(TesseractConfig{TessdataDir: "/opt/tessdata"}, runner, nil)

	_, err := engine.Recognize(context.Background(), "/tmp/bill.png")
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "--tessdata-dir")
	assert.Contains(t, runner.calls[0], "/opt/tessdata")
}
