package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/billscan/billscan/internal/common"
)

// textractAPI is the slice of the Textract client we use; stubbed in tests.
type textractAPI interface {
	AnalyzeDocument(ctx context.Context, params *textract.AnalyzeDocumentInput, optFns ...func(*textract.Options)) (*textract.AnalyzeDocumentOutput, error)
}

// Textract is the cloud structured-document OCR engine. It analyzes the
// image with TABLES and FORMS features and normalizes LINE blocks into
// the intermediate representation.
type Textract struct {
	client textractAPI
	logger *slog.Logger
}

func NewTextract(ctx context.Context, region string, logger *slog.Logger) (*Textract, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, common.WrapError(err, "load aws config")
	}
	return &Textract{client: textract.NewFromConfig(cfg), logger: logger}, nil
}

// NewTextractWithClient wires a prebuilt client (used by tests).
func NewTextractWithClient(client textractAPI, logger *slog.Logger) *Textract {
	if logger == nil {
		logger = slog.Default()
	}
	return &Textract{client: client, logger: logger}
}

func (t *Textract) Name() string { return "textract" }

func (t *Textract) Recognize(ctx context.Context, imagePath string) (Document, error) {
	start := time.Now()
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return Document{}, fmt.Errorf("%w: read image: %v", common.ErrOCR, err)
	}

	out, err := t.client.AnalyzeDocument(ctx, &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: data},
		FeatureTypes: []types.FeatureType{types.FeatureTypeTables, types.FeatureTypeForms},
	})
	if err != nil {
		t.logger.Error("ocr.textract.analyze_failed", "path", imagePath, "error", err)
		return Document{}, fmt.Errorf("%w: textract: %v", common.ErrOCR, err)
	}

	pages := FromTextractBlocks(out.Blocks)
	doc := Document{Pages: pages, RawText: FlattenText(pages)}
	t.logger.Info("ocr.textract.ok",
		"path", imagePath,
		"blocks", len(out.Blocks),
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}
