package llm

import (
	"context"

	"github.com/billscan/billscan/internal/parse"
)

// Completion is one model response: the raw text plus reported usage
// (zeros when the backend did not report any).
type Completion struct {
	Text  string
	Usage parse.TokenUsage
}

// Backend is a text-generation model invoked with a fully built prompt.
// One round-trip, no streaming; retry/backoff belongs to the caller's
// client configuration, not here.
type Backend interface {
	Generate(ctx context.Context, prompt string) (Completion, error)
}
