package assistant

import "context"

// CompletionRequest carries one prompt pair plus sampling parameters. The
// debate engine never needs multi-turn chat state: transcript context is
// folded into the user prompt by the caller.
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int64
}

// Completer is the narrow LLM contract every provider implements.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
