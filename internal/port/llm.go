package port

import (
	"context"

	"trialrag/internal/domain"
)

// Completer is the text-completion service used for answer synthesis.
type Completer interface {
	// Complete sends a single prompt. A nil error always comes with a
	// Completion; transport, auth and quota failures come back as errors.
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}
