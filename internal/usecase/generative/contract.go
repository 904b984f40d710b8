package generative

import (
	"context"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// Completer sends one prompt to the provider. Errors should be *domain.ProviderError.
type Completer interface {
	Complete(ctx context.Context, p domain.Prompt) (string, error)
}
