package scrape

import (
	"context"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// Session is a lease on the shared browser. Release must be called exactly once.
type Session interface {
	NewPage(ctx context.Context) (domain.Page, error)
	Release()
}

// BrowserPool hands out sessions on the shared browser.
type BrowserPool interface {
	Acquire(ctx context.Context) (Session, error)
}

// Extractors resolves a source name to its extractor.
type Extractors interface {
	Get(source string) (domain.Extractor, error)
}
