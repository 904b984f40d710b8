package extractor

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

const (
	pollInterval = 400 * time.Millisecond
	scrollScript = `window.scrollTo(0, document.body.scrollHeight); true`
)

// waitForCards polls countScript until it reports at least one card or ctx ends.
// A page that never renders cards yields zero, not an error.
func waitForCards(ctx context.Context, page domain.Page, countScript string) (int, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		var n int
		if err := page.Evaluate(ctx, countScript, &n); err != nil {
			if ctx.Err() != nil {
				return 0, nil
			}
			return 0, fmt.Errorf("counting cards: %w", err)
		}
		if n > 0 {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return 0, nil
		case <-ticker.C:
		}
	}
}

// scrapeCards waits for cards, scrolls once to trigger lazy loading and runs cardsScript.
func scrapeCards(ctx context.Context, page domain.Page, countScript, cardsScript string) ([]rawCard, error) {
	n, err := waitForCards(ctx, page, countScript)
	if err != nil || n == 0 {
		return nil, err
	}

	// Lazy-loaded cards are best effort.
	_ = page.Evaluate(ctx, scrollScript, nil)

	var cards []rawCard
	if err := page.Evaluate(ctx, cardsScript, &cards); err != nil {
		return nil, fmt.Errorf("extracting cards: %w", err)
	}
	return cards, nil
}
