package health

import "context"

// StorePinger checks cache store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// BrowserState reports the browser launch breaker state: "closed", "half-open" or "open".
type BrowserState interface {
	State() string
}
