package domain

import "context"

// Listing is a normalized lodging offer.
// Price and Rating are nil when unknown.
type Listing struct {
	Source        string   `json:"source"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	PricePerNight *float64 `json:"price_per_night,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewCount   int      `json:"review_count,omitempty"`
	PropertyType  string   `json:"property_type,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	Lat           *float64 `json:"lat,omitempty"`
	Lng           *float64 `json:"lng,omitempty"`
	Summary       string   `json:"summary,omitempty"`
}

// SourceResult is the outcome of scraping one target.
// A result with zero listings is reported as unsuccessful.
type SourceResult struct {
	Source   string    `json:"source"`
	Success  bool      `json:"success"`
	Listings []Listing `json:"listings,omitempty"`
	Err      error     `json:"-"`
	Error    string    `json:"error,omitempty"`
}

// NewSourceResult builds a SourceResult, treating an empty listing set as a failure.
func NewSourceResult(source string, listings []Listing, err error) SourceResult {
	r := SourceResult{Source: source, Listings: listings, Err: err}
	switch {
	case err != nil:
		r.Error = err.Error()
	case len(listings) == 0:
		r.Error = "no listings found"
	default:
		r.Success = true
	}
	return r
}

// Page is a loaded browser tab that extractors can query.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, script string, out any) error
	Close() error
}

// Extractor pulls raw listings from a loaded page for one source.
type Extractor interface {
	Source() string
	SearchURL(c SearchCriteria) string
	Extract(ctx context.Context, page Page) ([]Listing, error)
}
