package domain

import "time"

// Mode is the generative fallback mode that produced a result.
type Mode string

const (
	// ModeAnalysis ranks and summarizes scraped listings.
	ModeAnalysis Mode = "analysis"
	// ModeOpenWeb answers from the open web when scraping found nothing.
	ModeOpenWeb Mode = "open_web"
)

// CacheTier identifies where a result was served from.
type CacheTier string

const (
	TierNone       CacheTier = "none"
	TierMemory     CacheTier = "l1"
	TierPersistent CacheTier = "l2"
	TierVector     CacheTier = "l3"
)

// SourceOutcome is the public summary of one scrape target.
type SourceOutcome struct {
	Source   string `json:"source"`
	Success  bool   `json:"success"`
	Listings int    `json:"listings"`
	Error    string `json:"error,omitempty"`
}

// SearchResult is the resolved answer for a SearchCriteria.
type SearchResult struct {
	ResolutionID string          `json:"resolution_id"`
	Destination  string          `json:"destination"`
	Mode         Mode            `json:"mode"`
	Listings     []Listing       `json:"listings"`
	Summary      string          `json:"summary,omitempty"`
	ParseFailed  bool            `json:"parse_failed,omitempty"`
	Sources      []SourceOutcome `json:"sources,omitempty"`
	CacheTier    CacheTier       `json:"cache_tier"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Usable reports whether the result carries anything worth caching or returning.
func (r *SearchResult) Usable() bool {
	return r != nil && (len(r.Listings) > 0 || r.Summary != "")
}
