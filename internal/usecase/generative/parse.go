package generative

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kailas-cloud/staydex/internal/domain"
)

var (
	fenceRegexp  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")
	numberRegexp = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	blankLine    = regexp.MustCompile(`\n\s*\n`)
)

// response is the JSON document the prompts ask for.
type response struct {
	Summary  string            `json:"summary"`
	Listings []responseListing `json:"listings"`
}

type responseListing struct {
	ID            flexInt   `json:"id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	Source        string    `json:"source"`
	PricePerNight flexFloat `json:"price_per_night"`
	Currency      string    `json:"currency"`
	Rating        flexFloat `json:"rating"`
	ReviewCount   flexFloat `json:"review_count"`
	PropertyType  string    `json:"property_type"`
	ImageURL      string    `json:"image_url"`
	Lat           flexFloat `json:"lat"`
	Lng           flexFloat `json:"lng"`
	Summary       string    `json:"summary"`
}

// flexFloat accepts a number, a numeric string such as "$1,200" or null.
// Anything else decodes as unknown rather than failing the whole document.
type flexFloat struct {
	v *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	f.v = nil
	if raw == "" || raw == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil //nolint:nilerr // lenient by contract
		}
		raw = numberRegexp.FindString(strings.ReplaceAll(s, ",", ""))
	}
	if val, err := strconv.ParseFloat(raw, 64); err == nil {
		f.v = &val
	}
	return nil
}

// flexInt accepts an integral number such as 3 or 3.0, a numeric string or null.
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	f.v = nil
	var num flexFloat
	_ = num.UnmarshalJSON(b)
	if num.v == nil || *num.v != math.Trunc(*num.v) || math.Abs(*num.v) > math.MaxInt32 {
		return nil
	}
	n := int(*num.v)
	f.v = &n
	return nil
}

// parseResponse recovers the response document from model output. It tries,
// in order: the whole text, each fenced code block, the span from the first
// '{' to the last '}', and finally each paragraph on its own.
func parseResponse(text string) (response, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return response{}, false
	}

	if r, ok := decode(text); ok {
		return r, true
	}
	for _, m := range fenceRegexp.FindAllStringSubmatch(text, -1) {
		if r, ok := decode(m[1]); ok {
			return r, true
		}
	}
	if r, ok := decode(braceSlice(text)); ok {
		return r, true
	}
	for _, para := range blankLine.Split(text, -1) {
		if r, ok := decode(para); ok {
			return r, true
		}
		if r, ok := decode(braceSlice(para)); ok {
			return r, true
		}
	}
	return response{}, false
}

// decode accepts an object in the response shape or a bare array of listings.
func decode(s string) (response, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return response{}, false
	}
	switch s[0] {
	case '{':
		var r response
		if json.Unmarshal([]byte(s), &r) != nil {
			return response{}, false
		}
		return r, true
	case '[':
		var ls []responseListing
		if json.Unmarshal([]byte(s), &ls) != nil {
			return response{}, false
		}
		return response{Listings: ls}, true
	default:
		return response{}, false
	}
}

func braceSlice(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func (r response) toListings() []domain.Listing {
	out := make([]domain.Listing, 0, len(r.Listings))
	for _, l := range r.Listings {
		out = append(out, l.toListing())
	}
	return out
}

func (l responseListing) toListing() domain.Listing {
	out := domain.Listing{
		Source:        l.Source,
		Title:         l.Title,
		URL:           l.URL,
		PricePerNight: l.PricePerNight.v,
		Currency:      strings.ToUpper(strings.TrimSpace(l.Currency)),
		Rating:        l.Rating.v,
		PropertyType:  l.PropertyType,
		ImageURL:      l.ImageURL,
		Lat:           l.Lat.v,
		Lng:           l.Lng.v,
		Summary:       l.Summary,
	}
	if l.ReviewCount.v != nil && *l.ReviewCount.v > 0 {
		out.ReviewCount = int(*l.ReviewCount.v)
	}
	return out
}

// rankListings orders scraped listings the way the model ranked them, matching
// by id first and URL second. References to unknown listings are ignored.
// Scraped listings the model skipped follow in their original order.
func rankListings(scraped []domain.Listing, ranked []responseListing) []domain.Listing {
	byURL := make(map[string]int, len(scraped))
	for i, l := range scraped {
		byURL[l.URL] = i
	}

	used := make([]bool, len(scraped))
	out := make([]domain.Listing, 0, len(scraped))
	for _, r := range ranked {
		idx := -1
		if id := r.ID.v; id != nil && *id >= 0 && *id < len(scraped) {
			idx = *id
		} else if i, ok := byURL[strings.TrimSpace(r.URL)]; ok {
			idx = i
		}
		if idx < 0 || used[idx] {
			continue
		}
		used[idx] = true
		l := scraped[idx]
		if note := strings.TrimSpace(r.Summary); note != "" {
			l.Summary = note
		}
		out = append(out, l)
	}
	for i, l := range scraped {
		if !used[i] {
			out = append(out, l)
		}
	}
	return out
}
