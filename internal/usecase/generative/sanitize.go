package generative

import (
	"net/url"
	"strings"

	"github.com/kailas-cloud/staydex/internal/domain"
	"github.com/kailas-cloud/staydex/internal/domain/geo"
)

const maxSummaryLen = 2000

// allowList matches URL hosts against permitted domains and their subdomains.
type allowList struct {
	domains []string
}

func newAllowList(domains []string) *allowList {
	a := &allowList{}
	for _, d := range domains {
		d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
		if d != "" {
			a.domains = append(a.domains, d)
		}
	}
	return a
}

// host returns the matched allowed domain for raw, or "" when raw is not allowed.
func (a *allowList) host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	h := strings.ToLower(u.Hostname())
	for _, d := range a.domains {
		if h == d || strings.HasSuffix(h, "."+d) {
			return d
		}
	}
	return ""
}

// sanitize enforces listing invariants on model output: ratings outside 0-5
// and negative prices become unknown, URLs off the allow-list are removed,
// invalid coordinates are dropped and untitled, unlinked entries are skipped.
func (s *Service) sanitize(in []domain.Listing) []domain.Listing {
	out := make([]domain.Listing, 0, len(in))
	for _, l := range in {
		l.Title = strings.Join(strings.Fields(l.Title), " ")
		l.Summary = strings.TrimSpace(l.Summary)

		if l.Rating != nil && (*l.Rating < 0 || *l.Rating > 5) {
			l.Rating = nil
		}
		if l.PricePerNight != nil && *l.PricePerNight < 0 {
			l.PricePerNight = nil
			l.Currency = ""
		}
		if l.ReviewCount < 0 {
			l.ReviewCount = 0
		}
		if l.Lat == nil || l.Lng == nil || !geo.ValidateCoordinates(*l.Lat, *l.Lng) {
			l.Lat, l.Lng = nil, nil
		}

		matched := s.allow.host(l.URL)
		if matched == "" {
			l.URL = ""
		}
		if !isHTTPS(l.ImageURL) {
			l.ImageURL = ""
		}
		if l.Source == "" {
			l.Source = sourceFor(matched)
		}

		if l.Title == "" && l.URL == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// sourceFor names a listing's source after its domain, "airbnb" for airbnb.com.
func sourceFor(d string) string {
	if d == "" {
		return "web"
	}
	name, _, _ := strings.Cut(d, ".")
	return name
}

func isHTTPS(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme == "https" && u.Host != ""
}

func normaliseSummary(s string) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxSummaryLen {
		return s
	}
	return strings.TrimSpace(string(r[:maxSummaryLen])) + "…"
}
