package extractor

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/kailas-cloud/staydex/internal/domain"
)

var (
	priceRegexp  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	nightsRegexp = regexp.MustCompile(`(\d+)\s*nights?`)
	ratingRegexp = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	countRegexp  = regexp.MustCompile(`\d[\d,]*`)
)

var currencySymbols = []struct {
	symbol, code string
}{
	{"US$", "USD"}, {"$", "USD"}, {"€", "EUR"}, {"£", "GBP"}, {"฿", "THB"},
	{"¥", "JPY"}, {"₹", "INR"}, {"CHF", "CHF"}, {"EUR", "EUR"}, {"USD", "USD"}, {"GBP", "GBP"},
}

// rawCard is what the in-page scripts return for one result card.
type rawCard struct {
	Title   string `json:"title"`
	Price   string `json:"price"`
	Rating  string `json:"rating"`
	Reviews string `json:"reviews"`
	URL     string `json:"url"`
	Image   string `json:"image"`
	Type    string `json:"type"`
}

// cardOptions describe how a source reports prices and ratings.
type cardOptions struct {
	source      string
	baseURL     string
	ratingScale float64 // maximum of the source's rating scale
}

// normalizeCards cleans raw cards: absolute URLs, per-night prices, 0-5 ratings,
// collapsed whitespace. Cards without a URL and duplicate URLs are dropped.
func normalizeCards(cards []rawCard, opts cardOptions) []domain.Listing {
	base, _ := url.Parse(opts.baseURL)
	seen := make(map[string]struct{}, len(cards))
	out := make([]domain.Listing, 0, len(cards))

	for _, c := range cards {
		link := absoluteURL(base, c.URL)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		l := domain.Listing{
			Source:       opts.source,
			Title:        normaliseText(c.Title),
			URL:          link,
			PropertyType: normaliseText(c.Type),
			ImageURL:     absoluteURL(base, c.Image),
			ReviewCount:  parseCount(c.Reviews),
		}
		if price, ok := parsePrice(c.Price); ok {
			l.PricePerNight = &price
			l.Currency = detectCurrency(c.Price)
		}
		if rating, ok := parseRating(c.Rating, opts.ratingScale); ok {
			l.Rating = &rating
		}
		out = append(out, l)
	}
	return out
}

// parsePrice extracts a per-night price. A total quoted "for 3 nights" is divided by 3.
func parsePrice(raw string) (float64, bool) {
	lower := strings.ToLower(raw)
	match := priceRegexp.FindString(lower)
	if match == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil || price <= 0 {
		return 0, false
	}

	if m := nightsRegexp.FindStringSubmatch(lower); len(m) == 2 {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 1 {
			return round2(price / float64(n)), true
		}
	}
	return price, true
}

// parseRating scales a rating onto 0-5. Values outside the source scale are unknown.
func parseRating(raw string, scale float64) (float64, bool) {
	match := ratingRegexp.FindString(raw)
	if match == "" {
		return 0, false
	}
	val, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	if scale <= 0 {
		scale = 5
	}
	if val < 0 || val > scale {
		return 0, false
	}
	return round2(val * 5 / scale), true
}

func parseCount(raw string) int {
	match := countRegexp.FindString(raw)
	if match == "" {
		return 0
	}
	n, _ := strconv.Atoi(strings.ReplaceAll(match, ",", ""))
	return n
}

func detectCurrency(raw string) string {
	for _, c := range currencySymbols {
		if strings.Contains(raw, c.symbol) {
			return c.code
		}
	}
	return ""
}

func absoluteURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// normaliseText trims and collapses internal whitespace.
func normaliseText(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
