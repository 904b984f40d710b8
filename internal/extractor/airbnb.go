package extractor

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/kailas-cloud/staydex/internal/domain"
)

const (
	// SourceAirbnb is the Airbnb source name.
	SourceAirbnb = "airbnb"

	airbnbBaseURL = "https://www.airbnb.com"

	airbnbCountScript = `document.querySelectorAll('[data-testid="card-container"], [itemprop="itemListElement"], a[href*="/rooms/"]').length`

	airbnbCardsScript = `(() => {
  const text = (root, sel) => { const el = root.querySelector(sel); return el ? el.innerText.trim() : ''; };
  let cards = Array.from(document.querySelectorAll('[data-testid="card-container"]'));
  if (cards.length === 0) cards = Array.from(document.querySelectorAll('[itemprop="itemListElement"]'));
  if (cards.length === 0) cards = Array.from(document.querySelectorAll('a[href*="/rooms/"]')).map(a => a.closest('div') || a);
  return cards.map(card => {
    const link = card.matches('a[href*="/rooms/"]') ? card : card.querySelector('a[href*="/rooms/"]');
    const img = card.querySelector('img');
    const ratingEl = card.querySelector('[aria-label*="rating"]');
    const rating = ratingEl ? (ratingEl.getAttribute('aria-label') || ratingEl.innerText) : '';
    return {
      title: text(card, '[data-testid="listing-card-title"]') || (card.querySelector('meta[itemprop="name"]') || {}).content || '',
      price: text(card, '[data-testid="price-availability-row"]'),
      rating: rating,
      reviews: (rating.match(/(\d[\d,]*)\s*review/i) || ['', ''])[1],
      url: link ? link.getAttribute('href') : '',
      image: img ? img.getAttribute('src') : '',
      type: text(card, '[data-testid="listing-card-subtitle"]'),
    };
  });
})()`
)

// Airbnb extracts listings from Airbnb search pages.
type Airbnb struct {
	baseURL string
}

// NewAirbnb creates the Airbnb extractor.
func NewAirbnb() *Airbnb {
	return &Airbnb{baseURL: airbnbBaseURL}
}

// Source implements domain.Extractor.
func (a *Airbnb) Source() string { return SourceAirbnb }

// SearchURL builds the search page address for c.
func (a *Airbnb) SearchURL(c domain.SearchCriteria) string {
	q := url.Values{}
	if d := c.CheckIn.String(); d != "" {
		q.Set("checkin", d)
	}
	if d := c.CheckOut.String(); d != "" {
		q.Set("checkout", d)
	}
	if c.Adults > 0 {
		q.Set("adults", strconv.Itoa(c.Adults))
	}
	if c.Children > 0 {
		q.Set("children", strconv.Itoa(c.Children))
	}
	if c.Infants > 0 {
		q.Set("infants", strconv.Itoa(c.Infants))
	}
	if c.Budget != nil {
		if c.Budget.Min > 0 {
			q.Set("price_min", strconv.Itoa(int(c.Budget.Min)))
		}
		if c.Budget.Max > 0 {
			q.Set("price_max", strconv.Itoa(int(c.Budget.Max)))
		}
	}

	slug := strings.ReplaceAll(strings.TrimSpace(c.Destination), " ", "-")
	u := a.baseURL + "/s/" + url.PathEscape(slug) + "/homes"
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// Extract reads result cards from a loaded page. Airbnb shows nightly prices
// unless the card says otherwise.
func (a *Airbnb) Extract(ctx context.Context, page domain.Page) ([]domain.Listing, error) {
	cards, err := scrapeCards(ctx, page, airbnbCountScript, airbnbCardsScript)
	if err != nil {
		return nil, err
	}
	return normalizeCards(cards, cardOptions{
		source:      SourceAirbnb,
		baseURL:     a.baseURL,
		ratingScale: 5,
	}), nil
}
