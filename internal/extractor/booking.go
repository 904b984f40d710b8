package extractor

import (
	"context"
	"net/url"
	"strconv"

	"github.com/kailas-cloud/staydex/internal/domain"
)

const (
	// SourceBooking is the Booking.com source name.
	SourceBooking = "booking"

	bookingBaseURL = "https://www.booking.com"

	bookingCountScript = `document.querySelectorAll('[data-testid="property-card"]').length`

	bookingCardsScript = `(() => {
  const text = (root, sel) => { const el = root.querySelector(sel); return el ? el.innerText.trim() : ''; };
  return Array.from(document.querySelectorAll('[data-testid="property-card"]')).map(card => {
    const link = card.querySelector('a[data-testid="title-link"]') || card.querySelector('a[href*="/hotel/"]');
    const img = card.querySelector('img[data-testid="image"]') || card.querySelector('img');
    const score = text(card, '[data-testid="review-score"]');
    return {
      title: text(card, '[data-testid="title"]'),
      price: [text(card, '[data-testid="price-and-discounted-price"]'), text(card, '[data-testid="price-for-x-nights"]')].join(' '),
      rating: score,
      reviews: (score.match(/(\d[\d,]*)\s*review/i) || ['', ''])[1],
      url: link ? link.getAttribute('href') : '',
      image: img ? img.getAttribute('src') : '',
      type: text(card, '[data-testid="recommended-units"] h4'),
    };
  });
})()`
)

// Booking extracts listings from Booking.com search pages.
type Booking struct {
	baseURL string
}

// NewBooking creates the Booking.com extractor.
func NewBooking() *Booking {
	return &Booking{baseURL: bookingBaseURL}
}

// Source implements domain.Extractor.
func (b *Booking) Source() string { return SourceBooking }

// SearchURL builds the search page address for c.
func (b *Booking) SearchURL(c domain.SearchCriteria) string {
	q := url.Values{}
	q.Set("ss", c.Destination)
	if d := c.CheckIn.String(); d != "" {
		q.Set("checkin", d)
	}
	if d := c.CheckOut.String(); d != "" {
		q.Set("checkout", d)
	}
	adults := c.Adults
	if adults < 1 {
		adults = 1
	}
	q.Set("group_adults", strconv.Itoa(adults))
	q.Set("group_children", strconv.Itoa(c.Children))
	q.Set("no_rooms", "1")
	return b.baseURL + "/searchresults.html?" + q.Encode()
}

// Extract reads property cards from a loaded page. Booking.com prices cover the
// whole stay and review scores run 0-10; both are converted.
func (b *Booking) Extract(ctx context.Context, page domain.Page) ([]domain.Listing, error) {
	cards, err := scrapeCards(ctx, page, bookingCountScript, bookingCardsScript)
	if err != nil {
		return nil, err
	}
	return normalizeCards(cards, cardOptions{
		source:      SourceBooking,
		baseURL:     b.baseURL,
		ratingScale: 10,
	}), nil
}
