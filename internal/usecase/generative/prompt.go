package generative

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/staydex/internal/domain"
)

const systemPrompt = `You are a lodging search assistant. Reply with a single JSON object and nothing else.
Schema: {"summary": string, "listings": [{"id": int, "title": string, "url": string, "source": string,
"price_per_night": number|null, "currency": string, "rating": number|null (0-5), "review_count": int,
"property_type": string, "lat": number|null, "lng": number|null, "summary": string}]}.
Use null for unknown numbers. Never invent URLs.`

const maxPromptListings = 40

// promptListing is the compact listing view sent for analysis.
type promptListing struct {
	ID           int      `json:"id"`
	Source       string   `json:"source"`
	Title        string   `json:"title"`
	URL          string   `json:"url"`
	Price        *float64 `json:"price_per_night,omitempty"`
	Currency     string   `json:"currency,omitempty"`
	Rating       *float64 `json:"rating,omitempty"`
	Reviews      int      `json:"review_count,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
}

func openWebPrompt(c domain.SearchCriteria, webSearch bool) domain.Prompt {
	var b strings.Builder
	b.WriteString("Find lodging offers currently bookable that match this request.\n")
	writeCriteria(&b, c)
	b.WriteString("Return up to 10 listings with direct URLs on the booking site and a short overall summary.")
	return domain.Prompt{System: systemPrompt, User: b.String(), WebSearch: webSearch}
}

func analysisPrompt(c domain.SearchCriteria, listings []domain.Listing) domain.Prompt {
	n := min(len(listings), maxPromptListings)
	view := make([]promptListing, n)
	for i, l := range listings[:n] {
		view[i] = promptListing{
			ID:           i,
			Source:       l.Source,
			Title:        l.Title,
			URL:          l.URL,
			Price:        l.PricePerNight,
			Currency:     l.Currency,
			Rating:       l.Rating,
			Reviews:      l.ReviewCount,
			PropertyType: l.PropertyType,
		}
	}
	data, _ := json.Marshal(view)

	var b strings.Builder
	b.WriteString("Rank these scraped listings for the request below, best match first.\n")
	writeCriteria(&b, c)
	b.WriteString("Listings:\n")
	b.Write(data)
	b.WriteString("\nRefer to listings by id. Give each a one-sentence summary and write an overall summary.")
	return domain.Prompt{System: systemPrompt, User: b.String()}
}

func writeCriteria(b *strings.Builder, c domain.SearchCriteria) {
	fmt.Fprintf(b, "Destination: %s\n", c.Destination)
	if in, out := c.CheckIn.String(), c.CheckOut.String(); in != "" || out != "" {
		fmt.Fprintf(b, "Dates: %s to %s\n", orAny(in), orAny(out))
	}
	fmt.Fprintf(b, "Guests: %d adults, %d children, %d infants\n", c.Adults, c.Children, c.Infants)
	if c.Budget != nil && (c.Budget.Min > 0 || c.Budget.Max > 0) {
		fmt.Fprintf(b, "Nightly budget: %g to %s\n", c.Budget.Min, orAny(formatMax(c.Budget.Max)))
	}
	if len(c.PropertyTypes) > 0 {
		fmt.Fprintf(b, "Property types: %s\n", strings.Join(c.PropertyTypes, ", "))
	}
	if len(c.Amenities) > 0 {
		fmt.Fprintf(b, "Amenities: %s\n", strings.Join(c.Amenities, ", "))
	}
	if c.Location != nil && c.RadiusKM > 0 {
		fmt.Fprintf(b, "Within %g km of %.5f,%.5f\n", c.RadiusKM, c.Location.Lat, c.Location.Lng)
	}
	if c.Notes != "" {
		fmt.Fprintf(b, "Notes: %s\n", c.Notes)
	}
}

func formatMax(v float64) string {
	if v <= 0 {
		return ""
	}
	return fmt.Sprintf("%g", v)
}

func orAny(s string) string {
	if s == "" {
		return "any"
	}
	return s
}
