package domain

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the wire format for check-in and check-out dates.
const DateLayout = "2006-01-02"

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the calendar day of t in UTC.
func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return NewValidationError("date", "must be formatted as YYYY-MM-DD")
	}
	d.Time = t
	return nil
}

// String returns the date as YYYY-MM-DD, or "" for a nil date.
func (d *Date) String() string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// DaysSinceEpoch returns whole days since 1970-01-01, or 0 for a nil date.
func (d *Date) DaysSinceEpoch() float64 {
	if d == nil || d.IsZero() {
		return 0
	}
	return float64(d.Unix() / 86400)
}

// Budget is a nightly price range in the request currency.
type Budget struct {
	Min float64 `json:"min" validate:"gte=0"`
	Max float64 `json:"max" validate:"gte=0"`
}

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// SearchCriteria is the unit of work for the whole pipeline.
type SearchCriteria struct {
	Destination   string    `json:"destination" validate:"required,max=200"`
	CheckIn       *Date     `json:"check_in,omitempty"`
	CheckOut      *Date     `json:"check_out,omitempty"`
	Adults        int       `json:"adults" validate:"gte=1,lte=16"`
	Children      int       `json:"children" validate:"gte=0,lte=10"`
	Infants       int       `json:"infants" validate:"gte=0,lte=10"`
	Budget        *Budget   `json:"budget,omitempty"`
	PropertyTypes []string  `json:"property_types,omitempty" validate:"max=10,dive,max=50"`
	Amenities     []string  `json:"amenities,omitempty" validate:"max=30,dive,max=50"`
	Notes         string    `json:"notes,omitempty" validate:"max=1000"`
	Location      *GeoPoint `json:"location,omitempty"`
	RadiusKM      float64   `json:"radius_km,omitempty" validate:"gte=0,lte=500"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field rules.
func (c *SearchCriteria) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError(fe.Namespace(), "failed "+fe.Tag()+" check")
		}
		return NewValidationError("criteria", err.Error())
	}
	if strings.TrimSpace(c.Destination) == "" {
		return NewValidationError("destination", "is required")
	}
	if c.CheckIn != nil && c.CheckOut != nil && !c.CheckOut.After(c.CheckIn.Time) {
		return NewValidationError("check_out", "must be after check_in")
	}
	if c.Budget != nil && c.Budget.Max > 0 && c.Budget.Min > c.Budget.Max {
		return NewValidationError("budget", "min must not exceed max")
	}
	if c.RadiusKM > 0 && c.Location == nil {
		return NewValidationError("radius_km", "requires location")
	}
	return nil
}

// Normalized returns a copy with canonical casing and ordering.
// Destination is lower-cased, trimmed and has inner whitespace collapsed;
// property types and amenities are lower-cased, de-duplicated and sorted.
func (c SearchCriteria) Normalized() SearchCriteria {
	out := c
	out.Destination = NormalizeDestination(c.Destination)
	out.PropertyTypes = normalizeSet(c.PropertyTypes)
	out.Amenities = normalizeSet(c.Amenities)
	out.Notes = strings.TrimSpace(c.Notes)
	if c.Budget != nil {
		b := *c.Budget
		out.Budget = &b
	}
	return out
}

// Guests returns the total number of guests occupying beds.
func (c *SearchCriteria) Guests() int {
	return c.Adults + c.Children
}

// NormalizeDestination canonicalizes a destination for keys and partitions.
func NormalizeDestination(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
