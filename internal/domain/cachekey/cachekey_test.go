package cachekey

import (
	"testing"
	"time"

	"github.com/kailas-cloud/staydex/internal/domain"
)

func baseCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		Destination:   "Paris",
		CheckIn:       domain.NewDate(2026, time.June, 1),
		CheckOut:      domain.NewDate(2026, time.June, 5),
		Adults:        2,
		Children:      1,
		Budget:        &domain.Budget{Min: 50, Max: 200},
		PropertyTypes: []string{"apartment", "House"},
		Amenities:     []string{"wifi", "Pool", "kitchen"},
	}
}

func TestKey_OrderAndCaseInsensitive(t *testing.T) {
	a := baseCriteria()
	b := baseCriteria()
	b.Destination = "  paris "
	b.PropertyTypes = []string{"house", "APARTMENT"}
	b.Amenities = []string{"Kitchen", "wifi", "pool", "wifi"}

	if Key(a) != Key(b) {
		t.Fatalf("keys differ: %s vs %s", Key(a), Key(b))
	}
}

func TestKey_IgnoresNotesAndGeo(t *testing.T) {
	a := baseCriteria()
	b := baseCriteria()
	b.Notes = "quiet street please"
	b.Location = &domain.GeoPoint{Lat: 48.85, Lng: 2.35}
	b.RadiusKM = 5

	if Key(a) != Key(b) {
		t.Fatal("notes and geo must not affect the key")
	}
}

func TestKey_ContentFieldsChangeKey(t *testing.T) {
	base := Key(baseCriteria())

	mutations := map[string]func(c *domain.SearchCriteria){
		"destination": func(c *domain.SearchCriteria) { c.Destination = "Lyon" },
		"check_in":    func(c *domain.SearchCriteria) { c.CheckIn = domain.NewDate(2026, time.June, 2) },
		"check_out":   func(c *domain.SearchCriteria) { c.CheckOut = nil },
		"adults":      func(c *domain.SearchCriteria) { c.Adults = 3 },
		"infants":     func(c *domain.SearchCriteria) { c.Infants = 1 },
		"budget":      func(c *domain.SearchCriteria) { c.Budget = nil },
		"types":       func(c *domain.SearchCriteria) { c.PropertyTypes = []string{"hotel"} },
		"amenities":   func(c *domain.SearchCriteria) { c.Amenities = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			c := baseCriteria()
			mutate(&c)
			if Key(c) == base {
				t.Errorf("changing %s must change the key", name)
			}
		})
	}
}

func TestKey_NoDelimiterAmbiguity(t *testing.T) {
	a := baseCriteria()
	a.Amenities = []string{"a", "b"}
	b := baseCriteria()
	b.Amenities = []string{"a,b"}
	if Key(a) == Key(b) {
		t.Fatal("list joining must be unambiguous")
	}
}

func TestVector_MissingDatesEncodeAsZero(t *testing.T) {
	c := domain.SearchCriteria{Destination: "Paris", Adults: 2}
	v := Vector(c)

	if v[1] != 0 || v[2] != 0 {
		t.Fatalf("dates must encode as 0, got %v %v", v[1], v[2])
	}
	if v[3] != 2 {
		t.Fatalf("adults = %v, want 2", v[3])
	}
	if v[5] != 0 || v[6] != 0 {
		t.Fatalf("budget must encode as 0, got %v %v", v[5], v[6])
	}
	if v[0] < 0 || v[0] >= 1 {
		t.Fatalf("destination hash out of range: %v", v[0])
	}
}

func TestVector_Deterministic(t *testing.T) {
	a := baseCriteria()
	b := baseCriteria()
	b.Destination = "PARIS"
	if Vector(a) != Vector(b) {
		t.Fatal("vectors must match after normalization")
	}
	if got := Vector(a)[1]; got != float32(domain.NewDate(2026, time.June, 1).Unix()/86400) {
		t.Fatalf("check-in days = %v", got)
	}
}

func TestPartition_ExactDestination(t *testing.T) {
	if Partition("paris") == Partition("paris, france") {
		t.Fatal("distinct destinations must not share a partition")
	}
}
