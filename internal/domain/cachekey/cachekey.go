// Package cachekey derives deterministic cache keys and feature vectors from search criteria.
package cachekey

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/staydex/internal/domain"
)

// ASCII record and unit separators keep field and list joins unambiguous.
const (
	fieldSep = "\x1e"
	listSep  = "\x1f"
)

// Key returns the cache key for c. Criteria equal after normalization
// produce the same key. Notes and geo radius do not participate.
func Key(c domain.SearchCriteria) string {
	n := c.Normalized()

	var b strings.Builder
	writeField(&b, "dest", n.Destination)
	writeField(&b, "in", n.CheckIn.String())
	writeField(&b, "out", n.CheckOut.String())
	writeField(&b, "adults", strconv.Itoa(n.Adults))
	writeField(&b, "children", strconv.Itoa(n.Children))
	writeField(&b, "infants", strconv.Itoa(n.Infants))
	if n.Budget != nil {
		writeField(&b, "bmin", formatFloat(n.Budget.Min))
		writeField(&b, "bmax", formatFloat(n.Budget.Max))
	} else {
		writeField(&b, "bmin", "")
		writeField(&b, "bmax", "")
	}
	writeField(&b, "types", strings.Join(n.PropertyTypes, listSep))
	writeField(&b, "amen", strings.Join(n.Amenities, listSep))

	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// Vector returns the FeatureVector for c. Missing dates and budget encode as 0.
func Vector(c domain.SearchCriteria) domain.FeatureVector {
	n := c.Normalized()

	var v domain.FeatureVector
	v[0] = DestinationHash(n.Destination)
	v[1] = float32(n.CheckIn.DaysSinceEpoch())
	v[2] = float32(n.CheckOut.DaysSinceEpoch())
	v[3] = float32(n.Adults)
	v[4] = float32(n.Children)
	if n.Budget != nil {
		v[5] = float32(n.Budget.Min)
		v[6] = float32(n.Budget.Max)
	}
	return v
}

// DestinationHash maps a normalized destination into [0, 1).
func DestinationHash(dest string) float32 {
	return float32(xxhash.Sum64String(dest)>>40) / float32(1<<24)
}

// Partition returns a storage-safe identifier for a normalized destination.
func Partition(dest string) string {
	return strconv.FormatUint(xxhash.Sum64String(dest), 16)
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteString(fieldSep)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
