package pipeline

import (
	"strconv"
	"strings"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/intelligence"
)

// Year bounds for sanity clamping. The upper bound moves with the clock so
// next-model-year listings survive.
const minModelYear = 1900

// normalizeVehicle converts the extract stage's raw output into typed
// fields. Values the page did not state, and values that do not parse,
// stay nil; nothing is guessed here.
func normalizeVehicle(raw *intelligence.RawVehicle, now time.Time) domain.VehicleFields {
	v := domain.VehicleFields{
		Make:        strings.TrimSpace(raw.Make),
		Model:       strings.TrimSpace(raw.Model),
		Trim:        strings.TrimSpace(raw.Trim),
		Condition:   strings.ToLower(strings.TrimSpace(raw.Condition)),
		Location:    strings.TrimSpace(raw.Location),
		VIN:         strings.ToUpper(strings.TrimSpace(raw.VIN)),
		ExternalID:  strings.TrimSpace(raw.ExternalID),
		Description: strings.TrimSpace(raw.Description),
		Features:    trimAll(raw.Features),
		PhotoURLs:   trimAll(raw.Images),
	}

	if price := parseAmount(raw.Price); price != nil && *price > 0 {
		v.Price = price
	}
	if mi := parseAmount(raw.Mileage); mi != nil && *mi >= 0 {
		m := int(*mi)
		v.Mileage = &m
	}
	if year := parseAmount(raw.Year); year != nil {
		y := clampYear(int(*year), now)
		v.Year = &y
	}

	return v
}

// parseAmount turns a model-produced value into a number. Strings shed
// currency symbols and thousands separators first; a stated range
// collapses to its lower bound. Unparseable input yields nil.
func parseAmount(value any) *float64 {
	switch n := value.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		s = rangeLowerBound(s)
		s = stripAmountNoise(s)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// rangeLowerBound reduces "20000 - 25000" or "2019-2021" to the first
// numeric segment. A leading sign is not a range separator.
func rangeLowerBound(s string) string {
	for _, sep := range []string{" to ", "–", "-"} {
		idx := strings.Index(s, sep)
		if idx > 0 {
			return s[:idx]
		}
	}
	return s
}

// stripAmountNoise drops everything except digits and a decimal point.
// Thousands separators, currency symbols, and unit suffixes like "km" or
// "mi" all go.
func stripAmountNoise(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func clampYear(year int, now time.Time) int {
	max := now.Year() + 1
	if year < minModelYear {
		return minModelYear
	}
	if year > max {
		return max
	}
	return year
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
