package ranker

import (
	"sort"
	"strconv"
	"strings"

	"github.com/carcrawl/carcrawl/internal/domain"
)

// minComparables is the smallest cohort a median is trusted from.
const minComparables = 3

// BaselineMarketValues estimates a market value per listing from the
// listings themselves: the median price of the listing's make/model/year
// cohort, falling back to the make/model cohort when the year cohort is
// too small. Listings without a usable cohort get nil, which keeps them
// out of opportunity ranking rather than ranking them against a guess.
// The result is positionally aligned with the input for Rank.
func BaselineMarketValues(listings []*domain.Listing) []*float64 {
	yearCohorts := make(map[string][]float64)
	modelCohorts := make(map[string][]float64)
	for _, l := range listings {
		price, yearKey, modelKey := cohortKeys(l)
		if price == nil {
			continue
		}
		if yearKey != "" {
			yearCohorts[yearKey] = append(yearCohorts[yearKey], *price)
		}
		if modelKey != "" {
			modelCohorts[modelKey] = append(modelCohorts[modelKey], *price)
		}
	}

	out := make([]*float64, len(listings))
	for i, l := range listings {
		price, yearKey, modelKey := cohortKeys(l)
		if price == nil {
			continue
		}
		if m, ok := cohortMedian(yearCohorts[yearKey]); ok {
			out[i] = &m
			continue
		}
		if m, ok := cohortMedian(modelCohorts[modelKey]); ok {
			out[i] = &m
		}
	}
	return out
}

func cohortKeys(l *domain.Listing) (price *float64, yearKey, modelKey string) {
	if l == nil || l.Vehicle.Price == nil || *l.Vehicle.Price <= 0 {
		return nil, "", ""
	}
	mk := strings.ToLower(strings.TrimSpace(l.Vehicle.Make))
	md := strings.ToLower(strings.TrimSpace(l.Vehicle.Model))
	if mk == "" || md == "" {
		return nil, "", ""
	}

	modelKey = mk + "|" + md
	if l.Vehicle.Year != nil {
		yearKey = modelKey + "|" + strconv.Itoa(*l.Vehicle.Year)
	}
	return l.Vehicle.Price, yearKey, modelKey
}

func cohortMedian(prices []float64) (float64, bool) {
	if len(prices) < minComparables {
		return 0, false
	}
	sorted := make([]float64, len(prices))
	copy(sorted, prices)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2, true
	}
	return sorted[mid], true
}
