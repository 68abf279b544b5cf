// Package ranker orders and filters buying opportunities. Ranking is pure
// computation over already-validated listings; it assigns priority, never
// sequencing, so callers are free to process ranked items concurrently.
package ranker

import (
	"sort"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// Discount tiers relative to estimated market value. At least a quarter
// off is a strong signal, a tenth is worth a look, anything positive is
// marginal. Below the variation floor the price is suspicious, not
// attractive.
const (
	highDiscount        = 0.25
	mediumDiscount      = 0.10
	priceVariationFloor = 0.60
)

// Ranker recomputes, sorts, and filters opportunities for one run.
type Ranker struct {
	logger logger.Interface
	now    func() time.Time
}

// New creates a ranker.
func New(log logger.Interface) *Ranker {
	return &Ranker{
		logger: log.WithComponent("ranker"),
		now:    time.Now,
	}
}

// Recompute derives an opportunity from a validated listing and its
// market estimate. Returns nil when the listing carries no usable price
// signal or sits at or above market.
func (r *Ranker) Recompute(listing *domain.Listing, marketValue *float64, discoveryIndex int) *domain.Opportunity {
	if listing == nil || listing.Vehicle.Price == nil || marketValue == nil || *marketValue <= 0 {
		return nil
	}

	price := *listing.Vehicle.Price
	discount := (*marketValue - price) / *marketValue
	if discount <= 0 {
		return nil
	}

	opp := &domain.Opportunity{
		Listing:              listing,
		EstimatedMarketValue: marketValue,
		DiscoveryIndex:       discoveryIndex,
		ComputedAt:           r.now(),
		Confidence:           confidenceFor(listing),
	}

	switch {
	case discount >= highDiscount:
		opp.Severity = domain.SeverityHigh
		opp.Reasons = append(opp.Reasons, "price materially below market")
	case discount >= mediumDiscount:
		opp.Severity = domain.SeverityMedium
		opp.Reasons = append(opp.Reasons, "price moderately below market")
	default:
		opp.Severity = domain.SeverityLow
		opp.Reasons = append(opp.Reasons, "price slightly below market")
	}

	if price < *marketValue*priceVariationFloor {
		opp.PriceVariation = true
		opp.Reasons = append(opp.Reasons, "price suspiciously far below market")
	}

	return opp
}

// Sort orders opportunities by severity, high first. Ties keep discovery
// order, so equal-severity items come back in the order they were found.
func (r *Ranker) Sort(opportunities []*domain.Opportunity) {
	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].Severity.Rank() > opportunities[j].Severity.Rank()
	})
}

// Filter keeps opportunities at or above the threshold tier: "high" keeps
// high only, "medium" keeps medium and high, "low" keeps all three.
func (r *Ranker) Filter(opportunities []*domain.Opportunity, threshold domain.Severity) []*domain.Opportunity {
	out := make([]*domain.Opportunity, 0, len(opportunities))
	for _, opp := range opportunities {
		if opp.Severity.MeetsThreshold(threshold) {
			out = append(out, opp)
		}
	}

	if dropped := len(opportunities) - len(out); dropped > 0 {
		r.logger.Debug("opportunities filtered",
			"threshold", string(threshold),
			"kept", len(out),
			"dropped", dropped,
		)
	}
	return out
}

// confidenceFor maps the listing's quality score onto [0,1].
func confidenceFor(l *domain.Listing) float64 {
	return float64(l.QualityScore) / 100
}

// Rank is the full pass for one run's listings: recompute each against
// its market estimate, sort, and filter. Market estimates are keyed by
// listing position, matching the discovery order.
func (r *Ranker) Rank(listings []*domain.Listing, marketValues []*float64, threshold domain.Severity) []*domain.Opportunity {
	opportunities := make([]*domain.Opportunity, 0, len(listings))
	for i, listing := range listings {
		var mv *float64
		if i < len(marketValues) {
			mv = marketValues[i]
		}
		if opp := r.Recompute(listing, mv, i); opp != nil {
			opportunities = append(opportunities, opp)
		}
	}

	r.Sort(opportunities)
	return r.Filter(opportunities, threshold)
}
