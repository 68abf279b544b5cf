package domain

import (
	"time"
)

// Severity ranks how attractive an opportunity is.
type Severity string

const (
	// SeverityHigh marks listings materially below market value.
	SeverityHigh Severity = "high"
	// SeverityMedium marks listings moderately below market value.
	SeverityMedium Severity = "medium"
	// SeverityLow marks listings with marginal upside.
	SeverityLow Severity = "low"
)

// Rank orders severities for sorting: high before medium before low.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// MeetsThreshold reports whether the severity passes a minimum tier.
// "low" admits everything, "medium" admits medium and high, "high" admits
// only high. An unknown threshold admits nothing.
func (s Severity) MeetsThreshold(threshold Severity) bool {
	return threshold.Rank() > 0 && s.Rank() >= threshold.Rank()
}

// Opportunity is a ranked buying signal derived from a listing.
// Opportunities are ephemeral: recomputed every run, never persisted as
// standalone entities.
type Opportunity struct {
	Listing *Listing `json:"listing"`

	Severity             Severity    `json:"severity"`
	Confidence           float64     `json:"confidence"` // 0.0 to 1.0
	Reasons              StringSlice `json:"reasons"`
	EstimatedMarketValue *float64    `json:"estimated_market_value,omitempty"`

	// PriceVariation flags a price so far below market that it is suspicious
	// rather than attractive.
	PriceVariation bool `json:"price_variation"`

	// DiscoveryIndex preserves the order in which the listing was found;
	// severity ties keep this order.
	DiscoveryIndex int       `json:"discovery_index"`
	ComputedAt     time.Time `json:"computed_at"`
}
