package ranker

import (
	"sort"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/intelligence"
)

// OrderCandidates turns the explore stage's tagged candidates into a
// processing order: severity tier first (high before medium before low),
// discovery order within a tier. Candidates below the threshold tier and
// candidates with an unrecognized priority are dropped. Returns the URLs
// in processing order.
func (r *Ranker) OrderCandidates(candidates []intelligence.Candidate, threshold domain.Severity) []string {
	type ranked struct {
		url   string
		tier  int
		index int
	}

	kept := make([]ranked, 0, len(candidates))
	for i, c := range candidates {
		severity := domain.Severity(c.Priority)
		if !severity.MeetsThreshold(threshold) {
			continue
		}
		kept = append(kept, ranked{url: c.URL, tier: severity.Rank(), index: i})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].tier > kept[j].tier
	})

	if dropped := len(candidates) - len(kept); dropped > 0 {
		r.logger.Debug("explore candidates filtered",
			"threshold", string(threshold),
			"kept", len(kept),
			"dropped", dropped,
		)
	}

	urls := make([]string, len(kept))
	for i, c := range kept {
		urls[i] = c.url
	}
	return urls
}
