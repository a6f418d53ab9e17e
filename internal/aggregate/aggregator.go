// Package aggregate collapses and ranks the opportunities of one run.
package aggregate

import (
	"sort"

	"cardhawk/internal/domain"
)

// Result is the final ranked opportunity list plus the number of duplicates
// collapsed away.
type Result struct {
	Opportunities []domain.Opportunity
	Deduplicated  int
}

// Rank deduplicates opportunities by listing ID, keeping the highest
// confidence entry for each (ties keep the larger margin), then orders by
// margin descending with confidence descending as the tie-break. Listing ID
// is the final tie-break so equal opportunities rank stably.
func Rank(opps []domain.Opportunity) Result {
	best := make(map[string]domain.Opportunity, len(opps))
	dropped := 0
	for _, o := range opps {
		cur, seen := best[o.Listing.ID]
		if !seen {
			best[o.Listing.ID] = o
			continue
		}
		dropped++
		if o.Confidence > cur.Confidence ||
			(o.Confidence == cur.Confidence && o.Margin.Amount > cur.Margin.Amount) {
			best[o.Listing.ID] = o
		}
	}

	ranked := make([]domain.Opportunity, 0, len(best))
	for _, o := range best {
		ranked = append(ranked, o)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Margin.Amount != b.Margin.Amount {
			return a.Margin.Amount > b.Margin.Amount
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Listing.ID < b.Listing.ID
	})

	return Result{Opportunities: ranked, Deduplicated: dropped}
}
