package aggregate

import (
	"testing"

	"cardhawk/internal/domain"
)

func opp(listingID string, margin, confidence float64) domain.Opportunity {
	return domain.Opportunity{
		ID:         "id-" + listingID,
		Listing:    domain.RawListing{ID: listingID},
		Margin:     domain.Money{Amount: margin, Currency: domain.CurrencyJPY},
		Confidence: confidence,
	}
}

func TestRankSortsByMarginThenConfidence(t *testing.T) {
	res := Rank([]domain.Opportunity{
		opp("a", 1000, 0.9),
		opp("b", 3500, 0.7),
		opp("c", 3500, 0.95),
		opp("d", 200, 0.99),
	})
	if res.Deduplicated != 0 {
		t.Errorf("deduplicated = %d", res.Deduplicated)
	}
	got := make([]string, len(res.Opportunities))
	for i, o := range res.Opportunities {
		got[i] = o.Listing.ID
	}
	want := []string{"c", "b", "a", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRankDeduplicatesByListingID(t *testing.T) {
	res := Rank([]domain.Opportunity{
		opp("a", 1000, 0.6),
		opp("a", 900, 0.9), // same listing, higher confidence wins
		opp("b", 500, 0.8),
	})
	if res.Deduplicated != 1 {
		t.Errorf("deduplicated = %d, want 1", res.Deduplicated)
	}
	if len(res.Opportunities) != 2 {
		t.Fatalf("opportunities = %d", len(res.Opportunities))
	}
	for _, o := range res.Opportunities {
		if o.Listing.ID == "a" && o.Confidence != 0.9 {
			t.Errorf("kept the lower-confidence duplicate: %+v", o)
		}
	}
}

func TestRankDuplicateConfidenceTieKeepsLargerMargin(t *testing.T) {
	res := Rank([]domain.Opportunity{
		opp("a", 900, 0.8),
		opp("a", 1200, 0.8),
	})
	if len(res.Opportunities) != 1 || res.Opportunities[0].Margin.Amount != 1200 {
		t.Errorf("kept %+v", res.Opportunities)
	}
}

func TestRankStableForEqualEntries(t *testing.T) {
	res := Rank([]domain.Opportunity{
		opp("b", 1000, 0.8),
		opp("a", 1000, 0.8),
	})
	if res.Opportunities[0].Listing.ID != "a" {
		t.Errorf("equal entries should order by listing id, got %s first", res.Opportunities[0].Listing.ID)
	}
}

func TestRankEmpty(t *testing.T) {
	res := Rank(nil)
	if len(res.Opportunities) != 0 || res.Deduplicated != 0 {
		t.Errorf("unexpected result %+v", res)
	}
}
