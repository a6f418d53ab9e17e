package correlate

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"cardhawk/internal/analyze"
	"cardhawk/internal/domain"
)

type fakePriceStore struct {
	refs map[string][]domain.ReferencePrice
	err  error
}

func (f *fakePriceStore) Query(_ context.Context, id domain.CardIdentity) ([]domain.ReferencePrice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.refs[id.Key()], nil
}

var (
	now      = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	blueEyes = domain.CardIdentity{Name: "Blue-Eyes White Dragon", SetCode: "LOB"}
)

func jpy(amount float64) domain.Money {
	return domain.Money{Amount: amount, Currency: domain.CurrencyJPY}
}

func testConfig() Config {
	return Config{
		StalenessBound:  30 * 24 * time.Hour,
		FeeEstimate:     500,
		TargetCurrency:  domain.CurrencyJPY,
		Rates:           map[domain.Currency]float64{domain.CurrencyJPY: 1, domain.CurrencyUSD: 150},
		ConfidenceFloor: 0.5,
	}
}

func ref(grade domain.Grade, price domain.Money, age time.Duration) domain.ReferencePrice {
	return domain.ReferencePrice{
		Identity:   blueEyes,
		Grade:      grade,
		Price:      price,
		ObservedAt: now.Add(-age),
	}
}

func analysis(id string, price domain.Money, grade domain.Grade, idScore, gradeConf float64) analyze.Analysis {
	return analyze.Analysis{
		Listing:       domain.RawListing{ID: id, Price: price},
		Identity:      blueEyes,
		IdentityScore: idScore,
		Grade:         domain.ConditionGrade{Grade: grade, Confidence: gradeConf},
	}
}

func newCorrelator(store domain.PriceStore) *Correlator {
	return New(testConfig(), store, slog.New(slog.DiscardHandler))
}

func TestCorrelateComputesMargin(t *testing.T) {
	store := &fakePriceStore{refs: map[string][]domain.ReferencePrice{
		blueEyes.Key(): {ref(domain.GradeNearMint, jpy(9000), 24*time.Hour)},
	}}
	c := newCorrelator(store)

	opps, counts := c.Correlate(context.Background(), "run-1",
		[]analyze.Analysis{analysis("x1", jpy(5000), domain.GradeNearMint, 0.9, 0.9)}, now)
	if counts != (Counts{}) {
		t.Fatalf("counts = %+v", counts)
	}
	if len(opps) != 1 {
		t.Fatalf("opps = %d", len(opps))
	}
	o := opps[0]
	// 9000 reference - 5000 listing - 500 fee = 3500
	if o.Margin.Amount != 3500 || o.Margin.Currency != domain.CurrencyJPY {
		t.Errorf("margin = %+v", o.Margin)
	}
	if math.Abs(o.Confidence-0.81) > 1e-9 {
		t.Errorf("confidence = %v, want 0.81", o.Confidence)
	}
	if o.RunID != "run-1" || o.ID == "" {
		t.Errorf("ids = %q / %q", o.RunID, o.ID)
	}
}

func TestCorrelateConvertsCurrency(t *testing.T) {
	store := &fakePriceStore{refs: map[string][]domain.ReferencePrice{
		blueEyes.Key(): {ref(domain.GradeNearMint, domain.Money{Amount: 60, Currency: domain.CurrencyUSD}, time.Hour)},
	}}
	c := newCorrelator(store)

	opps, _ := c.Correlate(context.Background(), "r",
		[]analyze.Analysis{analysis("x1", jpy(5000), domain.GradeNearMint, 1, 1)}, now)
	if len(opps) != 1 {
		t.Fatal("expected one opportunity")
	}
	// 60 USD * 150 = 9000 JPY - 5000 - 500 = 3500
	if opps[0].Margin.Amount != 3500 {
		t.Errorf("margin = %v", opps[0].Margin.Amount)
	}
}

func TestPickReferenceGradeBucket(t *testing.T) {
	c := newCorrelator(nil)
	refs := []domain.ReferencePrice{
		ref(domain.GradeMint, jpy(20000), time.Hour),      // one better: eligible
		ref(domain.GradeNearMint, jpy(9000), time.Hour),   // exact: eligible
		ref(domain.GradeExcellent, jpy(6000), time.Hour),  // one worse: not eligible
		ref(domain.GradePlayed, jpy(1000), time.Hour),     // far worse: not eligible
	}

	got, ok := c.pickReference(refs, domain.GradeNearMint, now)
	if !ok {
		t.Fatal("expected a reference")
	}
	// Equal recency: exact grade preferred over one-better.
	if got.Grade != domain.GradeNearMint || got.Price.Amount != 9000 {
		t.Errorf("picked %+v", got)
	}
}

func TestPickReferenceMostRecentWins(t *testing.T) {
	c := newCorrelator(nil)
	refs := []domain.ReferencePrice{
		ref(domain.GradeNearMint, jpy(9000), 10*24*time.Hour),
		ref(domain.GradeMint, jpy(12000), time.Hour), // newer, one better
	}
	got, ok := c.pickReference(refs, domain.GradeNearMint, now)
	if !ok {
		t.Fatal("expected a reference")
	}
	if got.Grade != domain.GradeMint {
		t.Errorf("picked %+v, want the more recent snapshot", got)
	}
}

func TestPickReferenceStalenessBoundInclusive(t *testing.T) {
	c := newCorrelator(nil)
	bound := testConfig().StalenessBound

	atBound := []domain.ReferencePrice{ref(domain.GradeNearMint, jpy(9000), bound)}
	if _, ok := c.pickReference(atBound, domain.GradeNearMint, now); !ok {
		t.Error("snapshot exactly at the bound must be usable")
	}

	pastBound := []domain.ReferencePrice{ref(domain.GradeNearMint, jpy(9000), bound+time.Second)}
	if _, ok := c.pickReference(pastBound, domain.GradeNearMint, now); ok {
		t.Error("snapshot past the bound must be rejected")
	}
}

func TestCorrelateNoMatch(t *testing.T) {
	store := &fakePriceStore{refs: map[string][]domain.ReferencePrice{}}
	c := newCorrelator(store)

	opps, counts := c.Correlate(context.Background(), "r",
		[]analyze.Analysis{analysis("x1", jpy(5000), domain.GradeNearMint, 1, 1)}, now)
	if len(opps) != 0 || counts.NoMatch != 1 {
		t.Errorf("opps = %d, counts = %+v", len(opps), counts)
	}
}

func TestCorrelateStoreErrorCountsAsNoMatch(t *testing.T) {
	c := newCorrelator(&fakePriceStore{err: errors.New("db down")})

	opps, counts := c.Correlate(context.Background(), "r",
		[]analyze.Analysis{analysis("x1", jpy(5000), domain.GradeNearMint, 1, 1)}, now)
	if len(opps) != 0 || counts.NoMatch != 1 {
		t.Errorf("opps = %d, counts = %+v", len(opps), counts)
	}
}

func TestCorrelateBelowFloor(t *testing.T) {
	store := &fakePriceStore{refs: map[string][]domain.ReferencePrice{
		blueEyes.Key(): {ref(domain.GradeNearMint, jpy(9000), time.Hour)},
	}}
	c := newCorrelator(store)

	opps, counts := c.Correlate(context.Background(), "r",
		[]analyze.Analysis{analysis("x1", jpy(5000), domain.GradeNearMint, 0.7, 0.6)}, now)
	if len(opps) != 0 || counts.BelowFloor != 1 {
		t.Errorf("opps = %d, counts = %+v (0.42 is under the 0.5 floor)", len(opps), counts)
	}
}

func TestCorrelateIsDeterministic(t *testing.T) {
	store := &fakePriceStore{refs: map[string][]domain.ReferencePrice{
		blueEyes.Key(): {
			ref(domain.GradeNearMint, jpy(9000), time.Hour),
			ref(domain.GradeMint, jpy(12000), 2*time.Hour),
		},
	}}
	c := newCorrelator(store)
	in := []analyze.Analysis{
		analysis("x1", jpy(5000), domain.GradeNearMint, 0.9, 0.9),
		analysis("x2", jpy(7000), domain.GradeNearMint, 0.8, 0.95),
	}

	first, _ := c.Correlate(context.Background(), "run-1", in, now)
	second, _ := c.Correlate(context.Background(), "run-1", in, now)
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("opportunity IDs differ at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].Margin != second[i].Margin {
			t.Errorf("margins differ at %d", i)
		}
	}
}

func TestCorrelateUnknownCurrency(t *testing.T) {
	store := &fakePriceStore{refs: map[string][]domain.ReferencePrice{
		blueEyes.Key(): {ref(domain.GradeNearMint, domain.Money{Amount: 10, Currency: "EUR"}, time.Hour)},
	}}
	c := newCorrelator(store)

	opps, counts := c.Correlate(context.Background(), "r",
		[]analyze.Analysis{analysis("x1", jpy(5000), domain.GradeNearMint, 1, 1)}, now)
	if len(opps) != 0 || counts.NoMatch != 1 {
		t.Errorf("opps = %d, counts = %+v", len(opps), counts)
	}
}
