// Package correlate joins graded listings against reference-market prices and
// computes the estimated margin of each prospective purchase.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"cardhawk/internal/analyze"
	"cardhawk/internal/domain"
)

// Config holds the correlation rules.
type Config struct {
	StalenessBound  time.Duration
	FeeEstimate     float64 // in target currency, covers shipping and proxy fees
	TargetCurrency  domain.Currency
	Rates           map[domain.Currency]float64 // target units per one source unit
	ConfidenceFloor float64
}

// Counts tallies analyses that produced no opportunity.
type Counts struct {
	NoMatch    int // no usable reference price
	BelowFloor int // correlated but confidence under the floor
}

// Correlator prices analyzed listings against the reference store.
type Correlator struct {
	cfg    Config
	prices domain.PriceStore
	log    *slog.Logger
}

// New builds a Correlator.
func New(cfg Config, prices domain.PriceStore, log *slog.Logger) *Correlator {
	return &Correlator{
		cfg:    cfg,
		prices: prices,
		log:    log.With(slog.String("component", "correlate")),
	}
}

// Correlate evaluates each analysis at time now. The result is deterministic
// for identical inputs: opportunity IDs derive from the run and listing IDs,
// and input order is preserved.
func (c *Correlator) Correlate(ctx context.Context, runID string, analyses []analyze.Analysis, now time.Time) ([]domain.Opportunity, Counts) {
	var (
		opps   []domain.Opportunity
		counts Counts
	)

	for _, an := range analyses {
		opp, ok := c.evaluate(ctx, runID, an, now, &counts)
		if ok {
			opps = append(opps, opp)
		}
	}

	c.log.Info("correlation complete",
		slog.String("run_id", runID),
		slog.Int("opportunities", len(opps)),
		slog.Int("no_match", counts.NoMatch),
		slog.Int("below_floor", counts.BelowFloor),
	)
	return opps, counts
}

func (c *Correlator) evaluate(ctx context.Context, runID string, an analyze.Analysis, now time.Time, counts *Counts) (domain.Opportunity, bool) {
	refs, err := c.prices.Query(ctx, an.Identity)
	if err != nil {
		c.log.Warn("price lookup failed",
			slog.String("listing_id", an.Listing.ID),
			slog.String("error", err.Error()),
		)
		counts.NoMatch++
		return domain.Opportunity{}, false
	}

	ref, ok := c.pickReference(refs, an.Grade.Grade, now)
	if !ok {
		counts.NoMatch++
		return domain.Opportunity{}, false
	}

	confidence := an.IdentityScore * an.Grade.Confidence
	if confidence < c.cfg.ConfidenceFloor {
		counts.BelowFloor++
		return domain.Opportunity{}, false
	}

	margin, err := c.margin(ref.Price, an.Listing.Price)
	if err != nil {
		c.log.Warn("margin computation failed",
			slog.String("listing_id", an.Listing.ID),
			slog.String("error", err.Error()),
		)
		counts.NoMatch++
		return domain.Opportunity{}, false
	}

	return domain.Opportunity{
		ID:            opportunityID(runID, an.Listing.ID),
		RunID:         runID,
		Listing:       an.Listing,
		Identity:      an.Identity,
		IdentityScore: an.IdentityScore,
		Grade:         an.Grade,
		Reference:     ref,
		Margin:        margin,
		Confidence:    confidence,
		DetectedAt:    now,
	}, true
}

// pickReference selects the usable reference price for a listing grade:
// the same grade or one grade better, observed within the staleness bound
// (inclusive). Among eligible snapshots the most recent wins; ties prefer the
// exact grade, then the lower price.
func (c *Correlator) pickReference(refs []domain.ReferencePrice, grade domain.Grade, now time.Time) (domain.ReferencePrice, bool) {
	eligible := refs[:0:0]
	for _, r := range refs {
		step := int(r.Grade) - int(grade)
		if step != 0 && step != 1 {
			continue
		}
		if r.Age(now) > c.cfg.StalenessBound {
			continue
		}
		eligible = append(eligible, r)
	}
	if len(eligible) == 0 {
		return domain.ReferencePrice{}, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if !a.ObservedAt.Equal(b.ObservedAt) {
			return a.ObservedAt.After(b.ObservedAt)
		}
		da := int(a.Grade) - int(grade)
		db := int(b.Grade) - int(grade)
		if da != db {
			return da < db
		}
		return a.Price.Amount < b.Price.Amount
	})
	return eligible[0], true
}

// margin computes reference minus listing minus fees, all in the target
// currency.
func (c *Correlator) margin(ref, listing domain.Money) (domain.Money, error) {
	refT, err := c.convert(ref)
	if err != nil {
		return domain.Money{}, err
	}
	listT, err := c.convert(listing)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.Money{
		Amount:   refT - listT - c.cfg.FeeEstimate,
		Currency: c.cfg.TargetCurrency,
	}, nil
}

func (c *Correlator) convert(m domain.Money) (float64, error) {
	rate, ok := c.cfg.Rates[m.Currency]
	if !ok {
		return 0, fmt.Errorf("correlate: no rate for currency %s", m.Currency)
	}
	return m.Amount * rate, nil
}

// opportunityID is a stable UUID derived from the run and listing, so a rerun
// over the same inputs reproduces the same IDs.
func opportunityID(runID, listingID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(runID+":"+listingID)).String()
}
