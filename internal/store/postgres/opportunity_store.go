package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"cardhawk/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert records one detected opportunity. Reruns over the same inputs
// produce the same deterministic IDs, so conflicts are ignored instead of
// duplicating rows.
func (s *OpportunityStore) Insert(ctx context.Context, o domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, run_id,
			listing_id, listing_title, listing_url, listing_seller,
			listing_amount, listing_currency,
			card_name, set_code, rarity, language, edition,
			identity_score, grade, grade_confidence, defects,
			ref_amount, ref_currency, ref_observed_at,
			margin_amount, margin_currency,
			confidence, detected_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22,
			$23, $24
		)
		ON CONFLICT (id) DO NOTHING`

	defects := o.Grade.Defects
	if defects == nil {
		defects = []string{}
	}

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.RunID,
		o.Listing.ID, o.Listing.Title, o.Listing.URL, o.Listing.Seller,
		o.Listing.Price.Amount, string(o.Listing.Price.Currency),
		o.Identity.Name, o.Identity.SetCode, o.Identity.Rarity, o.Identity.Language, o.Identity.Edition,
		o.IdentityScore, int(o.Grade.Grade), o.Grade.Confidence, defects,
		o.Reference.Price.Amount, string(o.Reference.Price.Currency), o.Reference.ObservedAt,
		o.Margin.Amount, string(o.Margin.Currency),
		o.Confidence, o.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", o.ID, err)
	}
	return nil
}

// ListByRun returns the opportunities recorded for one run, best margin first.
func (s *OpportunityStore) ListByRun(ctx context.Context, runID string) ([]domain.Opportunity, error) {
	const query = `
		SELECT
			id, run_id,
			listing_id, listing_title, listing_url, listing_seller,
			listing_amount, listing_currency,
			card_name, set_code, rarity, language, edition,
			identity_score, grade, grade_confidence, defects,
			ref_amount, ref_currency, ref_observed_at,
			margin_amount, margin_currency,
			confidence, detected_at
		FROM opportunities
		WHERE run_id = $1
		ORDER BY margin_amount DESC, confidence DESC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities for run %s: %w", runID, err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		var (
			o                                  domain.Opportunity
			listingCur, refCur, marginCur      string
			grade                              int
		)
		if err := rows.Scan(
			&o.ID, &o.RunID,
			&o.Listing.ID, &o.Listing.Title, &o.Listing.URL, &o.Listing.Seller,
			&o.Listing.Price.Amount, &listingCur,
			&o.Identity.Name, &o.Identity.SetCode, &o.Identity.Rarity, &o.Identity.Language, &o.Identity.Edition,
			&o.IdentityScore, &grade, &o.Grade.Confidence, &o.Grade.Defects,
			&o.Reference.Price.Amount, &refCur, &o.Reference.ObservedAt,
			&o.Margin.Amount, &marginCur,
			&o.Confidence, &o.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		o.Listing.Price.Currency = domain.Currency(listingCur)
		o.Reference.Price.Currency = domain.Currency(refCur)
		o.Margin.Currency = domain.Currency(marginCur)
		o.Grade.Grade = domain.Grade(grade)
		o.Reference.Identity = o.Identity
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return opps, nil
}
