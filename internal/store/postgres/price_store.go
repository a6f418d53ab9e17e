package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardhawk/internal/domain"
)

// PriceStore implements domain.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *pgxpool.Pool
}

var _ domain.PriceStore = (*PriceStore)(nil)

// NewPriceStore creates a PriceStore backed by the given pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Query returns every reference snapshot recorded for the identity, newest
// first. Staleness filtering belongs to the correlation engine.
func (s *PriceStore) Query(ctx context.Context, id domain.CardIdentity) ([]domain.ReferencePrice, error) {
	const query = `
		SELECT grade, amount, currency, observed_at
		FROM reference_prices
		WHERE name = $1 AND set_code = $2 AND rarity = $3 AND language = $4 AND edition = $5
		ORDER BY observed_at DESC`

	rows, err := s.pool.Query(ctx, query, id.Name, id.SetCode, id.Rarity, id.Language, id.Edition)
	if err != nil {
		return nil, fmt.Errorf("postgres: query reference prices for %s: %w", id.Key(), err)
	}
	defer rows.Close()

	var refs []domain.ReferencePrice
	for rows.Next() {
		r := domain.ReferencePrice{Identity: id}
		var currency string
		if err := rows.Scan(&r.Grade, &r.Price.Amount, &currency, &r.ObservedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan reference price: %w", err)
		}
		r.Price.Currency = domain.Currency(currency)
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate reference prices: %w", err)
	}
	return refs, nil
}

// InsertBatch records reference snapshots, typically from a seed file or a
// periodic market export.
func (s *PriceStore) InsertBatch(ctx context.Context, refs []domain.ReferencePrice) error {
	if len(refs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO reference_prices (name, set_code, rarity, language, edition, grade, amount, currency, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, r := range refs {
		batch.Queue(query,
			r.Identity.Name, r.Identity.SetCode, r.Identity.Rarity,
			r.Identity.Language, r.Identity.Edition,
			int(r.Grade), r.Price.Amount, string(r.Price.Currency), r.ObservedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range refs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: batch insert reference prices: %w", err)
		}
	}
	return nil
}
