package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"cardhawk/internal/domain"
	"cardhawk/internal/match"
)

// maxCandidates bounds how many ranked catalog matches Lookup returns.
const maxCandidates = 10

// CatalogStore implements domain.Catalog using PostgreSQL. Candidate scoring
// happens in process: the catalog is small enough to scan, and bigram
// similarity over romanized titles has no SQL equivalent without extensions.
type CatalogStore struct {
	pool *pgxpool.Pool
}

var _ domain.Catalog = (*CatalogStore)(nil)

// NewCatalogStore creates a CatalogStore backed by the given pool.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

// Lookup scores every catalog entry against the name variants and returns the
// best candidates in descending score order.
func (s *CatalogStore) Lookup(ctx context.Context, variants []string) ([]domain.CatalogCandidate, error) {
	if len(variants) == 0 {
		return nil, nil
	}

	const query = `
		SELECT name, name_normalized, set_code, rarity, language, edition
		FROM cards`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: query catalog: %w", err)
	}
	defer rows.Close()

	var cands []domain.CatalogCandidate
	for rows.Next() {
		var (
			id         domain.CardIdentity
			normalized string
		)
		if err := rows.Scan(&id.Name, &normalized, &id.SetCode, &id.Rarity, &id.Language, &id.Edition); err != nil {
			return nil, fmt.Errorf("postgres: scan card: %w", err)
		}

		score := match.BestScore(variants, normalized)
		if id.SetCode != "" {
			withCode := normalized + " " + match.Normalize(id.SetCode)
			if s := match.BestScore(variants, withCode); s > score {
				score = s
			}
		}
		if score > 0 {
			cands = append(cands, domain.CatalogCandidate{Identity: id, Score: score})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate catalog: %w", err)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Identity.Key() < cands[j].Identity.Key()
	})
	if len(cands) > maxCandidates {
		cands = cands[:maxCandidates]
	}
	return cands, nil
}

// Upsert inserts or refreshes one catalog entry. The normalized name column
// is derived here so lookups and seeds can never disagree on normalization.
func (s *CatalogStore) Upsert(ctx context.Context, id domain.CardIdentity) error {
	const query = `
		INSERT INTO cards (name, name_normalized, set_code, rarity, language, edition)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name, set_code, rarity, language, edition) DO UPDATE SET
			name_normalized = EXCLUDED.name_normalized`

	_, err := s.pool.Exec(ctx, query,
		id.Name, match.Normalize(id.Name), id.SetCode, id.Rarity, id.Language, id.Edition,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert card %s: %w", id.Key(), err)
	}
	return nil
}

// UpsertBatch seeds multiple catalog entries in a single batch.
func (s *CatalogStore) UpsertBatch(ctx context.Context, ids []domain.CardIdentity) error {
	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO cards (name, name_normalized, set_code, rarity, language, edition)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (name, set_code, rarity, language, edition) DO UPDATE SET
			name_normalized = EXCLUDED.name_normalized`
	for _, id := range ids {
		batch.Queue(query,
			id.Name, match.Normalize(id.Name), id.SetCode, id.Rarity, id.Language, id.Edition,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range ids {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: batch upsert cards: %w", err)
		}
	}
	return nil
}
