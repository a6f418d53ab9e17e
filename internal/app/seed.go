package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cardhawk/internal/domain"
	"cardhawk/internal/store/postgres"
)

// seedFile is the on-disk format for catalog and reference price seeding.
// Grades are the human-readable labels accepted by domain.ParseGrade.
type seedFile struct {
	Cards  []seedCard  `json:"cards"`
	Prices []seedPrice `json:"prices"`
}

type seedCard struct {
	Name     string `json:"name"`
	SetCode  string `json:"set_code"`
	Rarity   string `json:"rarity"`
	Language string `json:"language"`
	Edition  string `json:"edition"`
}

type seedPrice struct {
	Card       seedCard  `json:"card"`
	Grade      string    `json:"grade"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	ObservedAt time.Time `json:"observed_at"`
}

func (c seedCard) identity() domain.CardIdentity {
	return domain.CardIdentity{
		Name:     c.Name,
		SetCode:  c.SetCode,
		Rarity:   c.Rarity,
		Language: c.Language,
		Edition:  c.Edition,
	}
}

// parseSeedFile decodes the seed JSON into domain values.
func parseSeedFile(data []byte) ([]domain.CardIdentity, []domain.ReferencePrice, error) {
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("decode seed file: %w", err)
	}

	cards := make([]domain.CardIdentity, 0, len(f.Cards))
	for i, c := range f.Cards {
		if c.Name == "" {
			return nil, nil, fmt.Errorf("seed card %d: name is required", i)
		}
		cards = append(cards, c.identity())
	}

	prices := make([]domain.ReferencePrice, 0, len(f.Prices))
	for i, p := range f.Prices {
		if p.Card.Name == "" {
			return nil, nil, fmt.Errorf("seed price %d: card name is required", i)
		}
		if p.Amount <= 0 {
			return nil, nil, fmt.Errorf("seed price %d: amount must be > 0", i)
		}
		if p.ObservedAt.IsZero() {
			return nil, nil, fmt.Errorf("seed price %d: observed_at is required", i)
		}
		prices = append(prices, domain.ReferencePrice{
			Identity:   p.Card.identity(),
			Grade:      domain.ParseGrade(p.Grade),
			Price:      domain.Money{Amount: p.Amount, Currency: domain.Currency(p.Currency)},
			ObservedAt: p.ObservedAt,
		})
	}
	return cards, prices, nil
}

// Seed loads the catalog and reference prices from a JSON file into Postgres.
// It connects only to the database; no other dependency is wired.
func (a *App) Seed(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("app: read seed file: %w", err)
	}
	cards, prices, err := parseSeedFile(data)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      a.cfg.Postgres.DSN,
		Host:     a.cfg.Postgres.Host,
		Port:     a.cfg.Postgres.Port,
		Database: a.cfg.Postgres.Database,
		User:     a.cfg.Postgres.User,
		Password: a.cfg.Postgres.Password,
		SSLMode:  a.cfg.Postgres.SSLMode,
		MaxConns: a.cfg.Postgres.PoolMaxConns,
		MinConns: a.cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fmt.Errorf("app: postgres: %w", err)
	}
	defer pgClient.Close()

	if a.cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fmt.Errorf("app: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	if err := postgres.NewCatalogStore(pool).UpsertBatch(ctx, cards); err != nil {
		return fmt.Errorf("app: seed catalog: %w", err)
	}
	if err := postgres.NewPriceStore(pool).InsertBatch(ctx, prices); err != nil {
		return fmt.Errorf("app: seed prices: %w", err)
	}

	a.logger.InfoContext(ctx, "seed complete",
		slog.String("path", path),
		slog.Int("cards", len(cards)),
		slog.Int("prices", len(prices)),
	)
	return nil
}
