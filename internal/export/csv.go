package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cardhawk/internal/domain"
)

// csvHeader fixes the column order of the CSV output.
var csvHeader = []string{
	"rank", "margin", "margin_currency", "confidence",
	"card_name", "set_code", "rarity", "language", "edition",
	"grade", "grade_confidence", "identity_score",
	"listing_id", "listing_title", "listing_price", "listing_currency",
	"reference_price", "reference_currency", "reference_observed_at",
	"seller", "url",
}

// CSVSink writes the ranked opportunities as a spreadsheet-friendly CSV.
type CSVSink struct {
	dir string
}

var _ domain.Sink = (*CSVSink)(nil)

// NewCSVSink creates a sink writing into dir, creating it if needed.
func NewCSVSink(dir string) *CSVSink {
	return &CSVSink{dir: dir}
}

func (s *CSVSink) Name() string { return "csv" }

// Emit writes <dir>/run-<id>.csv. Rows arrive already ranked; the rank column
// is just the 1-based position.
func (s *CSVSink) Emit(ctx context.Context, opps []domain.Opportunity, summary domain.RunSummary) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "run-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write csv header: %w", err)
	}
	for i, o := range opps {
		if ctx.Err() != nil {
			tmp.Close()
			return ctx.Err()
		}
		if err := w.Write(record(i+1, o)); err != nil {
			tmp.Close()
			return fmt.Errorf("export: write csv row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("export: flush csv: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}

	final := filepath.Join(s.dir, fmt.Sprintf("run-%s.csv", summary.RunID))
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("export: rename output: %w", err)
	}
	return nil
}

func record(rank int, o domain.Opportunity) []string {
	return []string{
		strconv.Itoa(rank),
		formatAmount(o.Margin.Amount),
		string(o.Margin.Currency),
		formatAmount(o.Confidence),
		o.Identity.Name,
		o.Identity.SetCode,
		o.Identity.Rarity,
		o.Identity.Language,
		o.Identity.Edition,
		o.Grade.Grade.String(),
		formatAmount(o.Grade.Confidence),
		formatAmount(o.IdentityScore),
		o.Listing.ID,
		o.Listing.Title,
		formatAmount(o.Listing.Price.Amount),
		string(o.Listing.Price.Currency),
		formatAmount(o.Reference.Price.Amount),
		string(o.Reference.Price.Currency),
		o.Reference.ObservedAt.UTC().Format(time.RFC3339),
		o.Listing.Seller,
		o.Listing.URL,
	}
}

func formatAmount(f float64) string {
	s := strconv.FormatFloat(f, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
