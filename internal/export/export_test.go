package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cardhawk/internal/domain"
)

func sampleOpps() []domain.Opportunity {
	return []domain.Opportunity{
		{
			ID:    "o1",
			RunID: "r1",
			Listing: domain.RawListing{
				ID:    "x1",
				Title: "ブルーアイズ lob-en001",
				Price: domain.Money{Amount: 5000, Currency: domain.CurrencyJPY},
				URL:   "https://buyee.jp/item/x1",
			},
			Identity:      domain.CardIdentity{Name: "Blue-Eyes White Dragon", SetCode: "LOB"},
			IdentityScore: 0.92,
			Grade:         domain.ConditionGrade{Grade: domain.GradeNearMint, Confidence: 0.85},
			Reference: domain.ReferencePrice{
				Price:      domain.Money{Amount: 9000, Currency: domain.CurrencyJPY},
				ObservedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			},
			Margin:     domain.Money{Amount: 3500, Currency: domain.CurrencyJPY},
			Confidence: 0.782,
		},
	}
}

func TestJSONLSinkEmit(t *testing.T) {
	dir := t.TempDir()
	s := NewJSONLSink(dir)

	summary := domain.RunSummary{RunID: "r1", Emitted: 1}
	if err := s.Emit(context.Background(), sampleOpps(), summary); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "run-r1.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want opportunity + summary", len(lines))
	}
	var o domain.Opportunity
	if err := json.Unmarshal([]byte(lines[0]), &o); err != nil || o.ID != "o1" {
		t.Errorf("first line: %v (%v)", lines[0], err)
	}
	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir entries = %d, want 1", len(entries))
	}
}

func TestCSVSinkEmit(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir)

	summary := domain.RunSummary{RunID: "r1", Emitted: 1}
	if err := s.Emit(context.Background(), sampleOpps(), summary); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(filepath.Join(dir, "run-r1.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "rank" || len(rows[0]) != len(csvHeader) {
		t.Errorf("header = %v", rows[0])
	}
	row := rows[1]
	if row[0] != "1" {
		t.Errorf("rank = %q", row[0])
	}
	if row[1] != "3500" {
		t.Errorf("margin = %q", row[1])
	}
	if row[4] != "Blue-Eyes White Dragon" {
		t.Errorf("card name = %q", row[4])
	}
	if row[9] != "Near Mint" {
		t.Errorf("grade = %q", row[9])
	}
}

func TestCSVSinkEmptyRunStillWritesHeader(t *testing.T) {
	dir := t.TempDir()
	s := NewCSVSink(dir)

	if err := s.Emit(context.Background(), nil, domain.RunSummary{RunID: "r2"}); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(filepath.Join(dir, "run-r2.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}

func TestSinkNames(t *testing.T) {
	if NewJSONLSink("x").Name() != "jsonl" {
		t.Error("jsonl name")
	}
	if NewCSVSink("x").Name() != "csv" {
		t.Error("csv name")
	}
}
