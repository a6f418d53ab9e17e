// Package export writes the ranked opportunity list of a run to local files.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cardhawk/internal/domain"
)

// JSONLSink writes one JSON object per opportunity, followed by the run
// summary as the final line.
type JSONLSink struct {
	dir string
}

var _ domain.Sink = (*JSONLSink)(nil)

// NewJSONLSink creates a sink writing into dir, creating it if needed.
func NewJSONLSink(dir string) *JSONLSink {
	return &JSONLSink{dir: dir}
}

func (s *JSONLSink) Name() string { return "jsonl" }

// Emit writes <dir>/run-<id>.jsonl atomically via a temp file rename.
func (s *JSONLSink) Emit(ctx context.Context, opps []domain.Opportunity, summary domain.RunSummary) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("export: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "run-*.jsonl.tmp")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	for _, o := range opps {
		if ctx.Err() != nil {
			tmp.Close()
			return ctx.Err()
		}
		if err := enc.Encode(o); err != nil {
			tmp.Close()
			return fmt.Errorf("export: encode opportunity %s: %w", o.ID, err)
		}
	}
	if err := enc.Encode(summary); err != nil {
		tmp.Close()
		return fmt.Errorf("export: encode summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}

	final := filepath.Join(s.dir, fmt.Sprintf("run-%s.jsonl", summary.RunID))
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("export: rename output: %w", err)
	}
	return nil
}
