package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cardhawk/internal/domain"
)

// Archiver uploads run artifacts to object storage: the raw HTML of every
// fetched search page (for parser regression debugging) and the final ranked
// opportunity list of each run.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver on top of the given blob writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveRawPage stores one fetched page under
// raw/<run>/<query>/page-<n>.html.
func (a *Archiver) ArchiveRawPage(ctx context.Context, runID string, page domain.RawPage) error {
	key := fmt.Sprintf("raw/%s/%s/page-%03d.html", runID, sanitize(page.Query), page.Number)
	if err := a.writer.Put(ctx, key, strings.NewReader(page.HTML), "text/html; charset=utf-8"); err != nil {
		return fmt.Errorf("s3blob: archive raw page %s: %w", key, err)
	}
	return nil
}

// ArchiveRun stores the ranked opportunities and the run summary as JSONL
// under runs/<run>/opportunities.jsonl, summary last.
func (a *Archiver) ArchiveRun(ctx context.Context, summary domain.RunSummary, opps []domain.Opportunity) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, o := range opps {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("s3blob: encode opportunity %s: %w", o.ID, err)
		}
	}
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("s3blob: encode run summary: %w", err)
	}

	key := fmt.Sprintf("runs/%s/opportunities.jsonl", summary.RunID)
	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive run %s: %w", summary.RunID, err)
	}
	return nil
}

// sanitize makes a search query safe for use inside an object key.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '\t', '\n', '#', '?', '%':
			return '_'
		default:
			return r
		}
	}, s)
}
