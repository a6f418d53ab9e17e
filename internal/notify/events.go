package notify

import (
	"context"
	"fmt"
	"strings"

	"cardhawk/internal/domain"
)

// Event types emitted by the pipeline.
const (
	EventRunComplete    = "run_complete"
	EventHotOpportunity = "hot_opportunity"
	EventError          = "error"
)

// RunComplete announces a finished run with its headline numbers and the top
// opportunities.
func (n *Notifier) RunComplete(ctx context.Context, summary domain.RunSummary, top []domain.Opportunity) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished in %s.\n", summary.RunID, summary.FinishedAt.Sub(summary.StartedAt).Round(1e9))
	fmt.Fprintf(&b, "Pages: %d fetched, %d failed. Listings: %d parsed, %d skipped.\n",
		summary.PagesFetched, summary.PagesFailed, summary.ListingsParsed, summary.EntriesSkipped)
	fmt.Fprintf(&b, "Excluded: %d (analysis %d, identity %d, no match %d, below floor %d). Emitted: %d.",
		summary.Excluded(), summary.AnalysisFailed, summary.IdentityUnresolved,
		summary.NoMatch, summary.BelowFloor, summary.Emitted)

	for i, o := range top {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "\n%d. %s (%s) margin %.0f %s, confidence %.2f",
			i+1, o.Identity.Name, o.Grade.Grade, o.Margin.Amount, o.Margin.Currency, o.Confidence)
	}

	return n.Notify(ctx, EventRunComplete, "Run complete", b.String())
}

// HotOpportunity announces a single opportunity worth immediate attention.
func (n *Notifier) HotOpportunity(ctx context.Context, o domain.Opportunity) error {
	msg := fmt.Sprintf("%s [%s] at %.0f %s\nmargin %.0f %s, confidence %.2f\n%s",
		o.Identity.Name, o.Grade.Grade,
		o.Listing.Price.Amount, o.Listing.Price.Currency,
		o.Margin.Amount, o.Margin.Currency, o.Confidence,
		o.Listing.URL)
	return n.Notify(ctx, EventHotOpportunity, "Hot opportunity", msg)
}

// RunFailed announces a run that aborted with a fatal error.
func (n *Notifier) RunFailed(ctx context.Context, runID string, err error) error {
	return n.Notify(ctx, EventError, "Run failed",
		fmt.Sprintf("Run %s aborted: %v", runID, err))
}
