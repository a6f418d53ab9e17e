package domain

import "time"

// RunSummary counts every recoverable failure and expected skip of one
// pipeline run so operators can gauge scrape health. The run always terminates
// with a best-effort opportunity list plus this summary.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	PagesFetched       int
	PagesFailed        int
	ListingsParsed     int
	EntriesSkipped     int // malformed entries dropped by the parser
	AnalysisFailed     int
	IdentityUnresolved int
	NoMatch            int
	BelowFloor         int // correlated but under the confidence floor
	Deduplicated       int // duplicates collapsed by the aggregator
	Emitted            int
}

// Excluded returns the total number of listings that entered analysis but
// produced no opportunity.
func (s RunSummary) Excluded() int {
	return s.AnalysisFailed + s.IdentityUnresolved + s.NoMatch + s.BelowFloor
}
