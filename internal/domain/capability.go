package domain

import (
	"context"
	"io"
)

// Fingerprint is one browsing-identity profile used to resist bot detection.
type Fingerprint struct {
	ID         string
	UserAgent  string
	Locale     string
	ViewportW  int
	ViewportH  int
	JitterSeed int64
}

// FetchSignals carries the detectable page-state markers of a fetch.
type FetchSignals struct {
	BotChallenge bool
	RateLimited  bool
	Maintenance  bool
	NoResults    bool
}

// FetchResult is the outcome of one page fetch through the browser capability.
type FetchResult struct {
	HTML    string
	Status  int
	Signals FetchSignals
}

// Browser is the browser-automation capability. The pipeline depends only on
// this contract, not on any specific automation engine.
type Browser interface {
	Fetch(ctx context.Context, url string, fp Fingerprint) (FetchResult, error)
	Close() error
}

// Classifier is the AI classification capability. The raw response is opaque;
// schema validation and retry policy belong to the analyzer.
type Classifier interface {
	Classify(ctx context.Context, imageURLs []string, text, prompt string) (string, error)
}

// CatalogCandidate is one ranked match from the canonical card catalog.
type CatalogCandidate struct {
	Identity CardIdentity
	Score    float64 // similarity in [0,1], higher is better
}

// Catalog looks up canonical card identities by name variants and returns
// candidates ranked by similarity, best first.
type Catalog interface {
	Lookup(ctx context.Context, variants []string) ([]CatalogCandidate, error)
}

// PriceStore provides reference-market price snapshots for a card identity.
type PriceStore interface {
	Query(ctx context.Context, id CardIdentity) ([]ReferencePrice, error)
}

// OpportunityStore persists emitted opportunities for later review.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
}

// Sink receives the final ordered opportunity sequence. The pipeline is
// agnostic to the serialization format.
type Sink interface {
	Emit(ctx context.Context, opps []Opportunity, summary RunSummary) error
	Name() string
}

// BlobWriter uploads raw artifacts (page snapshots, run output) to object
// storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BurnedStore records which browsing identities have been burned so they are
// not reused for the remainder of the run window.
type BurnedStore interface {
	Burn(ctx context.Context, fingerprintID string) error
	IsBurned(ctx context.Context, fingerprintID string) (bool, error)
}
