// Package pipeline drives one acquisition-and-correlation run end to end:
// search pages are fetched and parsed, listings are classified and matched,
// and the surviving opportunities are ranked, persisted, and emitted. Every
// stage failure short of context cancellation degrades the run instead of
// aborting it; the RunSummary accounts for everything that fell out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cardhawk/internal/acquire"
	"cardhawk/internal/aggregate"
	"cardhawk/internal/analyze"
	"cardhawk/internal/correlate"
	"cardhawk/internal/domain"
	"cardhawk/internal/parse"
)

// Searcher fetches result pages for one query.
type Searcher interface {
	Search(ctx context.Context, query string, maxPages int) (acquire.Result, error)
}

// PageParser turns one raw page into listings.
type PageParser interface {
	Page(page domain.RawPage) (parse.PageResult, error)
}

// ListingAnalyzer classifies and identifies a batch of listings.
type ListingAnalyzer interface {
	AnalyzeAll(ctx context.Context, listings []domain.RawListing) ([]analyze.Analysis, analyze.Counts)
}

// PriceCorrelator prices analyzed listings against the reference store.
type PriceCorrelator interface {
	Correlate(ctx context.Context, runID string, analyses []analyze.Analysis, now time.Time) ([]domain.Opportunity, correlate.Counts)
}

// Archiver uploads raw pages and run output to object storage.
type Archiver interface {
	ArchiveRawPage(ctx context.Context, runID string, page domain.RawPage) error
	ArchiveRun(ctx context.Context, summary domain.RunSummary, opps []domain.Opportunity) error
}

// Notifier announces run lifecycle events.
type Notifier interface {
	RunComplete(ctx context.Context, summary domain.RunSummary, top []domain.Opportunity) error
	HotOpportunity(ctx context.Context, o domain.Opportunity) error
	RunFailed(ctx context.Context, runID string, err error) error
}

// Config holds the run parameters.
type Config struct {
	SearchTerms     []string
	MaxPages        int
	ArchiveRawPages bool
	HotMargin       float64 // in target currency; 0 disables hot alerts
}

// Deps collects the pipeline's collaborators. Opportunities, Archiver, and
// Notifier are optional; nil disables the corresponding side effect.
type Deps struct {
	Engine        Searcher
	Parser        PageParser
	Analyzer      ListingAnalyzer
	Correlator    PriceCorrelator
	Opportunities domain.OpportunityStore
	Sinks         []domain.Sink
	Archiver      Archiver
	Notifier      Notifier
}

// Pipeline executes one full run.
type Pipeline struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	now func() time.Time
}

// New builds a Pipeline.
func New(cfg Config, deps Deps, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		log:  log.With(slog.String("component", "pipeline")),
		now:  time.Now,
	}
}

// Run executes one run across all configured search terms and returns the
// ranked opportunities with the run summary. A fatal acquisition error stops
// further searching but the pages already fetched still flow through the rest
// of the pipeline; the error is returned alongside the partial results.
func (p *Pipeline) Run(ctx context.Context) (domain.RunSummary, []domain.Opportunity, error) {
	runID := uuid.NewString()
	summary := domain.RunSummary{RunID: runID, StartedAt: p.now()}

	p.log.Info("run started",
		slog.String("run_id", runID),
		slog.Int("search_terms", len(p.cfg.SearchTerms)),
	)

	pages, fatalErr := p.acquireAll(ctx, &summary)
	if ctx.Err() != nil {
		return summary, nil, ctx.Err()
	}

	p.archivePages(ctx, runID, pages)

	listings := p.parseAll(pages, &summary)
	if ctx.Err() != nil {
		return summary, nil, ctx.Err()
	}

	analyses, acounts := p.deps.Analyzer.AnalyzeAll(ctx, listings)
	summary.AnalysisFailed = acounts.Failed
	summary.IdentityUnresolved = acounts.Unresolved
	if ctx.Err() != nil {
		return summary, nil, ctx.Err()
	}

	opps, ccounts := p.deps.Correlator.Correlate(ctx, runID, analyses, p.now())
	summary.NoMatch = ccounts.NoMatch
	summary.BelowFloor = ccounts.BelowFloor
	if ctx.Err() != nil {
		return summary, nil, ctx.Err()
	}

	agg := aggregate.Rank(opps)
	ranked := agg.Opportunities
	summary.Deduplicated += agg.Deduplicated
	summary.Emitted = len(ranked)
	summary.FinishedAt = p.now()

	p.persist(ctx, ranked)
	emitErr := p.emit(ctx, ranked, summary)
	p.archiveRun(ctx, summary, ranked)
	p.notify(ctx, summary, ranked, fatalErr)

	p.log.Info("run finished",
		slog.String("run_id", runID),
		slog.Int("emitted", summary.Emitted),
		slog.Int("excluded", summary.Excluded()),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, ranked, errors.Join(fatalErr, emitErr)
}

// acquireAll searches every configured term, accumulating pages. A fatal
// error from one search ends acquisition for the remaining terms.
func (p *Pipeline) acquireAll(ctx context.Context, summary *domain.RunSummary) ([]domain.RawPage, error) {
	var pages []domain.RawPage
	for _, term := range p.cfg.SearchTerms {
		res, err := p.deps.Engine.Search(ctx, term, p.cfg.MaxPages)
		pages = append(pages, res.Pages...)
		summary.PagesFetched += len(res.Pages)
		summary.PagesFailed += len(res.Failed)
		if err != nil {
			if ctx.Err() != nil {
				return pages, err
			}
			p.log.Error("search aborted, skipping remaining terms",
				slog.String("query", term),
				slog.String("error", err.Error()),
			)
			return pages, fmt.Errorf("pipeline: search %q: %w", term, err)
		}
	}
	return pages, nil
}

// parseAll extracts listings from every fetched page, deduplicating repeats
// across overlapping search terms. The first occurrence of a listing wins.
func (p *Pipeline) parseAll(pages []domain.RawPage, summary *domain.RunSummary) []domain.RawListing {
	seen := make(map[string]bool)
	var listings []domain.RawListing
	for _, page := range pages {
		pr, err := p.deps.Parser.Page(page)
		if err != nil {
			summary.PagesFailed++
			p.log.Warn("page unparseable",
				slog.String("query", page.Query),
				slog.Int("page", page.Number),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.EntriesSkipped += pr.Skipped
		for _, l := range pr.Listings {
			if seen[l.ID] {
				summary.Deduplicated++
				continue
			}
			seen[l.ID] = true
			listings = append(listings, l)
		}
	}
	summary.ListingsParsed = len(listings)
	return listings
}

// archivePages snapshots raw page HTML to object storage, best effort.
func (p *Pipeline) archivePages(ctx context.Context, runID string, pages []domain.RawPage) {
	if p.deps.Archiver == nil || !p.cfg.ArchiveRawPages {
		return
	}
	for _, page := range pages {
		if ctx.Err() != nil {
			return
		}
		if err := p.deps.Archiver.ArchiveRawPage(ctx, runID, page); err != nil {
			p.log.Warn("raw page archive failed",
				slog.String("query", page.Query),
				slog.Int("page", page.Number),
				slog.String("error", err.Error()),
			)
		}
	}
}

// persist writes each opportunity to the store, best effort per row.
func (p *Pipeline) persist(ctx context.Context, opps []domain.Opportunity) {
	if p.deps.Opportunities == nil {
		return
	}
	for _, o := range opps {
		if ctx.Err() != nil {
			return
		}
		if err := p.deps.Opportunities.Insert(ctx, o); err != nil {
			p.log.Warn("opportunity insert failed",
				slog.String("opportunity_id", o.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// emit hands the ranked list to every sink. One sink failing does not stop
// the others; all failures are joined into the returned error.
func (p *Pipeline) emit(ctx context.Context, opps []domain.Opportunity, summary domain.RunSummary) error {
	var errs []error
	for _, sink := range p.deps.Sinks {
		if err := sink.Emit(ctx, opps, summary); err != nil {
			p.log.Error("sink emit failed",
				slog.String("sink", sink.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("pipeline: sink %s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// archiveRun uploads the final run output to object storage, best effort.
func (p *Pipeline) archiveRun(ctx context.Context, summary domain.RunSummary, opps []domain.Opportunity) {
	if p.deps.Archiver == nil || ctx.Err() != nil {
		return
	}
	if err := p.deps.Archiver.ArchiveRun(ctx, summary, opps); err != nil {
		p.log.Warn("run archive failed",
			slog.String("run_id", summary.RunID),
			slog.String("error", err.Error()),
		)
	}
}

// notify sends lifecycle events: hot alerts for big margins, then either a
// completion or a failure event depending on how acquisition ended.
func (p *Pipeline) notify(ctx context.Context, summary domain.RunSummary, opps []domain.Opportunity, fatalErr error) {
	if p.deps.Notifier == nil || ctx.Err() != nil {
		return
	}
	if p.cfg.HotMargin > 0 {
		for _, o := range opps {
			if o.Margin.Amount < p.cfg.HotMargin {
				break // ranked by margin, nothing hotter follows
			}
			if err := p.deps.Notifier.HotOpportunity(ctx, o); err != nil {
				p.log.Warn("hot opportunity notify failed", slog.String("error", err.Error()))
			}
		}
	}

	var err error
	if fatalErr != nil {
		err = p.deps.Notifier.RunFailed(ctx, summary.RunID, fatalErr)
	} else {
		err = p.deps.Notifier.RunComplete(ctx, summary, opps)
	}
	if err != nil {
		p.log.Warn("run notify failed", slog.String("error", err.Error()))
	}
}
