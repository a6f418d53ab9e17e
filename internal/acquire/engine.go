// Package acquire walks marketplace search results page by page, pacing
// requests like a human and retiring browsing identities that trip bot
// detection. Parsing the fetched HTML belongs to the parse package; this one
// only decides what to fetch, when, and under which identity.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"time"

	"cardhawk/internal/domain"
)

// errBotChallenge marks a fetch rejected by the marketplace's bot detection.
var errBotChallenge = errors.New("acquire: bot challenge served")

// SessionManager supplies browsing identities and burns the ones that got
// detected.
type SessionManager interface {
	Acquire(ctx context.Context) (domain.Fingerprint, error)
	Rotate(ctx context.Context) (domain.Fingerprint, error)
}

// Paginator decides from page HTML whether another results page follows.
type Paginator interface {
	HasNextPage(html string) bool
}

// Config holds the engine's pacing and retry parameters.
type Config struct {
	BaseURL     string
	MaxRetries  int
	MinDelay    time.Duration
	MaxDelay    time.Duration
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// Result is the outcome of one search: the pages that were fetched plus the
// recoverable per-page errors that were skipped over.
type Result struct {
	Pages  []domain.RawPage
	Failed []error
}

// Engine fetches search result pages for one query at a time.
type Engine struct {
	cfg      Config
	browser  domain.Browser
	sessions SessionManager
	pager    Paginator
	log      *slog.Logger
	rng      *rand.Rand

	// Injection points for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine builds an Engine. The seed feeds pacing and backoff jitter.
func NewEngine(cfg Config, browser domain.Browser, sessions SessionManager, pager Paginator, log *slog.Logger, seed int64) *Engine {
	return &Engine{
		cfg:      cfg,
		browser:  browser,
		sessions: sessions,
		pager:    pager,
		log:      log.With(slog.String("component", "acquire")),
		rng:      rand.New(rand.NewSource(seed)),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Search fetches up to maxPages result pages for query. Recoverable page
// failures are recorded in Result.Failed and pagination continues; the
// returned error is non-nil only for search-fatal conditions (context
// cancellation, identity pool exhaustion, repeated bot challenges).
func (e *Engine) Search(ctx context.Context, query string, maxPages int) (Result, error) {
	var res Result

	for page := 1; page <= maxPages; page++ {
		if page > 1 {
			if err := e.sleep(ctx, pacingDelay(e.cfg.MinDelay, e.cfg.MaxDelay, e.rng)); err != nil {
				return res, err
			}
		}

		raw, stop, err := e.fetchPage(ctx, query, page)
		if err != nil {
			var aerr *domain.AcquisitionError
			if errors.As(err, &aerr) && !aerr.Fatal {
				e.log.Warn("page failed, continuing",
					slog.String("query", query),
					slog.Int("page", page),
					slog.String("error", err.Error()),
				)
				res.Failed = append(res.Failed, err)
				continue
			}
			return res, err
		}
		if stop {
			e.log.Info("no results, ending pagination",
				slog.String("query", query), slog.Int("page", page))
			break
		}

		res.Pages = append(res.Pages, raw)
		if !e.pager.HasNextPage(raw.HTML) {
			break
		}
	}

	e.log.Info("search complete",
		slog.String("query", query),
		slog.Int("pages", len(res.Pages)),
		slog.Int("failed", len(res.Failed)),
	)
	return res, nil
}

// fetchPage drives one page through its retry state machine. stop is true when
// the marketplace reported no results for the query.
func (e *Engine) fetchPage(ctx context.Context, query string, page int) (domain.RawPage, bool, error) {
	pageURL := e.searchURL(query, page)
	fs := &fetchState{}

	for fs.attempt <= e.cfg.MaxRetries {
		if wait := fs.nextEligible.Sub(e.now()); wait > 0 {
			if err := e.sleep(ctx, wait); err != nil {
				return domain.RawPage{}, false, err
			}
		}

		fp, err := e.sessions.Acquire(ctx)
		if err != nil {
			return domain.RawPage{}, false, &domain.AcquisitionError{
				Query: query, Page: page, Fatal: true, Cause: err,
			}
		}

		result, err := e.browser.Fetch(ctx, pageURL, fp)
		if err != nil {
			if ctx.Err() != nil {
				return domain.RawPage{}, false, ctx.Err()
			}
			fs.clearChallenges()
			fs.recordFailure(err, e.now(), backoff(e.cfg.BackoffBase, e.cfg.BackoffMax, fs.attempt, e.rng))
			continue
		}

		sig := result.Signals
		switch {
		case sig.BotChallenge:
			fs.recordChallenge()
			if fs.challenges >= 2 {
				return domain.RawPage{}, false, &domain.AcquisitionError{
					Query: query, Page: page, Fatal: true, Cause: errBotChallenge,
				}
			}
			if _, err := e.sessions.Rotate(ctx); err != nil {
				return domain.RawPage{}, false, &domain.AcquisitionError{
					Query: query, Page: page, Fatal: true, Cause: err,
				}
			}
			e.log.Warn("bot challenge, identity rotated",
				slog.String("query", query), slog.Int("page", page))
			fs.recordFailure(errBotChallenge, e.now(), backoff(e.cfg.BackoffBase, e.cfg.BackoffMax, fs.attempt, e.rng))

		case sig.RateLimited, sig.Maintenance:
			fs.clearChallenges()
			fs.recordFailure(fmt.Errorf("acquire: page unavailable (rate_limited=%v maintenance=%v)", sig.RateLimited, sig.Maintenance),
				e.now(), backoff(e.cfg.BackoffBase, e.cfg.BackoffMax, fs.attempt, e.rng))

		case sig.NoResults:
			fs.state = stateDone
			return domain.RawPage{}, true, nil

		default:
			fs.state = stateDone
			return domain.RawPage{
				Query:     query,
				Number:    page,
				URL:       pageURL,
				HTML:      result.HTML,
				FetchedAt: e.now(),
			}, false, nil
		}
	}

	fs.state = stateFailed
	return domain.RawPage{}, false, &domain.AcquisitionError{
		Query: query, Page: page, Fatal: false,
		Cause: fmt.Errorf("acquire: retries exhausted: %w", fs.lastErr),
	}
}

// searchURL builds the results URL for one query page.
func (e *Engine) searchURL(query string, page int) string {
	u := fmt.Sprintf("%s/item/search/query/%s?sort=popularity", e.cfg.BaseURL, url.PathEscape(query))
	if page > 1 {
		u += fmt.Sprintf("&page=%d", page)
	}
	return u
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
