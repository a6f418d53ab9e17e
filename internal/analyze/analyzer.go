// Package analyze turns raw listings into graded, identified cards. Each
// listing is classified by a vision model, cross-checked against the dealer
// rank embedded in the title, and resolved to a canonical catalog identity.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"cardhawk/internal/domain"
	"cardhawk/internal/match"
)

// Analysis is one successfully analyzed listing.
type Analysis struct {
	Listing       domain.RawListing
	Identity      domain.CardIdentity
	IdentityScore float64
	Grade         domain.ConditionGrade
}

// Counts tallies the listings that dropped out of analysis.
type Counts struct {
	Failed     int // classification failed after retry
	Unresolved int // no catalog identity above the similarity threshold
}

// Config holds the analyzer's tuning parameters.
type Config struct {
	Workers              int
	SimilarityThreshold  float64
	HighConfidenceCutoff float64
}

// Analyzer fans listings out to a bounded worker pool.
type Analyzer struct {
	cfg        Config
	classifier domain.Classifier
	catalog    domain.Catalog
	log        *slog.Logger
}

// New builds an Analyzer.
func New(cfg Config, classifier domain.Classifier, catalog domain.Catalog, log *slog.Logger) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		classifier: classifier,
		catalog:    catalog,
		log:        log.With(slog.String("component", "analyze")),
	}
}

// AnalyzeAll processes listings concurrently. Per-listing failures are
// counted, never abort the batch. Results come back sorted by listing ID so
// the output is stable regardless of worker scheduling.
func (a *Analyzer) AnalyzeAll(ctx context.Context, listings []domain.RawListing) ([]Analysis, Counts) {
	var (
		mu      sync.Mutex
		results []Analysis
		counts  Counts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)

	for _, listing := range listings {
		listing := listing
		g.Go(func() error {
			an, err := a.analyzeOne(gctx, listing)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, domain.ErrIdentityUnresolved):
				counts.Unresolved++
				a.log.Debug("identity unresolved", slog.String("listing_id", listing.ID))
			case err != nil:
				counts.Failed++
				a.log.Warn("analysis failed",
					slog.String("listing_id", listing.ID),
					slog.String("error", err.Error()),
				)
			default:
				results = append(results, an)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].Listing.ID < results[j].Listing.ID
	})
	return results, counts
}

func (a *Analyzer) analyzeOne(ctx context.Context, listing domain.RawListing) (Analysis, error) {
	c, err := a.classify(ctx, listing)
	if err != nil {
		return Analysis{}, err
	}

	identity, score, err := a.resolveIdentity(ctx, listing, c)
	if err != nil {
		return Analysis{}, err
	}

	grade, err := a.fuseGrade(listing, c)
	if err != nil {
		return Analysis{}, err
	}

	return Analysis{
		Listing:       listing,
		Identity:      identity,
		IdentityScore: score,
		Grade:         grade,
	}, nil
}

// classify runs the model once and retries once with the strict prompt when
// the response violates the contract.
func (a *Analyzer) classify(ctx context.Context, listing domain.RawListing) (Classification, error) {
	raw, err := a.classifier.Classify(ctx, listing.ImageURLs, listing.Title, systemPrompt)
	if err != nil {
		return Classification{}, &domain.AnalysisError{ListingID: listing.ID, Cause: err}
	}

	c, v := parseClassification(raw)
	if v == verdictValid {
		return c, nil
	}

	a.log.Debug("classification retry",
		slog.String("listing_id", listing.ID),
		slog.String("verdict", v.String()),
	)
	raw, err = a.classifier.Classify(ctx, listing.ImageURLs, listing.Title, strictPrompt)
	if err != nil {
		return Classification{}, &domain.AnalysisError{ListingID: listing.ID, Cause: err}
	}
	c, v = parseClassification(raw)
	switch v {
	case verdictValid:
		return c, nil
	case verdictEmpty:
		return Classification{}, &domain.AnalysisError{ListingID: listing.ID, Cause: domain.ErrEmptyResponse}
	default:
		return Classification{}, &domain.AnalysisError{ListingID: listing.ID, Cause: domain.ErrSchemaInvalid}
	}
}

// resolveIdentity looks the listing up in the catalog using both the title and
// the model's identification, most specific variants first.
func (a *Analyzer) resolveIdentity(ctx context.Context, listing domain.RawListing, c Classification) (domain.CardIdentity, float64, error) {
	var variants []string
	if c.CardName != "" {
		name := match.Normalize(c.CardName)
		if c.SetCode != "" {
			variants = append(variants, name+" "+match.Normalize(c.SetCode))
		}
		variants = append(variants, name)
	}
	variants = append(variants, match.Variants(listing.Title)...)

	cands, err := a.catalog.Lookup(ctx, variants)
	if err != nil {
		return domain.CardIdentity{}, 0, &domain.AnalysisError{
			ListingID: listing.ID,
			Cause:     fmt.Errorf("catalog lookup: %w", err),
		}
	}
	if len(cands) == 0 || cands[0].Score < a.cfg.SimilarityThreshold {
		return domain.CardIdentity{}, 0, &domain.AnalysisError{
			ListingID: listing.ID,
			Cause:     domain.ErrIdentityUnresolved,
		}
	}
	return cands[0].Identity, cands[0].Score, nil
}

// fuseGrade combines the photo-based grade with the dealer rank text signal.
// Agreeing signals (within one grade) keep the lower confidence of the two;
// disagreeing signals keep the photo grade but cap confidence below the
// high-confidence cutoff.
func (a *Analyzer) fuseGrade(listing domain.RawListing, c Classification) (domain.ConditionGrade, error) {
	aiGrade := domain.ParseGrade(c.Condition)
	textGrade, textConf, hasText := textSignal(listing.Title)

	if aiGrade == domain.GradeUnknown {
		if !hasText {
			return domain.ConditionGrade{}, &domain.AnalysisError{
				ListingID: listing.ID,
				Cause:     domain.ErrSchemaInvalid,
			}
		}
		return domain.ConditionGrade{
			Grade:      textGrade,
			Confidence: textConf,
			Defects:    c.ConditionNotes,
		}, nil
	}

	conf := c.Confidence
	if hasText {
		if aiGrade.Distance(textGrade) <= 1 {
			conf = min(conf, textConf)
		} else {
			conf = min(conf, a.cfg.HighConfidenceCutoff-0.05)
			a.log.Debug("grade signals disagree",
				slog.String("listing_id", listing.ID),
				slog.String("photo_grade", aiGrade.String()),
				slog.String("text_grade", textGrade.String()),
			)
		}
	}

	return domain.ConditionGrade{
		Grade:      aiGrade,
		Confidence: conf,
		Defects:    c.ConditionNotes,
	}, nil
}
