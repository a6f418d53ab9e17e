package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"cardhawk/internal/acquire"
	"cardhawk/internal/analyze"
	"cardhawk/internal/correlate"
	"cardhawk/internal/domain"
	"cardhawk/internal/parse"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSearcher struct {
	results map[string]acquire.Result
	errs    map[string]error
	calls   []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) (acquire.Result, error) {
	f.calls = append(f.calls, query)
	return f.results[query], f.errs[query]
}

// fakeParser yields one listing per page, with the listing ID taken from the
// page HTML so tests control identity.
type fakeParser struct{}

func (fakeParser) Page(page domain.RawPage) (parse.PageResult, error) {
	if page.HTML == "broken" {
		return parse.PageResult{}, errors.New("parse: no item cards")
	}
	return parse.PageResult{
		Listings: []domain.RawListing{{
			ID:    page.HTML,
			Title: "listing " + page.HTML,
			Price: domain.Money{Amount: 1000, Currency: domain.CurrencyJPY},
			URL:   page.URL,
		}},
		Skipped: 1,
	}, nil
}

type fakeAnalyzer struct {
	counts analyze.Counts
	got    []domain.RawListing
}

func (f *fakeAnalyzer) AnalyzeAll(_ context.Context, listings []domain.RawListing) ([]analyze.Analysis, analyze.Counts) {
	f.got = listings
	out := make([]analyze.Analysis, 0, len(listings))
	for _, l := range listings {
		out = append(out, analyze.Analysis{
			Listing:       l,
			Identity:      domain.CardIdentity{Name: "Card " + l.ID},
			IdentityScore: 0.9,
			Grade:         domain.ConditionGrade{Grade: domain.GradeNearMint, Confidence: 0.8},
		})
	}
	return out, f.counts
}

type fakeCorrelator struct {
	margins map[string]float64 // listing ID -> margin; absent means no match
	counts  correlate.Counts
	runID   string
}

func (f *fakeCorrelator) Correlate(_ context.Context, runID string, analyses []analyze.Analysis, _ time.Time) ([]domain.Opportunity, correlate.Counts) {
	f.runID = runID
	var opps []domain.Opportunity
	for _, an := range analyses {
		m, ok := f.margins[an.Listing.ID]
		if !ok {
			continue
		}
		opps = append(opps, domain.Opportunity{
			ID:         "opp-" + an.Listing.ID,
			RunID:      runID,
			Listing:    an.Listing,
			Identity:   an.Identity,
			Grade:      an.Grade,
			Margin:     domain.Money{Amount: m, Currency: domain.CurrencyJPY},
			Confidence: 0.7,
		})
	}
	return opps, f.counts
}

type memSink struct {
	name    string
	err     error
	opps    []domain.Opportunity
	summary domain.RunSummary
	emits   int
}

func (s *memSink) Name() string { return s.name }

func (s *memSink) Emit(_ context.Context, opps []domain.Opportunity, summary domain.RunSummary) error {
	s.emits++
	if s.err != nil {
		return s.err
	}
	s.opps = opps
	s.summary = summary
	return nil
}

type memOppStore struct {
	inserted []domain.Opportunity
}

func (s *memOppStore) Insert(_ context.Context, o domain.Opportunity) error {
	s.inserted = append(s.inserted, o)
	return nil
}

type memNotifier struct {
	complete int
	failed   int
	hot      []string
}

func (n *memNotifier) RunComplete(context.Context, domain.RunSummary, []domain.Opportunity) error {
	n.complete++
	return nil
}

func (n *memNotifier) HotOpportunity(_ context.Context, o domain.Opportunity) error {
	n.hot = append(n.hot, o.ID)
	return nil
}

func (n *memNotifier) RunFailed(context.Context, string, error) error {
	n.failed++
	return nil
}

func page(query, id string) domain.RawPage {
	return domain.RawPage{Query: query, Number: 1, URL: "https://example.test/" + id, HTML: id}
}

func TestRunHappyPath(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]acquire.Result{
		"alpha": {Pages: []domain.RawPage{page("alpha", "a1"), page("alpha", "a2")}},
		"beta":  {Pages: []domain.RawPage{page("beta", "a1")}, Failed: []error{errors.New("boom")}},
	}}
	analyzer := &fakeAnalyzer{counts: analyze.Counts{Failed: 1, Unresolved: 2}}
	correlator := &fakeCorrelator{
		margins: map[string]float64{"a1": 5000, "a2": 800},
		counts:  correlate.Counts{NoMatch: 3, BelowFloor: 1},
	}
	sink := &memSink{name: "jsonl"}
	store := &memOppStore{}
	notifier := &memNotifier{}

	p := New(
		Config{SearchTerms: []string{"alpha", "beta"}, MaxPages: 5, HotMargin: 3000},
		Deps{
			Engine:        searcher,
			Parser:        fakeParser{},
			Analyzer:      analyzer,
			Correlator:    correlator,
			Opportunities: store,
			Sinks:         []domain.Sink{sink},
			Notifier:      notifier,
		},
		discard(),
	)

	summary, ranked, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if summary.RunID == "" || summary.RunID != correlator.runID {
		t.Errorf("run id not threaded: summary %q correlator %q", summary.RunID, correlator.runID)
	}
	if summary.PagesFetched != 3 || summary.PagesFailed != 1 {
		t.Errorf("pages = %d/%d, want 3 fetched 1 failed", summary.PagesFetched, summary.PagesFailed)
	}
	// a1 appears under both terms; the repeat is collapsed before analysis.
	if summary.ListingsParsed != 2 || summary.Deduplicated != 1 {
		t.Errorf("listings = %d dedup = %d, want 2 and 1", summary.ListingsParsed, summary.Deduplicated)
	}
	if summary.EntriesSkipped != 3 {
		t.Errorf("skipped = %d, want 3", summary.EntriesSkipped)
	}
	if summary.AnalysisFailed != 1 || summary.IdentityUnresolved != 2 {
		t.Errorf("analysis counts = %d/%d", summary.AnalysisFailed, summary.IdentityUnresolved)
	}
	if summary.NoMatch != 3 || summary.BelowFloor != 1 {
		t.Errorf("correlate counts = %d/%d", summary.NoMatch, summary.BelowFloor)
	}
	if summary.Emitted != 2 {
		t.Errorf("emitted = %d, want 2", summary.Emitted)
	}

	if len(ranked) != 2 || ranked[0].ID != "opp-a1" || ranked[1].ID != "opp-a2" {
		t.Fatalf("ranked = %+v", ranked)
	}
	if len(analyzer.got) != 2 {
		t.Errorf("analyzer saw %d listings, want 2", len(analyzer.got))
	}
	if len(sink.opps) != 2 || sink.summary.RunID != summary.RunID {
		t.Errorf("sink got %d opps, summary %q", len(sink.opps), sink.summary.RunID)
	}
	if len(store.inserted) != 2 {
		t.Errorf("store inserted %d, want 2", len(store.inserted))
	}
	if notifier.complete != 1 || notifier.failed != 0 {
		t.Errorf("notifier complete=%d failed=%d", notifier.complete, notifier.failed)
	}
	// Only the 5000-margin opportunity clears the 3000 hot threshold.
	if len(notifier.hot) != 1 || notifier.hot[0] != "opp-a1" {
		t.Errorf("hot alerts = %v", notifier.hot)
	}
}

func TestRunFatalSearchKeepsPartialResults(t *testing.T) {
	fatal := &domain.AcquisitionError{Query: "alpha", Page: 2, Fatal: true, Cause: errors.New("bot challenge")}
	searcher := &fakeSearcher{
		results: map[string]acquire.Result{
			"alpha": {Pages: []domain.RawPage{page("alpha", "a1")}},
		},
		errs: map[string]error{"alpha": fatal},
	}
	correlator := &fakeCorrelator{margins: map[string]float64{"a1": 2000}}
	sink := &memSink{name: "jsonl"}
	notifier := &memNotifier{}

	p := New(
		Config{SearchTerms: []string{"alpha", "beta"}, MaxPages: 5},
		Deps{
			Engine:     searcher,
			Parser:     fakeParser{},
			Analyzer:   &fakeAnalyzer{},
			Correlator: correlator,
			Sinks:      []domain.Sink{sink},
			Notifier:   notifier,
		},
		discard(),
	)

	summary, ranked, err := p.Run(context.Background())
	if !errors.Is(err, fatal) {
		t.Fatalf("err = %v, want the fatal acquisition error", err)
	}
	if len(searcher.calls) != 1 {
		t.Errorf("searches = %v, want acquisition to stop after alpha", searcher.calls)
	}
	// The page fetched before the abort still produces output.
	if len(ranked) != 1 || summary.Emitted != 1 {
		t.Errorf("ranked = %d emitted = %d, want 1 and 1", len(ranked), summary.Emitted)
	}
	if sink.emits != 1 {
		t.Errorf("sink emits = %d, want 1", sink.emits)
	}
	if notifier.failed != 1 || notifier.complete != 0 {
		t.Errorf("notifier complete=%d failed=%d, want failure event only", notifier.complete, notifier.failed)
	}
}

func TestRunUnparseablePageCounted(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]acquire.Result{
		"alpha": {Pages: []domain.RawPage{page("alpha", "broken"), page("alpha", "a1")}},
	}}
	p := New(
		Config{SearchTerms: []string{"alpha"}, MaxPages: 5},
		Deps{
			Engine:     searcher,
			Parser:     fakeParser{},
			Analyzer:   &fakeAnalyzer{},
			Correlator: &fakeCorrelator{},
		},
		discard(),
	)

	summary, _, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if summary.PagesFetched != 2 || summary.PagesFailed != 1 {
		t.Errorf("pages = %d/%d, want 2 fetched 1 failed", summary.PagesFetched, summary.PagesFailed)
	}
	if summary.ListingsParsed != 1 {
		t.Errorf("listings = %d, want 1", summary.ListingsParsed)
	}
}

func TestRunSinkFailureReported(t *testing.T) {
	searcher := &fakeSearcher{results: map[string]acquire.Result{
		"alpha": {Pages: []domain.RawPage{page("alpha", "a1")}},
	}}
	bad := &memSink{name: "csv", err: errors.New("disk full")}
	good := &memSink{name: "jsonl"}

	p := New(
		Config{SearchTerms: []string{"alpha"}, MaxPages: 5},
		Deps{
			Engine:     searcher,
			Parser:     fakeParser{},
			Analyzer:   &fakeAnalyzer{},
			Correlator: &fakeCorrelator{margins: map[string]float64{"a1": 100}},
			Sinks:      []domain.Sink{bad, good},
		},
		discard(),
	)

	_, _, err := p.Run(context.Background())
	if err == nil || !errors.Is(err, bad.err) {
		t.Fatalf("err = %v, want sink failure", err)
	}
	if good.emits != 1 || len(good.opps) != 1 {
		t.Errorf("good sink emits=%d opps=%d, want it unaffected", good.emits, len(good.opps))
	}
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	searcher := &fakeSearcher{errs: map[string]error{"alpha": ctx.Err()}}
	notifier := &memNotifier{}
	p := New(
		Config{SearchTerms: []string{"alpha"}, MaxPages: 5},
		Deps{
			Engine:     searcher,
			Parser:     fakeParser{},
			Analyzer:   &fakeAnalyzer{},
			Correlator: &fakeCorrelator{},
			Notifier:   notifier,
		},
		discard(),
	)

	_, _, err := p.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if notifier.complete != 0 && notifier.failed != 0 {
		t.Error("no notifications expected on cancellation")
	}
}
