package acquire

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"
	"time"

	"cardhawk/internal/domain"
)

type scripted struct {
	result domain.FetchResult
	err    error
}

type fakeBrowser struct {
	script []scripted
	calls  int
	urls   []string
}

func (b *fakeBrowser) Fetch(_ context.Context, url string, _ domain.Fingerprint) (domain.FetchResult, error) {
	b.urls = append(b.urls, url)
	if b.calls >= len(b.script) {
		return domain.FetchResult{}, errors.New("unexpected fetch")
	}
	s := b.script[b.calls]
	b.calls++
	return s.result, s.err
}

func (b *fakeBrowser) Close() error { return nil }

type fakeSessions struct {
	rotations int
	rotateErr error
}

func (s *fakeSessions) Acquire(context.Context) (domain.Fingerprint, error) {
	return domain.Fingerprint{ID: "fp"}, nil
}

func (s *fakeSessions) Rotate(context.Context) (domain.Fingerprint, error) {
	s.rotations++
	if s.rotateErr != nil {
		return domain.Fingerprint{}, s.rotateErr
	}
	return domain.Fingerprint{ID: "fp2"}, nil
}

// nextPager reports a further page whenever the HTML mentions "next".
type nextPager struct{}

func (nextPager) HasNextPage(html string) bool { return strings.Contains(html, "next") }

func newTestEngine(b *fakeBrowser, s *fakeSessions) *Engine {
	e := NewEngine(Config{
		BaseURL:     "https://example.test",
		MaxRetries:  3,
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		BackoffBase: time.Millisecond,
		BackoffMax:  10 * time.Millisecond,
	}, b, s, nextPager{}, slog.New(slog.DiscardHandler), 1)
	e.sleep = func(context.Context, time.Duration) error { return nil }
	return e
}

func ok(html string) scripted {
	return scripted{result: domain.FetchResult{HTML: html, Status: 200}}
}

func TestSearchPaginatesUntilLastPage(t *testing.T) {
	b := &fakeBrowser{script: []scripted{ok("page1 next"), ok("page2 last")}}
	e := newTestEngine(b, &fakeSessions{})

	res, err := e.Search(context.Background(), "遊戯王", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(res.Pages))
	}
	if res.Pages[0].Number != 1 || res.Pages[1].Number != 2 {
		t.Errorf("page numbers = %d, %d", res.Pages[0].Number, res.Pages[1].Number)
	}
	if !strings.Contains(b.urls[0], "sort=popularity") {
		t.Errorf("first url missing sort: %s", b.urls[0])
	}
	if !strings.Contains(b.urls[1], "page=2") {
		t.Errorf("second url missing page param: %s", b.urls[1])
	}
}

func TestSearchStopsAtMaxPages(t *testing.T) {
	b := &fakeBrowser{script: []scripted{ok("p1 next"), ok("p2 next")}}
	e := newTestEngine(b, &fakeSessions{})

	res, err := e.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 2 || b.calls != 2 {
		t.Errorf("pages = %d, fetches = %d; want 2 and 2", len(res.Pages), b.calls)
	}
}

func TestSearchStopsOnNoResults(t *testing.T) {
	b := &fakeBrowser{script: []scripted{
		{result: domain.FetchResult{Status: 200, Signals: domain.FetchSignals{NoResults: true}}},
	}}
	e := newTestEngine(b, &fakeSessions{})

	res, err := e.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 0 || len(res.Failed) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestFetchRetriesTransportErrors(t *testing.T) {
	b := &fakeBrowser{script: []scripted{
		{err: errors.New("boom")},
		ok("p1 last"),
	}}
	e := newTestEngine(b, &fakeSessions{})

	res, err := e.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 1 {
		t.Fatalf("pages = %d, want 1 after retry", len(res.Pages))
	}
}

func TestExhaustedRetriesAreRecoverable(t *testing.T) {
	boom := scripted{err: errors.New("boom")}
	b := &fakeBrowser{script: []scripted{
		boom, boom, boom, boom, // page 1: MaxRetries+1 attempts, all fail
		ok("p2 last"), // page 2 still fetched
	}}
	e := newTestEngine(b, &fakeSessions{})

	res, err := e.Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failed) != 1 {
		t.Fatalf("failed = %d, want 1", len(res.Failed))
	}
	var aerr *domain.AcquisitionError
	if !errors.As(res.Failed[0], &aerr) || aerr.Fatal || aerr.Page != 1 {
		t.Errorf("unexpected failure record: %v", res.Failed[0])
	}
	if len(res.Pages) != 1 || res.Pages[0].Number != 2 {
		t.Errorf("expected page 2 to succeed, got %+v", res.Pages)
	}
}

func TestBotChallengeRotatesOnceThenRecovers(t *testing.T) {
	b := &fakeBrowser{script: []scripted{
		{result: domain.FetchResult{Status: 200, Signals: domain.FetchSignals{BotChallenge: true}}},
		ok("p1 last"),
	}}
	s := &fakeSessions{}
	e := newTestEngine(b, s)

	res, err := e.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatal(err)
	}
	if s.rotations != 1 {
		t.Errorf("rotations = %d, want 1", s.rotations)
	}
	if len(res.Pages) != 1 {
		t.Errorf("pages = %d, want 1", len(res.Pages))
	}
}

func TestSecondConsecutiveChallengeIsFatal(t *testing.T) {
	challenge := scripted{result: domain.FetchResult{Status: 200, Signals: domain.FetchSignals{BotChallenge: true}}}
	b := &fakeBrowser{script: []scripted{challenge, challenge, ok("never fetched")}}
	s := &fakeSessions{}
	e := newTestEngine(b, s)

	_, err := e.Search(context.Background(), "q", 3)
	var aerr *domain.AcquisitionError
	if !errors.As(err, &aerr) || !aerr.Fatal {
		t.Fatalf("expected fatal acquisition error, got %v", err)
	}
	if s.rotations != 1 {
		t.Errorf("rotations = %d, want exactly 1", s.rotations)
	}
	if b.calls != 2 {
		t.Errorf("fetches = %d, want 2 (no fetch after fatal)", b.calls)
	}
}

func TestSessionExhaustionIsFatal(t *testing.T) {
	challenge := scripted{result: domain.FetchResult{Status: 200, Signals: domain.FetchSignals{BotChallenge: true}}}
	b := &fakeBrowser{script: []scripted{challenge}}
	s := &fakeSessions{rotateErr: domain.ErrSessionExhausted}
	e := newTestEngine(b, s)

	_, err := e.Search(context.Background(), "q", 1)
	var aerr *domain.AcquisitionError
	if !errors.As(err, &aerr) || !aerr.Fatal {
		t.Fatalf("expected fatal acquisition error, got %v", err)
	}
	if !errors.Is(err, domain.ErrSessionExhausted) {
		t.Errorf("cause should unwrap to ErrSessionExhausted: %v", err)
	}
}

func TestRateLimitedRetries(t *testing.T) {
	b := &fakeBrowser{script: []scripted{
		{result: domain.FetchResult{Status: 429, Signals: domain.FetchSignals{RateLimited: true}}},
		ok("p1 last"),
	}}
	s := &fakeSessions{}
	e := newTestEngine(b, s)

	res, err := e.Search(context.Background(), "q", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pages) != 1 {
		t.Errorf("pages = %d, want 1", len(res.Pages))
	}
	if s.rotations != 0 {
		t.Errorf("rate limiting should not burn the identity, rotations = %d", s.rotations)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	base := 100 * time.Millisecond
	max := time.Second

	prevCeil := time.Duration(0)
	for attempt := 0; attempt < 8; attempt++ {
		d := backoff(base, max, attempt, rng)
		ceil := base << attempt
		if ceil > max {
			ceil = max
		}
		if d > ceil {
			t.Errorf("attempt %d: backoff %v above ceiling %v", attempt, d, ceil)
		}
		if d < ceil/2 {
			t.Errorf("attempt %d: backoff %v below half of ceiling %v", attempt, d, ceil)
		}
		if ceil < prevCeil {
			t.Errorf("ceiling shrank at attempt %d", attempt)
		}
		prevCeil = ceil
	}
}

func TestPacingDelayWithinBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	min, max := 3*time.Second, 7*time.Second
	for i := 0; i < 100; i++ {
		d := pacingDelay(min, max, rng)
		if d < min || d > max {
			t.Fatalf("delay %v out of [%v, %v]", d, min, max)
		}
	}
	if got := pacingDelay(min, min, rng); got != min {
		t.Errorf("degenerate range = %v, want %v", got, min)
	}
}
