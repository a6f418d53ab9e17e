// Package browser implements the browser-automation capability on top of
// chromedp. One Chrome instance is kept per browsing identity; rotating to a
// new fingerprint tears the old browser down and starts a fresh one.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"cardhawk/internal/domain"
)

// Options configures the Chrome browser.
type Options struct {
	Headless         bool
	NavTimeout       time.Duration
	PageReadyTimeout time.Duration
}

// Chrome drives a headless Chrome via chromedp and satisfies domain.Browser.
type Chrome struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	fpID      string
	allocCtx  context.Context
	tabCtx    context.Context
	cancelAll func()
}

var _ domain.Browser = (*Chrome)(nil)

// New returns a Chrome that lazily starts the browser process on first Fetch.
func New(opts Options, log *slog.Logger) *Chrome {
	return &Chrome{
		opts: opts,
		log:  log.With(slog.String("component", "browser")),
	}
}

// Fetch navigates to url under the given fingerprint and returns the rendered
// page HTML together with the page-state signals detected in it. Switching to
// a different fingerprint restarts the browser with the new identity.
func (c *Chrome) Fetch(ctx context.Context, url string, fp domain.Fingerprint) (domain.FetchResult, error) {
	c.mu.Lock()
	if err := c.ensureSessionLocked(fp); err != nil {
		c.mu.Unlock()
		return domain.FetchResult{}, err
	}
	tabCtx := c.tabCtx
	c.mu.Unlock()

	navCtx, cancel := context.WithTimeout(tabCtx, c.opts.NavTimeout)
	defer cancel()

	// Capture the HTTP status of the main document.
	var status int
	chromedp.ListenTarget(navCtx, func(ev interface{}) {
		if resp, ok := ev.(*network.EventResponseReceived); ok {
			if resp.Type == network.ResourceTypeDocument && status == 0 {
				status = int(resp.Response.Status)
			}
		}
	})

	if err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(url),
	); err != nil {
		// Honor the caller's cancellation over our own nav timeout.
		if ctx.Err() != nil {
			return domain.FetchResult{}, ctx.Err()
		}
		return domain.FetchResult{}, fmt.Errorf("browser: navigate %s: %w", url, err)
	}

	c.dismissCookiePopup(navCtx)
	c.waitForResults(navCtx)

	var html string
	if err := chromedp.Run(navCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return domain.FetchResult{}, ctx.Err()
		}
		return domain.FetchResult{}, fmt.Errorf("browser: read page %s: %w", url, err)
	}

	result := domain.FetchResult{
		HTML:    html,
		Status:  status,
		Signals: DetectSignals(html, status),
	}
	c.log.Debug("page fetched",
		slog.String("url", url),
		slog.Int("status", status),
		slog.Bool("bot_challenge", result.Signals.BotChallenge),
	)
	return result, nil
}

// Close shuts down the browser process if one is running.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelAll != nil {
		c.cancelAll()
		c.cancelAll = nil
		c.fpID = ""
	}
	return nil
}

// ensureSessionLocked starts (or restarts) the browser so it presents the
// given fingerprint. Callers must hold c.mu.
func (c *Chrome) ensureSessionLocked(fp domain.Fingerprint) error {
	if c.cancelAll != nil && c.fpID == fp.ID {
		return nil
	}
	if c.cancelAll != nil {
		c.cancelAll()
		c.cancelAll = nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", fp.Locale),
		chromedp.Flag("log-level", "3"),
		chromedp.UserAgent(fp.UserAgent),
		chromedp.WindowSize(fp.ViewportW, fp.ViewportH),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	c.allocCtx = allocCtx
	c.tabCtx = tabCtx
	c.cancelAll = func() {
		cancelTab()
		cancelAlloc()
	}
	c.fpID = fp.ID
	c.log.Info("browser session started", slog.String("fingerprint_id", fp.ID))
	return nil
}

// dismissCookiePopup clicks the consent button when the popup is present.
// Failure is ignored: the popup only appears on the first page of a session.
func (c *Chrome) dismissCookiePopup(ctx context.Context) {
	_ = chromedp.Run(ctx, chromedp.Evaluate(`
		(function() {
			var btn = document.querySelector('div.cookiePolicyPopup__buttonWrapper button.accept_cookie');
			if (btn) btn.click();
			return true;
		})()
	`, nil))
}

// waitForResults waits until listing cards render, falling back to a short
// sleep when the page has none (no-results and challenge pages render fast).
func (c *Chrome) waitForResults(ctx context.Context) {
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.PageReadyTimeout)
	defer cancel()
	if err := chromedp.Run(waitCtx, chromedp.WaitReady("li.itemCard", chromedp.ByQuery)); err != nil {
		_ = chromedp.Run(ctx, chromedp.Sleep(2*time.Second))
	}
}
