// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/pdiddy/pdf-library/internal/acquire"
	"github.com/pdiddy/pdf-library/internal/logger"
)

// Options configures a browser session.
type Options struct {
	// ProfilesDir holds one persistent user-data directory per profile.
	ProfilesDir string
	Profile     string
	Headed      bool

	// Timeout bounds navigation, page reads and each candidate download.
	Timeout time.Duration

	// Fetcher performs the cookie-authenticated downloads and applies the
	// size and PDF checks.
	Fetcher *acquire.Fetcher

	Log *logger.Logger
}

// page is the slice of a live browser tab the resolver needs.
type page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Links(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, url string) (*acquire.Fetched, error)
	Close() error
}

// Session is a running browser with a persistent profile. It implements
// Assist.
type Session struct {
	page  page
	log   *logger.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// startupTimeout is the least time Start allows Chrome to come up.
const startupTimeout = 30 * time.Second

// Start launches Chrome/Chromium with the configured profile. The browser
// lives until Close; ctx only bounds startup.
func Start(ctx context.Context, opts Options) (*Session, error) {
	bin, err := DetectBrowser()
	if err != nil {
		return nil, err
	}
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("browser session requires a fetcher")
	}

	profileDir := ProfileDir(opts.ProfilesDir, opts.Profile)
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating browser profile %s: %w", profileDir, err)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(bin),
		chromedp.UserDataDir(profileDir),
		chromedp.Flag("headless", !opts.Headed),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run binds the browser's lifetime to browserCtx, so startup is
	// bounded by cancelling browserCtx itself.
	watchdog := time.AfterFunc(max(opts.Timeout, startupTimeout), browserCancel)
	stopWatch := context.AfterFunc(ctx, browserCancel)

	var userAgent string
	err = chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Evaluate(`navigator.userAgent`, &userAgent),
	)
	inTime := watchdog.Stop()
	notCancelled := stopWatch()
	if err == nil && !(inTime && notCancelled) {
		err = fmt.Errorf("startup interrupted")
		if !notCancelled && ctx.Err() != nil {
			err = ctx.Err()
		}
	}
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("starting %s: %w", bin, err)
	}

	log := logger.OrNop(opts.Log)
	log.Info("browser assist started", "browser", bin, "profile", profileDir, "headed", opts.Headed)

	p := &chromePage{
		ctx:       browserCtx,
		timeout:   opts.Timeout,
		fetcher:   opts.Fetcher,
		userAgent: userAgent,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
	}
	return newSession(p, log), nil
}

func newSession(p page, log *logger.Logger) *Session {
	return &Session{
		page:  p,
		log:   logger.OrNop(log),
		now:   time.Now,
		sleep: sleepContext,
	}
}

// Close shuts the browser down. The profile directory is kept.
func (s *Session) Close() error {
	return s.page.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// chromePage implements page on a chromedp tab.
type chromePage struct {
	ctx       context.Context
	timeout   time.Duration
	fetcher   *acquire.Fetcher
	userAgent string
	cancel    func()
}

// run executes actions on the tab, bounded by the page timeout and by the
// caller's ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(c, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, chromedp.Evaluate(`document.documentElement ? document.documentElement.outerHTML : ""`, &html))
	return html, err
}

func (p *chromePage) Links(ctx context.Context) ([]string, error) {
	var hrefs []string
	err := p.run(ctx, chromedp.Evaluate(`Array.from(document.querySelectorAll('a[href]'), a => a.href)`, &hrefs))
	return hrefs, err
}

// Fetch downloads url outside the tab, replaying the browser's cookies for
// that URL and its User-Agent so institutional sessions carry over.
func (p *chromePage) Fetch(ctx context.Context, url string) (*acquire.Fetched, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().WithUrls([]string{url}).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("reading browser cookies: %w", err)
	}

	header := http.Header{"Accept-Language": {"en-US,en;q=0.9"}}
	if p.userAgent != "" {
		header.Set("User-Agent", p.userAgent)
	}
	if len(cookies) > 0 {
		pairs := make([]string, 0, len(cookies))
		for _, c := range cookies {
			pairs = append(pairs, c.Name+"="+c.Value)
		}
		header.Set("Cookie", strings.Join(pairs, "; "))
	}
	return p.fetcher.FetchWith(ctx, url, header)
}

func (p *chromePage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
