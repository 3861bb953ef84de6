// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/pdf-library/internal/acquire"
)

const (
	minWait      = 5 * time.Second
	pollInterval = 2 * time.Second
)

// Resolve navigates to the entry's seed page and polls it until a candidate
// downloads as the entry's PDF or the wait window closes. The seed is the
// entry URL, else the DOI resolver URL, else the first seed candidate.
// Navigation errors are ignored; the user may still be completing a login.
func (s *Session) Resolve(ctx context.Context, req Request) Result {
	seed := strings.TrimSpace(req.EntryURL)
	if seed == "" && req.DOI != "" {
		seed = acquire.DOIResolverURL(req.DOI)
	}
	if seed == "" && len(req.Seeds) > 0 {
		seed = req.Seeds[0].URL
	}
	if seed == "" {
		return Result{Outcome: OutcomeUnresolved}
	}

	if err := s.page.Navigate(ctx, seed); err != nil {
		s.log.Debug("browser navigation did not complete", "url", seed, "error", err)
	}

	queue := acquire.NewCandidateList()
	queue.AddAll(req.Seeds)
	tried := map[string]bool{}
	res := Result{Outcome: OutcomeUnresolved}
	fail := func(err error) Result {
		res.Outcome = OutcomeError
		res.Err = err
		res.PageURL = s.currentURL(ctx)
		return res
	}

	deadline := s.now().Add(max(req.Wait, minWait))
	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		found, err := s.harvest(ctx, seed, req.DOI)
		if err != nil {
			return fail(err)
		}
		queue.AddAll(found)
		res.CandidateCount = queue.Len()

		for i := 0; i < queue.Len(); i++ {
			c := queue.At(i)
			if tried[c.URL] {
				continue
			}
			tried[c.URL] = true
			res.TriedCount = len(tried)

			fetched, err := s.page.Fetch(ctx, c.URL)
			if err != nil {
				if ctx.Err() != nil {
					return fail(ctx.Err())
				}
				continue
			}
			if !acquire.IsPDFLikelyForDOI(fetched.Body, fetched.FinalURL, req.DOI) {
				s.log.Debug("browser candidate rejected by DOI check", "url", fetched.FinalURL, "doi", req.DOI)
				continue
			}
			res.Outcome = OutcomeResolved
			res.Fetched = fetched
			res.Provider = c.Provider
			res.PageURL = s.currentURL(ctx)
			return res
		}

		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			break
		}
		if err := s.sleep(ctx, min(pollInterval, remaining)); err != nil {
			return fail(err)
		}
	}

	res.PageURL = s.currentURL(ctx)
	return res
}

// harvest collects candidates from the current page state: its URL, the
// seed, publisher templates, PDF links and IEEE article numbers in the DOM,
// and live anchors that look like publisher PDF links. Only a failure to
// read the page URL is an error.
func (s *Session) harvest(ctx context.Context, seed, doi string) ([]acquire.Candidate, error) {
	pageURL, err := s.page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading browser page: %w", err)
	}

	out := []acquire.Candidate{
		{URL: pageURL, Provider: "browser_page"},
		{URL: seed, Provider: "browser_seed"},
	}
	out = append(out, acquire.PublisherCandidates(doi, "browser_")...)

	html, err := s.page.HTML(ctx)
	if err != nil {
		s.log.Debug("reading page HTML failed", "url", pageURL, "error", err)
	}
	if html != "" {
		for _, link := range acquire.ExtractPDFLinks([]byte(html), pageURL) {
			out = append(out, acquire.Candidate{URL: link, Provider: "browser_html"})
		}
		for _, n := range acquire.IEEEArnumbers(pageURL, html) {
			out = append(out, acquire.IEEEStampCandidates(n, "browser_")...)
		}
	}

	hrefs, err := s.page.Links(ctx)
	if err != nil {
		s.log.Debug("reading page links failed", "url", pageURL, "error", err)
	}
	for _, href := range hrefs {
		if acquire.HasPublisherHint(href) {
			out = append(out, acquire.Candidate{URL: href, Provider: "browser_link"})
		}
	}
	return out, nil
}

func (s *Session) currentURL(ctx context.Context) string {
	u, err := s.page.URL(context.WithoutCancel(ctx))
	if err != nil {
		return ""
	}
	return u
}
