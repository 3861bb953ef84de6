// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser drives a real Chrome/Chromium window so a user can pass
// publisher logins and bot challenges, then harvests PDF candidates from the
// live page and downloads them with the page's cookies.
package browser

import (
	"context"
	"time"

	"github.com/pdiddy/pdf-library/internal/acquire"
)

// Outcome is the result class of one browser-assisted resolution.
type Outcome string

const (
	OutcomeResolved    Outcome = "resolved"
	OutcomeUnresolved  Outcome = "unresolved"
	OutcomeError       Outcome = "error"
	OutcomeUnavailable Outcome = "unavailable"
)

// Request describes one entry to resolve in the browser.
type Request struct {
	DOI      string
	EntryURL string

	// Seeds are the candidates direct download already tried; they are
	// retried with the browser's cookies.
	Seeds []acquire.Candidate

	// Wait is how long to keep polling the page. Values under five seconds
	// are raised to five.
	Wait time.Duration
}

// Result reports what a resolution attempt found.
type Result struct {
	Outcome        Outcome
	Fetched        *acquire.Fetched
	Provider       string
	CandidateCount int
	TriedCount     int
	PageURL        string
	Err            error
}

// Assist resolves entries through an interactive browser. Implementations
// are used sequentially by a single run.
type Assist interface {
	Resolve(ctx context.Context, req Request) Result
	Close() error
}

// Unavailable is the Assist used when no browser could be started. Every
// request reports OutcomeUnavailable with the start error.
type Unavailable struct {
	Err error
}

func (u Unavailable) Resolve(context.Context, Request) Result {
	return Result{Outcome: OutcomeUnavailable, Err: u.Err}
}

func (u Unavailable) Close() error { return nil }
