// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdffetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-library/internal/acquire"
	"github.com/pdiddy/pdf-library/internal/browser"
	"github.com/pdiddy/pdf-library/internal/library"
	"github.com/pdiddy/pdf-library/pkg/types"
)

// fakeSource returns scripted candidates keyed by entry ID and page URL.
type fakeSource struct {
	generate  map[string][]acquire.Candidate // entry ID -> candidates
	discover  map[string][]acquire.Candidate // page URL -> candidates
	discovers []string
}

func (s *fakeSource) Generate(_ context.Context, entry types.BibEntry, _ string) []acquire.Candidate {
	return s.generate[entry.Get("ID")]
}

func (s *fakeSource) Discover(_ context.Context, pageURL, _, _ string) []acquire.Candidate {
	s.discovers = append(s.discovers, pageURL)
	return s.discover[pageURL]
}

type fakeDownloader struct {
	pdfs  map[string]*acquire.Fetched
	calls []string
}

func (d *fakeDownloader) Fetch(_ context.Context, url string) (*acquire.Fetched, error) {
	d.calls = append(d.calls, url)
	if f, ok := d.pdfs[url]; ok {
		return f, nil
	}
	return nil, acquire.ErrNotPDF
}

type failingSource struct{ t *testing.T }

func (s failingSource) Generate(context.Context, types.BibEntry, string) []acquire.Candidate {
	s.t.Fatal("candidate generation must not run")
	return nil
}

func (s failingSource) Discover(context.Context, string, string, string) []acquire.Candidate {
	s.t.Fatal("landing discovery must not run")
	return nil
}

// cancellingDownloader cancels the run on its first call.
type cancellingDownloader struct {
	cancel context.CancelFunc
	calls  int
}

func (d *cancellingDownloader) Fetch(context.Context, string) (*acquire.Fetched, error) {
	d.calls++
	d.cancel()
	return nil, acquire.ErrNotPDF
}

type failingDownloader struct{ t *testing.T }

func (d failingDownloader) Fetch(context.Context, string) (*acquire.Fetched, error) {
	d.t.Fatal("download must not run")
	return nil, nil
}

type fakeAssist struct {
	result   browser.Result
	requests []browser.Request
	closed   bool
}

func (a *fakeAssist) Resolve(_ context.Context, req browser.Request) browser.Result {
	a.requests = append(a.requests, req)
	return a.result
}

func (a *fakeAssist) Close() error {
	a.closed = true
	return nil
}

type harness struct {
	engine   *Engine
	lib      *library.Library
	dir      string
	messages []string
	starts   int
}

func newHarness(t *testing.T, src CandidateSource, dl Downloader, assist browser.Assist, startErr error) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{dir: dir, lib: library.Open(filepath.Join(dir, "pdf_library"))}
	e := New(h.lib, nil)
	e.Progress = func(done, total int, msg string) { h.messages = append(h.messages, msg) }
	e.NewSource = func(types.FetchConfig) CandidateSource { return src }
	e.NewDownloader = func(types.FetchConfig) Downloader { return dl }
	e.StartAssist = func(context.Context, types.FetchConfig) (browser.Assist, error) {
		h.starts++
		if startErr != nil {
			return nil, startErr
		}
		if assist == nil {
			t.Fatal("browser assist must not start")
		}
		return assist, nil
	}
	h.engine = e
	return h
}

func (h *harness) record(t *testing.T, key string) *types.PdfRecord {
	t.Helper()
	idx, err := h.lib.Load()
	require.NoError(t, err)
	rec, ok := idx.Get(key)
	require.True(t, ok, "no record for %s", key)
	return rec
}

func testConfig() types.FetchConfig {
	cfg := types.DefaultFetchConfig()
	cfg.BrowserAssist.Enabled = false
	cfg.Local.WorkDir = os.TempDir()
	cfg.ProjectID = "proj-1"
	cfg.StepID = "step-pdf"
	return cfg
}

func pdf(url, text string) *acquire.Fetched {
	return &acquire.Fetched{Body: []byte("%PDF-1.5\n" + text), FinalURL: url, ContentType: "application/pdf"}
}

func TestRunDownloadDisabled(t *testing.T) {
	h := newHarness(t, failingSource{t}, failingDownloader{t}, nil, nil)
	cfg := testConfig()
	cfg.DownloadEnabled = false
	cfg.BrowserAssist.Enabled = true

	res, err := h.engine.Run(context.Background(), []types.BibEntry{
		{"ID": "smith2020", "doi": "https://doi.org/10.1000/ABC123", "title": "A {Study}"},
	}, cfg)
	require.NoError(t, err)

	require.Len(t, res.Outputs.PDFMissing, 1)
	assert.Len(t, res.Outputs.Passed, 1)
	require.Len(t, res.Changes, 1)
	c := res.Changes[0]
	assert.Equal(t, types.ActionKeep, c.Action)
	assert.Equal(t, types.ChangePDFMissingPassed, c.Reason)
	assert.Equal(t, types.ReasonPDFNotResolved, c.Details.MissingReason)
	assert.Equal(t, types.ReasonPDFNotResolved.Label(), c.Details.MissingReasonLabel)
	assert.NotEmpty(t, c.Details.MissingReasonHint)
	assert.False(t, c.Details.BrowserAssistUsed)
	assert.Equal(t, "doi:10.1000/abc123", c.Details.CacheKey)
	assert.Equal(t, 0, h.starts)

	rec := h.record(t, "doi:10.1000/abc123")
	assert.Equal(t, types.StatusMissing, rec.Status)
	assert.Equal(t, types.ReasonPDFNotResolved, rec.MissingReason)
	assert.Equal(t, 1, rec.FailureCount)
	assert.Equal(t, "A Study", rec.Title)
	assert.Equal(t, []string{"proj-1"}, rec.ProjectIDs)
	assert.Equal(t, []string{"step-pdf"}, rec.StepIDs)
	assert.Equal(t, []string{"smith2020"}, rec.EntryKeys)
	assert.Equal(t, rec.ID, c.Details.PDFRecordID)
}

func TestRunCacheHitSkipsNetwork(t *testing.T) {
	h := newHarness(t, failingSource{t}, failingDownloader{t}, nil, nil)
	key := "doi:10.1000/abc123"

	idx, err := h.lib.Load()
	require.NoError(t, err)
	path, err := h.lib.WriteManaged(key, []byte("%PDF-1.5 doi:10.1000/abc123"))
	require.NoError(t, err)
	idx.MarkFound(key, library.FoundUpdate{
		PDFPath:     path,
		ManagedFile: true,
		Source:      types.SourceDownload,
		SourceURL:   "https://example.com/a.pdf",
		Provider:    "openalex",
		ContentType: "application/pdf",
	})
	require.NoError(t, h.lib.Save(idx))

	res, err := h.engine.Run(context.Background(), []types.BibEntry{{"ID": "a", "DOI": "10.1000/ABC123"}}, testConfig())
	require.NoError(t, err)

	require.Len(t, res.Outputs.PDFFound, 1)
	d := res.Changes[0].Details
	assert.Equal(t, types.StatusFound, d.PDFStatus)
	assert.Equal(t, types.SourceCache, d.Source)
	assert.Equal(t, "openalex", d.Provider)
	assert.Equal(t, "https://example.com/a.pdf", d.SourceURL)
	assert.Equal(t, 1, res.Details.CacheHits)

	rec := h.record(t, key)
	assert.True(t, rec.ManagedFile)
	assert.Equal(t, types.SourceCache, rec.Source)
	assert.Equal(t, []string{"a"}, rec.EntryKeys)
}

func TestRunCacheRejectedForWrongDOI(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, src, &fakeDownloader{}, nil, nil)
	key := "doi:10.1000/abc123"

	idx, err := h.lib.Load()
	require.NoError(t, err)
	path, err := h.lib.WriteManaged(key, []byte("%PDF-1.5 an unrelated paper"))
	require.NoError(t, err)
	idx.MarkFound(key, library.FoundUpdate{PDFPath: path, ManagedFile: true, Source: types.SourceDownload, SourceURL: "https://example.com/x.pdf"})
	require.NoError(t, h.lib.Save(idx))

	res, err := h.engine.Run(context.Background(), []types.BibEntry{{"ID": "a", "doi": "10.1000/abc123"}}, testConfig())
	require.NoError(t, err)

	assert.Len(t, res.Outputs.PDFMissing, 1)
	assert.Equal(t, 0, res.Details.CacheHits)
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "a rejected cache file is not deleted")
}

func TestRunPDFOnlyPartition(t *testing.T) {
	src := &fakeSource{generate: map[string][]acquire.Candidate{
		"e1": {{URL: "https://example.com/one.pdf", Provider: "entry_url_pdf"}},
		"e2": {{URL: "https://example.com/two", Provider: "entry_url"}},
	}}
	dl := &fakeDownloader{pdfs: map[string]*acquire.Fetched{
		"https://example.com/one.pdf": pdf("https://cdn.example.com/one.pdf", "paper one"),
	}}
	h := newHarness(t, src, dl, nil, nil)
	cfg := testConfig()
	cfg.PassMode = types.PassPDFOnly

	entries := []types.BibEntry{
		{"ID": "e1", "url": "https://example.com/one.pdf"},
		{"ID": "e2", "url": "https://example.com/two"},
		{"title": "No identifiers at all"},
	}
	res, err := h.engine.Run(context.Background(), entries, cfg)
	require.NoError(t, err)

	assert.Len(t, res.Outputs.Passed, 1)
	assert.Len(t, res.Outputs.PDFFound, 1)
	assert.Len(t, res.Outputs.PDFMissing, 2)
	assert.Equal(t, types.StepStats{InputCount: 3, PassedCount: 1, RemovedCount: 2}, res.Details.Stats)
	require.Len(t, res.Changes, 3)
	assert.Equal(t, types.ActionKeep, res.Changes[0].Action)
	assert.Equal(t, types.ActionRemove, res.Changes[1].Action)
	assert.Equal(t, types.ChangePDFMissing, res.Changes[1].Reason)
	assert.Equal(t, "row_2", res.Changes[2].EntryKey)
	assert.Empty(t, res.Changes[2].Details.CacheKey)
	assert.Empty(t, res.Changes[2].Details.PDFRecordID)

	all := res.WithPassMode(types.PassAll)
	assert.Len(t, all.Outputs.Passed, 3)
	assert.Equal(t, types.ChangePDFMissingPassed, all.Changes[1].Reason)
	assert.Equal(t, 0, all.Details.Stats.RemovedCount)

	d := res.Changes[0].Details
	assert.Equal(t, types.SourceDownload, d.Source)
	assert.Equal(t, "entry_url_pdf", d.Provider)
	assert.Equal(t, "https://cdn.example.com/one.pdf", d.SourceURL)
	assert.Equal(t, []string{"entry_url_pdf"}, d.AttemptedProviders)
	assert.Equal(t, 1, res.Details.DownloadedCount)

	key := "url:https://example.com/one.pdf"
	rec := h.record(t, key)
	assert.True(t, rec.ManagedFile)
	assert.Equal(t, h.lib.ManagedPath(key), rec.PDFPath)
	body, err := os.ReadFile(rec.PDFPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "%PDF-"))
	require.NotNil(t, rec.SizeBytes)
	assert.Equal(t, int64(len(body)), *rec.SizeBytes)
}

func TestRunLandingDiscovery(t *testing.T) {
	doiURL := "https://doi.org/10.1000%2Fabc123"
	src := &fakeSource{
		generate: map[string][]acquire.Candidate{"a": {
			{URL: doiURL, Provider: "doi_resolver"},
			{URL: "https://mirror.example.org/wrong.pdf", Provider: "openalex"},
		}},
		discover: map[string][]acquire.Candidate{doiURL: {
			{URL: "https://publisher.example.com/article/abc123", Provider: "doi_resolver_landing"},
			{URL: "https://publisher.example.com/pdf/abc123.pdf", Provider: "doi_resolver_html"},
		}},
	}
	dl := &fakeDownloader{pdfs: map[string]*acquire.Fetched{
		"https://mirror.example.org/wrong.pdf":         pdf("https://mirror.example.org/wrong.pdf", "10.9999/other"),
		"https://publisher.example.com/pdf/abc123.pdf": pdf("https://publisher.example.com/pdf/abc123.pdf", "body"),
	}}
	h := newHarness(t, src, dl, nil, nil)

	res, err := h.engine.Run(context.Background(), []types.BibEntry{{"ID": "a", "doi": "10.1000/abc123"}}, testConfig())
	require.NoError(t, err)

	d := res.Changes[0].Details
	require.Equal(t, types.StatusFound, d.PDFStatus)
	assert.Equal(t, "doi_resolver_html", d.Provider)
	assert.Equal(t, []string{"doi_resolver", "doi_resolver_html", "doi_resolver_landing", "openalex"}, d.AttemptedProviders)
	assert.Equal(t, 4, d.CandidateCount)
	// The wrong PDF is rejected without expanding it; the landing page
	// fails and is expanded once.
	assert.Equal(t, []string{doiURL, "https://publisher.example.com/article/abc123"}, src.discovers)
}

func TestRunLocalFile(t *testing.T) {
	h := newHarness(t, failingSource{t}, failingDownloader{t}, nil, nil)
	work := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(work, "paper.pdf"), []byte("%PDF-1.4"), 0o644))
	cfg := testConfig()
	cfg.Local.WorkDir = work

	res, err := h.engine.Run(context.Background(), []types.BibEntry{
		{"ID": "loc", "doi": "10.1000/local1", "file": "paper.pdf:PDF"},
	}, cfg)
	require.NoError(t, err)

	d := res.Changes[0].Details
	assert.Equal(t, types.SourceLocalFile, d.Source)
	assert.Equal(t, "local", d.Provider)
	assert.Equal(t, types.ProviderLocal, d.ProviderCategory)
	assert.Equal(t, filepath.Join(work, "paper.pdf"), d.PDFPath)
	assert.Equal(t, 1, res.Details.LocalHits)

	rec := h.record(t, "doi:10.1000/local1")
	assert.False(t, rec.ManagedFile)
	assert.Equal(t, types.SourceLocalFile, rec.Source)
	assert.Equal(t, "application/pdf", rec.ContentType)
}

func TestRunBrowserUnavailable(t *testing.T) {
	src := &fakeSource{}
	h := newHarness(t, src, &fakeDownloader{}, nil, errors.New("no chrome"))
	cfg := testConfig()
	cfg.BrowserAssist.Enabled = true

	res, err := h.engine.Run(context.Background(), []types.BibEntry{
		{"ID": "a", "doi": "10.1000/aaa111"},
		{"ID": "b", "doi": "10.1000/bbb222"},
	}, cfg)
	require.NoError(t, err)

	assert.Equal(t, 1, h.starts)
	first, second := res.Changes[0].Details, res.Changes[1].Details
	assert.Equal(t, types.ReasonBrowserAssistUnavailable, first.MissingReason)
	assert.Equal(t, "unavailable", first.BrowserAssistResult)
	assert.True(t, first.BrowserAssistUsed)
	assert.Equal(t, types.ReasonPDFNotResolved, second.MissingReason)
	assert.False(t, second.BrowserAssistUsed)

	summary := res.Details.BrowserAssist
	assert.True(t, summary.Enabled)
	require.NotNil(t, summary.Available)
	assert.False(t, *summary.Available)
	assert.Equal(t, 1, summary.AttemptedEntries)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, "no chrome", summary.LastError)
}

func TestRunBrowserResolved(t *testing.T) {
	seed := acquire.Candidate{URL: "https://publisher.example.com/paper", Provider: "entry_url"}
	src := &fakeSource{generate: map[string][]acquire.Candidate{"p": {seed}}}
	assist := &fakeAssist{result: browser.Result{
		Outcome:        browser.OutcomeResolved,
		Fetched:        pdf("https://publisher.example.com/download/paper.pdf", "text"),
		Provider:       "browser_link",
		CandidateCount: 5,
		TriedCount:     3,
		PageURL:        "https://publisher.example.com/paper",
	}}
	h := newHarness(t, src, &fakeDownloader{}, assist, nil)
	cfg := testConfig()
	cfg.BrowserAssist.Enabled = true

	res, err := h.engine.Run(context.Background(), []types.BibEntry{{"ID": "p", "url": "https://publisher.example.com/paper"}}, cfg)
	require.NoError(t, err)

	d := res.Changes[0].Details
	require.Equal(t, types.StatusFound, d.PDFStatus)
	assert.Equal(t, types.SourceBrowserAssist, d.Source)
	assert.Equal(t, "browser_link", d.Provider)
	assert.Equal(t, types.ProviderBrowser, d.ProviderCategory)
	assert.Equal(t, "resolved", d.BrowserAssistResult)
	assert.Equal(t, 5, d.BrowserAssistCandidates)
	assert.Equal(t, 3, d.BrowserAssistTried)
	assert.Equal(t, "https://publisher.example.com/paper", d.BrowserAssistPageURL)
	assert.Equal(t, 1, res.Details.BrowserAssist.ResolvedEntries)
	assert.Equal(t, 1, res.Details.DownloadedCount)
	assert.True(t, assist.closed)

	require.Len(t, assist.requests, 1)
	req := assist.requests[0]
	assert.Equal(t, "https://publisher.example.com/paper", req.EntryURL)
	assert.Equal(t, []acquire.Candidate{seed}, req.Seeds)
	assert.Equal(t, types.DefaultBrowserWait, req.Wait)

	rec := h.record(t, "url:https://publisher.example.com/paper")
	assert.Equal(t, types.SourceBrowserAssist, rec.Source)
	assert.True(t, rec.ManagedFile)
}

func TestRunBrowserWaitSameForEveryEntry(t *testing.T) {
	assist := &fakeAssist{result: browser.Result{Outcome: browser.OutcomeUnresolved}}
	h := newHarness(t, &fakeSource{}, &fakeDownloader{}, assist, nil)
	cfg := testConfig()
	cfg.BrowserAssist.Enabled = true
	cfg.BrowserAssist.Wait = 45 * time.Second

	_, err := h.engine.Run(context.Background(), []types.BibEntry{
		{"ID": "a", "doi": "10.1000/first1"},
		{"ID": "b", "doi": "10.1000/second2"},
	}, cfg)
	require.NoError(t, err)

	require.Len(t, assist.requests, 2)
	for _, req := range assist.requests {
		assert.Equal(t, 45*time.Second, req.Wait)
	}
	assert.Equal(t, 1, h.starts)
}

func TestRunBrowserOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		outcome    browser.Outcome
		wantReason types.MissingReason
		wantErrors int
	}{
		{name: "unresolved", outcome: browser.OutcomeUnresolved, wantReason: types.ReasonBrowserAssistUnresolved},
		{name: "error", outcome: browser.OutcomeError, wantReason: types.ReasonBrowserAssistError, wantErrors: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assist := &fakeAssist{result: browser.Result{Outcome: tt.outcome, Err: errors.New("page crashed")}}
			h := newHarness(t, &fakeSource{}, &fakeDownloader{}, assist, nil)
			cfg := testConfig()
			cfg.BrowserAssist.Enabled = true

			res, err := h.engine.Run(context.Background(), []types.BibEntry{{"ID": "x", "doi": "10.1000/xyz789"}}, cfg)
			require.NoError(t, err)

			d := res.Changes[0].Details
			assert.Equal(t, tt.wantReason, d.MissingReason)
			assert.Equal(t, string(tt.outcome), d.BrowserAssistResult)
			assert.Equal(t, tt.wantErrors, res.Details.BrowserAssist.Errors)
			assert.Equal(t, tt.wantReason, h.record(t, "doi:10.1000/xyz789").MissingReason)
		})
	}
}

func TestRunFallbackKeyForUnkeyedEntry(t *testing.T) {
	src := &fakeSource{generate: map[string][]acquire.Candidate{
		"n": {{URL: "https://example.com/from-eprint.pdf", Provider: "entry_eprint"}},
	}}
	dl := &fakeDownloader{pdfs: map[string]*acquire.Fetched{
		"https://example.com/from-eprint.pdf": pdf("https://Example.com/final.pdf#x", "text"),
	}}
	h := newHarness(t, src, dl, nil, nil)

	res, err := h.engine.Run(context.Background(), []types.BibEntry{{"ID": "n", "eprint": "2301.07041"}}, testConfig())
	require.NoError(t, err)

	d := res.Changes[0].Details
	assert.Equal(t, "url:https://example.com/final.pdf", d.CacheKey)
	rec := h.record(t, d.CacheKey)
	assert.Equal(t, rec.ID, d.PDFRecordID)
}

func TestRunCancelledSavesIndex(t *testing.T) {
	h := newHarness(t, failingSource{t}, failingDownloader{t}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.engine.Run(ctx, []types.BibEntry{{"ID": "a", "doi": "10.1000/abc123"}}, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(h.lib.IndexPath())
	assert.NoError(t, statErr)
}

func TestRunCancelledMidEntryLeavesRecordUntouched(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &fakeSource{generate: map[string][]acquire.Candidate{"a": {
		{URL: "https://example.com/a.pdf", Provider: "entry_pdf_url"},
		{URL: "https://example.com/b.pdf", Provider: "entry_url"},
	}}}
	dl := &cancellingDownloader{cancel: cancel}
	h := newHarness(t, src, dl, &fakeAssist{}, nil)
	cfg := testConfig()
	cfg.BrowserAssist.Enabled = true

	res, err := h.engine.Run(ctx, []types.BibEntry{{"ID": "a", "doi": "10.1000/abc123"}}, cfg)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, 1, dl.calls)
	assert.Equal(t, 0, h.starts)

	idx, err := h.lib.Load()
	require.NoError(t, err)
	if rec, ok := idx.Get("doi:10.1000/abc123"); ok {
		assert.NotEqual(t, types.StatusMissing, rec.Status)
		assert.Zero(t, rec.FailureCount)
	}
}

func TestRunProgress(t *testing.T) {
	h := newHarness(t, failingSource{t}, failingDownloader{t}, nil, nil)
	cfg := testConfig()
	cfg.DownloadEnabled = false

	_, err := h.engine.Run(context.Background(), []types.BibEntry{
		{"ID": "a", "doi": "10.1000/abc123"},
	}, cfg)
	require.NoError(t, err)

	require.NotEmpty(t, h.messages)
	assert.Equal(t, "Resolving PDFs", h.messages[0])
	assert.Equal(t, "PDF fetch completed", h.messages[len(h.messages)-1])
	assert.Contains(t, h.messages, "[1/1] 10.1000/abc123: checking cache and local files")
	assert.Contains(t, h.messages, "[1/1] 10.1000/abc123: missing ("+types.ReasonPDFNotResolved.Label()+")")
}

func TestEntryLabel(t *testing.T) {
	long := strings.Repeat("word ", 30)
	tests := []struct {
		key, doi, title string
		want            string
	}{
		{"k", "10.1/x", "Title", "10.1/x"},
		{"k", "", "  Deep\n  Learning  ", "Deep Learning"},
		{"k", "", long, strings.Repeat("word ", 16)[:80] + "..."},
		{"k", "", "", "k"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, entryLabel(tt.key, tt.doi, tt.title))
	}
}

func TestDefaultProfilesDir(t *testing.T) {
	e := New(library.Open("/data/screening/pdf_library"), nil)
	assert.Equal(t, "/data/screening/browser_profiles", e.profilesDir(types.FetchConfig{}))

	cfg := types.FetchConfig{BrowserAssist: types.BrowserAssistConfig{ProfilesDir: "/custom"}}
	assert.Equal(t, "/custom", e.profilesDir(cfg))
}
