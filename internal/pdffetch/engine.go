// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdffetch runs the pdf-fetch step: for each bibliographic entry it
// tries the library cache, local files, direct download and finally an
// interactive browser, records the outcome in the shared library and
// partitions the entries into found and missing.
package pdffetch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/pdf-library/internal/acquire"
	"github.com/pdiddy/pdf-library/internal/browser"
	"github.com/pdiddy/pdf-library/internal/library"
	"github.com/pdiddy/pdf-library/internal/logger"
	"github.com/pdiddy/pdf-library/pkg/types"
)

// minEntryBrowserWait is the shortest browser window any entry gets.
const minEntryBrowserWait = 10 * time.Second

// CandidateSource proposes and expands candidate URLs.
type CandidateSource interface {
	Generate(ctx context.Context, entry types.BibEntry, doi string) []acquire.Candidate
	Discover(ctx context.Context, pageURL, provider, doi string) []acquire.Candidate
}

// Downloader fetches one candidate URL as a PDF.
type Downloader interface {
	Fetch(ctx context.Context, url string) (*acquire.Fetched, error)
}

// ProgressFunc receives progress updates; done counts finished entries.
type ProgressFunc func(done, total int, message string)

// Engine resolves entries against one library. The constructor fields
// default to the network-backed implementations and are replaced in tests.
type Engine struct {
	Library  *library.Library
	Log      *logger.Logger
	Progress ProgressFunc

	NewSource     func(cfg types.FetchConfig) CandidateSource
	NewDownloader func(cfg types.FetchConfig) Downloader
	StartAssist   func(ctx context.Context, cfg types.FetchConfig) (browser.Assist, error)
}

// New returns an Engine that downloads over HTTP and launches a local
// Chrome/Chromium for browser assist.
func New(lib *library.Library, log *logger.Logger) *Engine {
	log = logger.OrNop(log)
	e := &Engine{Library: lib, Log: log}
	e.NewSource = func(cfg types.FetchConfig) CandidateSource {
		return acquire.NewGenerator(cfg, log)
	}
	e.NewDownloader = func(cfg types.FetchConfig) Downloader {
		return acquire.NewFetcher(cfg)
	}
	e.StartAssist = func(ctx context.Context, cfg types.FetchConfig) (browser.Assist, error) {
		return browser.Start(ctx, browser.Options{
			ProfilesDir: e.profilesDir(cfg),
			Profile:     cfg.BrowserAssist.Profile,
			Headed:      cfg.BrowserAssist.Headed,
			Timeout:     cfg.Timeout,
			Fetcher:     acquire.NewFetcher(cfg),
			Log:         log,
		})
	}
	return e
}

// profilesDir defaults to browser_profiles next to the library directory.
func (e *Engine) profilesDir(cfg types.FetchConfig) string {
	if cfg.BrowserAssist.ProfilesDir != "" {
		return cfg.BrowserAssist.ProfilesDir
	}
	return filepath.Join(filepath.Dir(filepath.Clean(e.Library.Dir())), "browser_profiles")
}

// run holds the state of one Engine.Run call.
type run struct {
	e      *Engine
	cfg    types.FetchConfig
	idx    *library.Index
	source CandidateSource
	dl     Downloader
	log    *logger.Logger
	total  int

	assist         browser.Assist
	browserEnabled bool
	browser        types.BrowserAssistSummary

	cacheHits  int
	localHits  int
	downloaded int
}

// Run resolves every entry in order and returns both pass-mode views of
// the result. The index is saved and the browser closed on every return
// path. Run fails only on library I/O errors or cancellation; unresolved
// entries are reported, not returned as errors.
func (e *Engine) Run(ctx context.Context, entries []types.BibEntry, cfg types.FetchConfig) (result *types.StepResult, err error) {
	cfg = cfg.Normalize()
	log := logger.OrNop(e.Log)
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	idx, err := e.Library.Load()
	if err != nil {
		return nil, fmt.Errorf("loading pdf library: %w", err)
	}
	if w := idx.LoadWarning(); w != nil {
		log.Warn("pdf library index was unreadable; starting empty", "error", w)
	}

	r := &run{
		e:              e,
		cfg:            cfg,
		idx:            idx,
		source:         e.NewSource(cfg),
		dl:             e.NewDownloader(cfg),
		log:            log,
		total:          len(entries),
		browserEnabled: cfg.BrowserAssist.Enabled,
		browser:        types.BrowserAssistSummary{Enabled: cfg.BrowserAssist.Enabled},
	}

	defer func() {
		if r.assist != nil {
			if cerr := r.assist.Close(); cerr != nil {
				log.Warn("closing browser assist", "error", cerr)
			}
		}
		if serr := e.Library.Save(idx); serr != nil {
			log.Error("saving pdf library index", "error", serr)
			if err == nil {
				result, err = nil, fmt.Errorf("saving pdf library index: %w", serr)
			}
		}
	}()

	log.Info("pdf fetch started", "entries", len(entries), "pass_mode", cfg.PassMode,
		"download", cfg.DownloadEnabled, "browser_assist", cfg.BrowserAssist.Enabled)
	r.progress(0, "Resolving PDFs")

	var found, missing []types.BibEntry
	var changesAll, changesPDFOnly []types.Change
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := r.resolve(ctx, i, entry)
		if err != nil {
			return nil, err
		}

		key, title := entry.Key(i), entry.Title()
		if d.PDFStatus == types.StatusFound {
			found = append(found, entry)
			c := types.Change{EntryKey: key, Title: title, Action: types.ActionKeep, Reason: types.ChangePDFAvailable, Details: d}
			changesAll = append(changesAll, c)
			changesPDFOnly = append(changesPDFOnly, c)
		} else {
			missing = append(missing, entry)
			changesAll = append(changesAll, types.Change{EntryKey: key, Title: title, Action: types.ActionKeep, Reason: types.ChangePDFMissingPassed, Details: d})
			changesPDFOnly = append(changesPDFOnly, types.Change{EntryKey: key, Title: title, Action: types.ActionRemove, Reason: types.ChangePDFMissing, Details: d})
		}
	}

	if found == nil {
		found = []types.BibEntry{}
	}
	if missing == nil {
		missing = []types.BibEntry{}
	}
	all := entries
	if all == nil {
		all = []types.BibEntry{}
	}

	full := &types.StepResult{
		Outputs: types.StepOutputs{PDFFound: found, PDFMissing: missing},
		Details: types.StepDetails{
			RunID:    runID,
			PassMode: cfg.PassMode,
			ModeOutputs: map[types.PassMode][]types.BibEntry{
				types.PassAll:     all,
				types.PassPDFOnly: found,
			},
			ModeChanges: map[types.PassMode][]types.Change{
				types.PassAll:     nonNilChanges(changesAll),
				types.PassPDFOnly: nonNilChanges(changesPDFOnly),
			},
			CacheHits:       r.cacheHits,
			LocalHits:       r.localHits,
			DownloadedCount: r.downloaded,
			BrowserAssist:   r.browser,
		},
	}
	result = full.WithPassMode(cfg.PassMode)

	log.Info("pdf fetch finished",
		"found", len(found), "missing", len(missing),
		"cache_hits", r.cacheHits, "local_hits", r.localHits, "downloaded", r.downloaded,
		"browser_attempted", r.browser.AttemptedEntries, "browser_resolved", r.browser.ResolvedEntries)
	r.progress(r.total, "PDF fetch completed")
	return result, nil
}

// resolve runs the strategy chain for one entry.
func (r *run) resolve(ctx context.Context, i int, entry types.BibEntry) (types.EntryDetails, error) {
	entryKey := entry.Key(i)
	title := entry.Title()
	doi := library.NormalizeDOI(entry.Get("doi"))
	key, _ := library.CanonicalKey(entry)
	label := entryLabel(entryKey, doi, title)
	prefix := fmt.Sprintf("[%d/%d] %s", i+1, r.total, label)

	d := types.EntryDetails{
		PDFStatus:          types.StatusMissing,
		DOI:                doi,
		CacheKey:           key,
		AttemptedProviders: []string{},
	}
	describe := library.Describe{DOI: doi, Title: title, Year: entry.Year(), Database: entry.Database()}
	refs := library.Refs{ProjectID: r.cfg.ProjectID, StepID: r.cfg.StepID, EntryKey: entryKey}
	reason := types.ReasonNotFound
	log := r.log.With("entry", entryKey)

	r.progress(i, prefix+": checking cache and local files")

	// Cache.
	if key != "" && r.cfg.ReuseCache {
		if rec, ok := r.idx.Get(key); ok && rec.Found() && isPDFFile(rec.PDFPath) &&
			acquire.IsCachedPDFLikelyForDOI(rec.PDFPath, rec.SourceURL, doi) {
			rec = r.idx.MarkFound(key, library.FoundUpdate{
				Describe:    describe,
				Refs:        refs,
				PDFPath:     rec.PDFPath,
				ManagedFile: rec.ManagedFile,
				Source:      types.SourceCache,
				SourceURL:   rec.SourceURL,
				Provider:    rec.Provider,
				ContentType: rec.ContentType,
			})
			r.cacheHits++
			setFound(&d, rec)
			log.Debug("pdf found in library cache", "key", key, "path", rec.PDFPath)
		}
	}

	// Local files.
	if d.PDFStatus != types.StatusFound {
		if path := FindLocalPDF(entry, r.cfg.Local, r.cfg.ProjectID); path != "" {
			r.localHits++
			d.PDFStatus = types.StatusFound
			d.PDFPath = path
			d.Source = types.SourceLocalFile
			d.Provider = "local"
			d.ProviderCategory = types.ProviderLocal
			if key != "" {
				rec := r.idx.MarkFound(key, library.FoundUpdate{
					Describe:    describe,
					Refs:        refs,
					PDFPath:     path,
					Source:      types.SourceLocalFile,
					Provider:    "local",
					ContentType: "application/pdf",
				})
				d.PDFRecordID = rec.ID
			}
			log.Debug("pdf found on disk", "path", path)
		}
	}

	// Direct download.
	var candidates []acquire.Candidate
	if d.PDFStatus != types.StatusFound && r.cfg.DownloadEnabled {
		list := acquire.NewCandidateList()
		list.AddAll(r.source.Generate(ctx, entry, doi))
		r.progress(i, fmt.Sprintf("%s: trying web sources (%d candidates)", prefix, list.Len()))

		attempted := map[string]bool{}
		expanded := map[string]bool{}
		for j := 0; j < list.Len() && ctx.Err() == nil; j++ {
			c := list.At(j)
			attempted[c.Provider] = true

			fetched, err := r.dl.Fetch(ctx, c.URL)
			if err != nil {
				log.Debug("candidate rejected", "provider", c.Provider, "url", c.URL, "error", err)
				if !expanded[c.URL] {
					expanded[c.URL] = true
					list.AddAll(r.source.Discover(ctx, c.URL, c.Provider, doi))
				}
				continue
			}
			if !acquire.IsPDFLikelyForDOI(fetched.Body, fetched.FinalURL, doi) {
				log.Debug("pdf does not mention the DOI", "provider", c.Provider, "url", fetched.FinalURL, "doi", doi)
				continue
			}

			key, err = r.store(&d, key, entryKey, fetched, c.Provider, types.SourceDownload, describe, refs)
			if err != nil {
				return d, err
			}
			r.downloaded++
			log.Info("pdf downloaded", "provider", c.Provider, "url", fetched.FinalURL)
			break
		}

		candidates = list.Items()
		d.CandidateCount = len(candidates)
		for p := range attempted {
			d.AttemptedProviders = append(d.AttemptedProviders, p)
		}
		sort.Strings(d.AttemptedProviders)
	}

	// An interrupted entry is left as it was, not counted as a failure.
	if err := ctx.Err(); err != nil && d.PDFStatus != types.StatusFound {
		return d, err
	}

	// Browser assist.
	entryURL := strings.TrimSpace(entry.Get("url"))
	if d.PDFStatus != types.StatusFound && r.cfg.DownloadEnabled && r.browserEnabled && (doi != "" || entryURL != "") {
		r.browser.AttemptedEntries++
		d.BrowserAssistUsed = true
		r.progress(i, fmt.Sprintf("[%d/%d] Browser assist: complete login/challenge in opened browser window for %s", i+1, r.total, label))

		if r.assist == nil {
			a, err := r.e.StartAssist(ctx, r.cfg)
			available := err == nil
			r.browser.Available = &available
			if err != nil {
				r.browserUnavailable(err)
				reason = types.ReasonBrowserAssistUnavailable
				d.BrowserAssistResult = string(browser.OutcomeUnavailable)
			} else {
				r.assist = a
			}
		}

		if r.assist != nil {
			res := r.assist.Resolve(ctx, browser.Request{
				DOI:      doi,
				EntryURL: entryURL,
				Seeds:    candidates,
				Wait:     max(r.cfg.BrowserAssist.Wait, minEntryBrowserWait),
			})
			d.BrowserAssistCandidates = res.CandidateCount
			d.BrowserAssistTried = res.TriedCount
			d.BrowserAssistPageURL = res.PageURL
			d.BrowserAssistResult = string(res.Outcome)

			switch res.Outcome {
			case browser.OutcomeResolved:
				var err error
				key, err = r.store(&d, key, entryKey, res.Fetched, res.Provider, types.SourceBrowserAssist, describe, refs)
				if err != nil {
					return d, err
				}
				r.downloaded++
				r.browser.ResolvedEntries++
				log.Info("pdf resolved in browser", "provider", res.Provider, "url", res.Fetched.FinalURL)
			case browser.OutcomeUnavailable:
				r.browserUnavailable(res.Err)
				reason = types.ReasonBrowserAssistUnavailable
			case browser.OutcomeError:
				r.browser.Errors++
				r.browser.LastError = errString(res.Err)
				reason = types.ReasonBrowserAssistError
				log.Warn("browser assist failed", "error", res.Err)
			default:
				if reason == types.ReasonNotFound {
					reason = types.ReasonBrowserAssistUnresolved
				}
			}
		}
	}

	if d.PDFStatus != types.StatusFound {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		if reason == types.ReasonNotFound {
			reason = types.ReasonPDFNotResolved
		}
		if key != "" {
			rec := r.idx.MarkMissing(key, library.MissingUpdate{Describe: describe, Refs: refs, Reason: reason})
			d.PDFRecordID = rec.ID
		}
		d.MissingReason = reason
		d.MissingReasonLabel = reason.Label()
		d.MissingReasonHint = reason.Hint()
		r.progress(i+1, fmt.Sprintf("%s: missing (%s)", prefix, reason.Label()))
	} else {
		r.progress(i+1, fmt.Sprintf("%s: resolved (%s)", prefix, d.Source))
	}
	return d, nil
}

// store writes a fetched PDF as the managed file for key, synthesizing a
// key from the final URL when the entry had none, and marks it found.
func (r *run) store(d *types.EntryDetails, key, entryKey string, f *acquire.Fetched, provider string,
	source types.PDFSource, describe library.Describe, refs library.Refs) (string, error) {
	if key == "" {
		key = library.FallbackKey(f.FinalURL, entryKey)
		d.CacheKey = key
	}
	path, err := r.e.Library.WriteManaged(key, f.Body)
	if err != nil {
		return key, fmt.Errorf("storing pdf for %s: %w", entryKey, err)
	}
	rec := r.idx.MarkFound(key, library.FoundUpdate{
		Describe:    describe,
		Refs:        refs,
		PDFPath:     path,
		ManagedFile: true,
		Source:      source,
		SourceURL:   f.FinalURL,
		Provider:    provider,
		ContentType: f.ContentType,
	})
	setFound(d, rec)
	return key, nil
}

// browserUnavailable disables browser assist for the rest of the run.
func (r *run) browserUnavailable(err error) {
	r.browserEnabled = false
	r.browser.Errors++
	r.browser.LastError = errString(err)
	r.log.Warn("browser assist unavailable; disabled for the rest of this run", "error", err)
}

func (r *run) progress(done int, msg string) {
	if r.e.Progress != nil {
		r.e.Progress(done, r.total, msg)
	}
}

func setFound(d *types.EntryDetails, rec *types.PdfRecord) {
	d.PDFStatus = types.StatusFound
	d.PDFPath = rec.PDFPath
	d.Source = rec.Source
	d.Provider = rec.Provider
	d.ProviderCategory = types.CategoryOf(rec.Provider)
	d.SourceURL = rec.SourceURL
	d.PDFRecordID = rec.ID
}

// entryLabel names an entry in progress messages: its DOI, else its title
// compacted to 80 characters, else its key.
func entryLabel(entryKey, doi, title string) string {
	if doi != "" {
		return doi
	}
	if compact := strings.Join(strings.Fields(title), " "); compact != "" {
		if r := []rune(compact); len(r) > 80 {
			return string(r[:80]) + "..."
		}
		return compact
	}
	return entryKey
}

func nonNilChanges(cs []types.Change) []types.Change {
	if cs == nil {
		return []types.Change{}
	}
	return cs
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
