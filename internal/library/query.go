// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/pdf-library/pkg/types"
)

// Query filters records for the management surface.
type Query struct {
	// Status is "all", "found" or "missing". Empty means all.
	Status string
	// Text is matched case-insensitively against doi, title, pdf_path,
	// source_url, key and source.
	Text string
}

// Filter returns the records matching q, preserving input order.
func Filter(records []*types.PdfRecord, q Query) ([]*types.PdfRecord, error) {
	status := strings.ToLower(strings.TrimSpace(q.Status))
	switch status {
	case "", "all", string(types.StatusFound), string(types.StatusMissing):
	default:
		return nil, fmt.Errorf("%w: %q (use all, found or missing)", ErrInvalidStatus, q.Status)
	}
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]*types.PdfRecord, 0, len(records))
	for _, r := range records {
		if status != "" && status != "all" && string(r.Status) != status {
			continue
		}
		if text != "" && !matchesText(r, text) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func matchesText(r *types.PdfRecord, needle string) bool {
	for _, field := range []string{r.DOI, r.Title, r.PDFPath, r.SourceURL, r.Key, string(r.Source)} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// Stats summarises the library.
type Stats struct {
	Total        int `json:"total"`
	Found        int `json:"found"`
	Missing      int `json:"missing"`
	ManagedFiles int `json:"managed_files"`
	ExternalRefs int `json:"external_refs"`
}

// ComputeStats counts records by status and file ownership.
func ComputeStats(records []*types.PdfRecord) Stats {
	var s Stats
	for _, r := range records {
		s.Total++
		if r.Status == types.StatusFound {
			s.Found++
		} else {
			s.Missing++
		}
		if r.ManagedFile {
			s.ManagedFiles++
		} else if r.PDFPath != "" {
			s.ExternalRefs++
		}
	}
	return s
}

const (
	shortTitleWords = 6
	shortTitleMax   = 60
)

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)
	stopWords   = map[string]bool{
		"a": true, "an": true, "the": true, "of": true, "on": true,
		"for": true, "and": true, "in": true, "to": true, "with": true,
	}
)

// DownloadName returns the file name offered when a record's PDF is
// downloaded: <year>_<database>_<short-title>.pdf. Year and database come
// from the record or, failing that, from any entry whose key the record
// references. Missing parts fall back to "nd", "unknown" and the DOI or
// record id.
func DownloadName(r *types.PdfRecord, entries []types.BibEntry) string {
	year, database, title := r.Year, r.Database, r.Title
	for i, e := range entries {
		if !referencesEntry(r, e.Key(i)) {
			continue
		}
		if year == "" {
			year = e.Year()
		}
		if database == "" {
			database = e.Database()
		}
		if title == "" {
			title = e.Title()
		}
	}

	yearPart := slugInvalid.ReplaceAllString(strings.ToLower(year), "")
	if yearPart == "" {
		yearPart = "nd"
	}
	dbPart := slugify(database, 30)
	if dbPart == "" {
		dbPart = "unknown"
	}
	titlePart := shortTitle(title)
	if titlePart == "" {
		titlePart = slugify(r.DOI, shortTitleMax)
	}
	if titlePart == "" {
		titlePart = r.ID
	}
	return fmt.Sprintf("%s_%s_%s.pdf", yearPart, dbPart, titlePart)
}

func referencesEntry(r *types.PdfRecord, key string) bool {
	for _, k := range r.EntryKeys {
		if k == key {
			return true
		}
	}
	return false
}

func shortTitle(title string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = slugInvalid.ReplaceAllString(w, "")
		if w == "" || stopWords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == shortTitleWords {
			break
		}
	}
	return truncate(strings.Join(words, "-"), shortTitleMax)
}

func slugify(s string, limit int) string {
	v := slugInvalid.ReplaceAllString(strings.ToLower(s), "-")
	return truncate(strings.Trim(v, "-"), limit)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimRight(s[:limit], "-")
}
