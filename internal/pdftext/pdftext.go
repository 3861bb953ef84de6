// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdftext inspects the text layer of library PDFs. It reads only the
// first pages, which is where publishers print the DOI, and reports whether
// the DOI found there agrees with the record.
package pdftext

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pdiddy/pdf-library/internal/acquire"
	"github.com/pdiddy/pdf-library/internal/library"
)

// DefaultPages is how many leading pages Inspect reads.
const DefaultPages = 3

// ErrNoText is returned when a PDF has no extractable text on the pages read.
var ErrNoText = errors.New("no extractable text")

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Report is the outcome of inspecting one PDF.
type Report struct {
	Path      string   `json:"path"`
	Pages     int      `json:"pages"`
	RecordDOI string   `json:"record_doi,omitempty"`
	TextDOIs  []string `json:"text_dois"`

	// Match is true when RecordDOI appears among TextDOIs.
	Match bool `json:"match"`

	// RawMatch is the byte-level heuristic used when fetching, kept for
	// PDFs whose text layer is compressed or missing.
	RawMatch bool `json:"raw_match"`
}

// Inspect extracts text from the first pages of the PDF at path and compares
// the DOIs it mentions with recordDOI.
func Inspect(path, recordDOI string) (*Report, error) {
	text, pages, err := ExtractText(path, DefaultPages)
	if err != nil && !errors.Is(err, ErrNoText) {
		return nil, err
	}
	rep := Analyze(text, recordDOI)
	rep.Path = path
	rep.Pages = pages
	rep.RawMatch = acquire.IsCachedPDFLikelyForDOI(path, "", recordDOI)
	return rep, nil
}

// Analyze reports the DOIs mentioned in text and whether recordDOI is one
// of them.
func Analyze(text, recordDOI string) *Report {
	rep := &Report{
		RecordDOI: library.NormalizeDOI(recordDOI),
		TextDOIs:  FindDOIs(text),
	}
	for _, d := range rep.TextDOIs {
		if rep.RecordDOI != "" && d == rep.RecordDOI {
			rep.Match = true
		}
	}
	return rep
}

// FindDOIs returns the distinct normalized DOIs in text, in order of first
// appearance.
func FindDOIs(text string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, m := range doiPattern.FindAllString(text, -1) {
		d := library.NormalizeDOI(strings.TrimRight(m, ".,;:)]"))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

// ExtractText returns the plain text of the first maxPages pages (all pages
// when maxPages <= 0) and the document's page count. Pages whose text
// cannot be decoded are skipped.
func ExtractText(path string, maxPages int) (text string, pages int, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	pages = r.NumPage()
	if maxPages <= 0 || maxPages > pages {
		maxPages = pages
	}

	var b strings.Builder
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(t)
		b.WriteString("\n")
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", pages, ErrNoText
	}
	return b.String(), pages, nil
}
