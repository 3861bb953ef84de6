// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/pdiddy/pdf-library/internal/library"
)

const (
	// doiScanBytes is how much of a PDF is searched for the DOI.
	doiScanBytes = 2_000_000

	// minDOISuffix is the shortest DOI suffix accepted as evidence.
	minDOISuffix = 6
)

// IsPDFLikelyForDOI reports whether a fetched PDF plausibly belongs to doi:
// the DOI (or its suffix after the registrant, when at least six characters
// long) appears in the unescaped final URL or in the first 2 MB of the body.
// Entries without a valid DOI always pass.
func IsPDFLikelyForDOI(body []byte, finalURL, doi string) bool {
	needles := doiNeedles(doi)
	if needles == nil {
		return true
	}

	u := finalURL
	if unescaped, err := url.PathUnescape(finalURL); err == nil {
		u = unescaped
	}
	u = strings.ToLower(u)
	for _, n := range needles {
		if strings.Contains(u, n) {
			return true
		}
	}

	head := body
	if len(head) > doiScanBytes {
		head = head[:doiScanBytes]
	}
	lowered := asciiLower(head)
	for _, n := range needles {
		if bytes.Contains(lowered, []byte(n)) {
			return true
		}
	}
	return false
}

// IsCachedPDFLikelyForDOI applies IsPDFLikelyForDOI to a stored file. An
// unreadable file is given the benefit of the doubt.
func IsCachedPDFLikelyForDOI(path, sourceURL, doi string) bool {
	if doiNeedles(doi) == nil {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return true
	}
	defer f.Close()
	head, err := io.ReadAll(io.LimitReader(f, doiScanBytes))
	if err != nil {
		return true
	}
	return IsPDFLikelyForDOI(head, sourceURL, doi)
}

func doiNeedles(doi string) []string {
	norm := library.NormalizeDOI(doi)
	if norm == "" {
		return nil
	}
	needles := []string{norm}
	if _, suffix, ok := strings.Cut(norm, "/"); ok && len(suffix) >= minDOISuffix {
		needles = append(needles, suffix)
	}
	return needles
}

// asciiLower lowercases A-Z and leaves every other byte intact, which
// matches a Latin-1 decode for the ASCII needles we search for.
func asciiLower(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}
