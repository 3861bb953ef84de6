// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"github.com/pdiddy/pdf-library/internal/library"
)

// Candidate is a URL that might serve the PDF, labelled with the provider
// that proposed it.
type Candidate struct {
	URL      string
	Provider string
}

// CandidateList is an ordered queue of candidates, deduplicated by
// normalized URL regardless of provider. It may grow while being iterated.
type CandidateList struct {
	items []Candidate
	seen  map[string]bool
}

// NewCandidateList returns an empty list.
func NewCandidateList() *CandidateList {
	return &CandidateList{seen: map[string]bool{}}
}

// Add appends rawURL under provider unless it is not an http(s) URL or its
// normalized form is already present. It reports whether the list grew.
func (l *CandidateList) Add(rawURL, provider string) bool {
	u := library.NormalizeURL(rawURL)
	if u == "" || l.seen[u] {
		return false
	}
	l.seen[u] = true
	l.items = append(l.items, Candidate{URL: u, Provider: provider})
	return true
}

// AddAll adds each candidate in order and returns how many were new.
func (l *CandidateList) AddAll(cs []Candidate) int {
	n := 0
	for _, c := range cs {
		if l.Add(c.URL, c.Provider) {
			n++
		}
	}
	return n
}

// Len returns the number of candidates.
func (l *CandidateList) Len() int { return len(l.items) }

// At returns the i-th candidate.
func (l *CandidateList) At(i int) Candidate { return l.items[i] }

// Items returns a copy of the candidates in insertion order.
func (l *CandidateList) Items() []Candidate {
	return append([]Candidate(nil), l.items...)
}
