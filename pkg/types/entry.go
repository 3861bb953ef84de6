// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strconv"
	"strings"
)

// BibEntry is one bibliographic entry handed over by the screening
// pipeline. Field names follow BibTeX conventions (ID, doi, url, eprint,
// title, year, file) plus pipeline bookkeeping fields prefixed with an
// underscore (_source_import, _source_category, _database). Entries are
// passed through to step outputs unchanged.
type BibEntry map[string]any

// Get returns the first non-empty value among the named fields. Field names
// are matched case-insensitively and values are stringified and trimmed.
func (e BibEntry) Get(names ...string) string {
	for _, name := range names {
		if v, ok := e[name]; ok {
			if s := stringify(v); s != "" {
				return s
			}
			continue
		}
		for k, v := range e {
			if strings.EqualFold(k, name) {
				if s := stringify(v); s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// Key returns the entry's citation key, or row_<index> when it has none.
// index is the entry's zero-based position in the input.
func (e BibEntry) Key(index int) string {
	if id := e.Get("ID"); id != "" {
		return id
	}
	return fmt.Sprintf("row_%d", index)
}

// Title returns the entry title with BibTeX braces removed.
func (e BibEntry) Title() string {
	t := strings.NewReplacer("{", "", "}", "").Replace(e.Get("title"))
	return strings.TrimSpace(t)
}

// Year returns the publication year field, if any.
func (e BibEntry) Year() string {
	return e.Get("year")
}

// Database returns the source database recorded by the import step.
func (e BibEntry) Database() string {
	return e.Get("_database", "database", "source")
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
