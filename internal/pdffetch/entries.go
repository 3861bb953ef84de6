// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdffetch

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf-library/pkg/types"
)

// ReadEntries loads bibliographic entries from a JSON or YAML file. The
// file holds either a list of entries or a mapping with an "entries" list.
func ReadEntries(path string) ([]types.BibEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading entries: %w", err)
	}
	entries, err := ParseEntries(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return entries, nil
}

// ParseEntries decodes entries from JSON or YAML bytes.
func ParseEntries(data []byte) ([]types.BibEntry, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var list []any
	switch v := doc.(type) {
	case nil:
		return []types.BibEntry{}, nil
	case []any:
		list = v
	case map[string]any:
		inner, ok := v["entries"].([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list of entries or an \"entries\" list")
		}
		list = inner
	default:
		return nil, fmt.Errorf("expected a list of entries, got %T", doc)
	}

	entries := make([]types.BibEntry, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("entry %d: expected a mapping, got %T", i, item)
		}
		entries = append(entries, types.BibEntry(m))
	}
	return entries, nil
}
