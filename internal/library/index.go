// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package library implements the shared, content-addressed PDF library: the
// canonical key scheme, the persisted index and the managed file store.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pdiddy/pdf-library/pkg/types"
)

const (
	indexVersion  = "1.0"
	indexFileName = "index.json"
	filesDirName  = "files"
)

// Sentinel errors returned by library operations.
var (
	ErrRecordNotFound = errors.New("pdf record not found")
	ErrInvalidStatus  = errors.New("invalid status filter")
	ErrNotAvailable   = errors.New("pdf not available")
)

// Index is the in-memory form of index.json. Records are keyed by canonical
// key; each key has at most one record.
type Index struct {
	Version string                      `json:"version"`
	Records map[string]*types.PdfRecord `json:"records"`

	now         func() time.Time
	loadWarning error
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{Version: indexVersion, Records: map[string]*types.PdfRecord{}}
}

func (idx *Index) timestamp() time.Time {
	now := time.Now
	if idx.now != nil {
		now = idx.now
	}
	return now().UTC().Truncate(time.Second)
}

// LoadWarning reports why the on-disk index was discarded during Load, or
// nil when it was read cleanly or did not exist.
func (idx *Index) LoadWarning() error {
	return idx.loadWarning
}

// List returns all records, most recently updated first.
func (idx *Index) List() []*types.PdfRecord {
	out := make([]*types.PdfRecord, 0, len(idx.Records))
	for _, r := range idx.Records {
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Get returns the record stored under key.
func (idx *Index) Get(key string) (*types.PdfRecord, bool) {
	r, ok := idx.Records[key]
	return r, ok
}

// GetByID looks a record up by its public id.
func (idx *Index) GetByID(id string) (string, *types.PdfRecord, bool) {
	for key, r := range idx.Records {
		if r.ID == id {
			return key, r, true
		}
	}
	return "", nil, false
}

// Ensure returns the record for key, creating a missing/not_checked record
// if none exists. A non-empty title replaces the stored one.
func (idx *Index) Ensure(key, title string) *types.PdfRecord {
	r, ok := idx.Records[key]
	if !ok {
		now := idx.timestamp()
		r = &types.PdfRecord{
			ID:            RecordID(key),
			Key:           key,
			Status:        types.StatusMissing,
			MissingReason: types.ReasonNotChecked,
			ProjectIDs:    []string{},
			StepIDs:       []string{},
			EntryKeys:     []string{},
			CreatedAt:     now,
			UpdatedAt:     now,
			LastCheckedAt: now,
		}
		idx.Records[key] = r
	}
	if title != "" {
		r.Title = title
	}
	return r
}

// Refs identifies where a record was touched from. Empty fields are ignored.
type Refs struct {
	ProjectID string
	StepID    string
	EntryKey  string
}

// Describe carries bibliographic fields copied onto a record when known.
type Describe struct {
	DOI      string
	Title    string
	Year     string
	Database string
}

// FoundUpdate describes a successful resolution.
type FoundUpdate struct {
	Describe
	Refs

	PDFPath     string
	ManagedFile bool
	Source      types.PDFSource
	SourceURL   string
	Provider    string
	ContentType string
}

// MissingUpdate describes a failed resolution.
type MissingUpdate struct {
	Describe
	Refs

	Reason types.MissingReason
}

// MarkFound records that key resolved to a PDF. The path is stored in
// absolute form and the size is taken from the file when it exists.
func (idx *Index) MarkFound(key string, u FoundUpdate) *types.PdfRecord {
	r := idx.Ensure(key, u.Title)
	now := idx.timestamp()
	u.Describe.apply(r)
	u.Refs.apply(r)

	path := u.PDFPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	r.Status = types.StatusFound
	r.PDFPath = path
	r.ManagedFile = u.ManagedFile
	r.Source = u.Source
	r.SourceURL = u.SourceURL
	r.Provider = u.Provider
	r.ContentType = u.ContentType
	r.SizeBytes = nil
	if fi, err := os.Stat(path); err == nil {
		size := fi.Size()
		r.SizeBytes = &size
	}
	r.MissingReason = ""
	r.UpdatedAt = now
	r.LastCheckedAt = now
	return r
}

// MarkMissing records a failed resolution for key. The previous path and
// source are kept for reference; failure_count increases by one.
func (idx *Index) MarkMissing(key string, u MissingUpdate) *types.PdfRecord {
	r := idx.Ensure(key, u.Title)
	now := idx.timestamp()
	u.Describe.apply(r)
	u.Refs.apply(r)

	reason := u.Reason
	if reason == "" {
		reason = types.ReasonNotFound
	}
	r.Status = types.StatusMissing
	r.MissingReason = reason
	r.FailureCount++
	r.UpdatedAt = now
	r.LastCheckedAt = now
	return r
}

// Remove deletes the record stored under key.
func (idx *Index) Remove(key string) {
	delete(idx.Records, key)
}

func (d Describe) apply(r *types.PdfRecord) {
	if d.DOI != "" {
		r.DOI = d.DOI
	}
	if d.Year != "" {
		r.Year = d.Year
	}
	if d.Database != "" {
		r.Database = d.Database
	}
}

func (refs Refs) apply(r *types.PdfRecord) {
	r.ProjectIDs = appendUnique(r.ProjectIDs, refs.ProjectID)
	r.StepIDs = appendUnique(r.StepIDs, refs.StepID)
	r.EntryKeys = appendUnique(r.EntryKeys, refs.EntryKey)
}

func appendUnique(set []string, v string) []string {
	if set == nil {
		set = []string{}
	}
	if v == "" || slices.Contains(set, v) {
		return set
	}
	return append(set, v)
}

// decodeIndex parses index.json leniently: entries that are not objects are
// skipped, fields that fail to decode keep their zero value, a record
// without key takes its map key, and ids are recomputed when absent.
func decodeIndex(data []byte) (*Index, error) {
	var raw struct {
		Version string                     `json:"version"`
		Records map[string]json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing index: %w", err)
	}
	idx := NewIndex()
	if raw.Version != "" {
		idx.Version = raw.Version
	}
	for key, msg := range raw.Records {
		var fields map[string]any
		if err := json.Unmarshal(msg, &fields); err != nil || fields == nil {
			continue
		}
		r := decodeRecord(fields)
		if r.Key == "" {
			r.Key = key
		}
		if r.ID == "" {
			r.ID = RecordID(key)
		}
		if r.Status != types.StatusFound {
			r.Status = types.StatusMissing
		}
		r.ProjectIDs = appendUnique(r.ProjectIDs, "")
		r.StepIDs = appendUnique(r.StepIDs, "")
		r.EntryKeys = appendUnique(r.EntryKeys, "")
		idx.Records[key] = r
	}
	return idx, nil
}

// decodeRecord decodes one record field by field so a single mistyped
// value does not cost the whole record.
func decodeRecord(fields map[string]any) *types.PdfRecord {
	r := &types.PdfRecord{}
	for name, v := range fields {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "json",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			Result:           r,
		})
		if err != nil {
			continue
		}
		_ = dec.Decode(map[string]any{name: v})
	}
	return r
}
