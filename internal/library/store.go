// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package library

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/pdf-library/pkg/types"
)

// EnvDir names the environment variable that overrides the library location.
const EnvDir = "PDF_LIBRARY_DIR"

// DefaultDir is used when neither configuration nor EnvDir set a location.
const DefaultDir = "pdf_library"

// Library owns <dir>/index.json and the managed PDFs under <dir>/files/.
// Callers serialise runs against the same directory.
type Library struct {
	dir string
	now func() time.Time
}

// Open returns a Library rooted at dir. An empty dir falls back to
// $PDF_LIBRARY_DIR and then DefaultDir.
func Open(dir string) *Library {
	if dir == "" {
		dir = os.Getenv(EnvDir)
	}
	if dir == "" {
		dir = DefaultDir
	}
	return &Library{dir: dir, now: time.Now}
}

// Dir returns the library root.
func (l *Library) Dir() string { return l.dir }

// FilesDir returns the directory of managed PDFs.
func (l *Library) FilesDir() string { return filepath.Join(l.dir, filesDirName) }

// IndexPath returns the location of index.json.
func (l *Library) IndexPath() string { return filepath.Join(l.dir, indexFileName) }

// ManagedPath returns where the library stores the PDF for key.
func (l *Library) ManagedPath(key string) string {
	return filepath.Join(l.FilesDir(), ManagedFileName(key))
}

func (l *Library) ensureDirs() error {
	if err := os.MkdirAll(l.FilesDir(), 0o755); err != nil {
		return fmt.Errorf("creating library directory %s: %w", l.FilesDir(), err)
	}
	return nil
}

// Load reads index.json. A missing or unparsable file yields an empty index;
// only failure to create the library directories is reported. Why an
// existing index was discarded is available from Index.LoadWarning.
func (l *Library) Load() (*Index, error) {
	if err := l.ensureDirs(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.IndexPath())
	if err != nil {
		idx := NewIndex()
		idx.now = l.now
		if !errors.Is(err, os.ErrNotExist) {
			idx.loadWarning = fmt.Errorf("reading %s: %w", l.IndexPath(), err)
		}
		return idx, nil
	}
	idx, parseErr := decodeIndex(data)
	if parseErr != nil {
		idx = NewIndex()
		idx.loadWarning = parseErr
	}
	idx.now = l.now
	return idx, nil
}

// Save writes idx to index.json as indented JSON. The write goes to a
// temporary file that replaces the index on success.
func (l *Library) Save(idx *Index) error {
	if err := l.ensureDirs(); err != nil {
		return err
	}
	if idx.Version == "" {
		idx.Version = indexVersion
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(idx); err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}
	return writeAtomic(l.IndexPath(), buf.Bytes())
}

// WriteManaged stores body as the managed PDF for key and returns its path.
// Writing the same key again replaces the file.
func (l *Library) WriteManaged(key string, body []byte) (string, error) {
	if err := l.ensureDirs(); err != nil {
		return "", err
	}
	path := l.ManagedPath(key)
	if err := writeAtomic(path, body); err != nil {
		return "", err
	}
	return path, nil
}

// DeleteResult reports what Delete removed.
type DeleteResult struct {
	RecordID    string `json:"record_id"`
	RemovedFile bool   `json:"removed_file"`
	RemovedPath string `json:"removed_path,omitempty"`
}

// Delete removes the record with the given id and persists the index. The
// PDF is unlinked only when the library owns it and deleteFile is set;
// external files are never touched.
func (l *Library) Delete(id string, deleteFile bool) (DeleteResult, error) {
	idx, err := l.Load()
	if err != nil {
		return DeleteResult{}, err
	}
	key, rec, ok := idx.GetByID(id)
	if !ok {
		return DeleteResult{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}

	res := DeleteResult{RecordID: id}
	if deleteFile && rec.ManagedFile && rec.PDFPath != "" {
		if err := os.Remove(rec.PDFPath); err == nil {
			res.RemovedFile = true
			res.RemovedPath = rec.PDFPath
		} else if !errors.Is(err, os.ErrNotExist) {
			return DeleteResult{}, fmt.Errorf("removing %s: %w", rec.PDFPath, err)
		}
	}

	idx.Remove(key)
	if err := l.Save(idx); err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

// FileFor returns the record with id and the path of its PDF. It fails with
// ErrRecordNotFound for unknown ids and ErrNotAvailable when the record is
// not found or its file is gone.
func (l *Library) FileFor(id string) (*types.PdfRecord, error) {
	idx, err := l.Load()
	if err != nil {
		return nil, err
	}
	_, rec, ok := idx.GetByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if !rec.Found() {
		return nil, fmt.Errorf("%w: record %s is %s", ErrNotAvailable, id, rec.Status)
	}
	if _, err := os.Stat(rec.PDFPath); err != nil {
		return nil, fmt.Errorf("%w: file missing at %s", ErrNotAvailable, rec.PDFPath)
	}
	return rec, nil
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".library-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(data)
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
