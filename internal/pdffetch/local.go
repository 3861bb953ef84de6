// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdffetch

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/pdf-library/pkg/types"
)

// localFileFields are the entry fields that may reference a PDF on disk.
var localFileFields = []string{"file", "pdf", "fulltext", "local_pdf"}

// FileFieldCandidates extracts PDF paths from a BibTeX-style file field.
// It accepts plain paths, "path.pdf:PDF" (Zotero/JabRef), file:// URLs and
// ";"-separated lists. Each path is cut after its first ".pdf".
func FileFieldCandidates(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		part = strings.Trim(strings.TrimSpace(part), "{}\"'")
		i := strings.Index(strings.ToLower(part), ".pdf")
		if i < 0 {
			continue
		}
		if p := strings.TrimSpace(part[:i+len(".pdf")]); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FindLocalPDF returns the absolute path of the first existing PDF the
// entry references, or "". Relative references are tried against the
// entry's import directory, its project source directory, the project
// directory and finally the working directory.
func FindLocalPDF(entry types.BibEntry, local types.LocalConfig, projectID string) string {
	var refs []string
	for _, field := range localFileFields {
		if v := entry.Get(field); v != "" {
			refs = append(refs, FileFieldCandidates(v)...)
		}
	}
	if u := strings.TrimSpace(entry.Get("url")); strings.HasPrefix(u, "file://") || strings.HasSuffix(strings.ToLower(u), ".pdf") {
		refs = append(refs, u)
	}
	if len(refs) == 0 {
		return ""
	}

	bases := localBaseDirs(entry, local, projectID)
	seen := map[string]bool{}
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if len(ref) >= len("file://") && strings.EqualFold(ref[:len("file://")], "file://") {
			ref = ref[len("file://"):]
		}
		if ref == "" {
			continue
		}

		var checks []string
		if filepath.IsAbs(ref) {
			checks = []string{ref}
		} else {
			for _, base := range bases {
				checks = append(checks, filepath.Join(base, ref))
			}
		}
		for _, check := range checks {
			abs, err := filepath.Abs(check)
			if err != nil || seen[abs] {
				continue
			}
			seen[abs] = true
			if isPDFFile(abs) {
				return abs
			}
		}
	}
	return ""
}

func localBaseDirs(entry types.BibEntry, local types.LocalConfig, projectID string) []string {
	var bases []string
	if imp := strings.TrimSpace(entry.Get("_source_import")); imp != "" && local.ImportsDir != "" {
		bases = append(bases, filepath.Join(local.ImportsDir, imp))
	}
	if projectID != "" && local.ProjectsDir != "" {
		if cat := strings.TrimSpace(entry.Get("_source_category")); cat != "" {
			bases = append(bases, filepath.Join(local.ProjectsDir, projectID, "sources", cat))
		}
		bases = append(bases, filepath.Join(local.ProjectsDir, projectID))
	}
	work := local.WorkDir
	if work == "" {
		if wd, err := os.Getwd(); err == nil {
			work = wd
		}
	}
	if work != "" {
		bases = append(bases, work)
	}
	return bases
}

func isPDFFile(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
