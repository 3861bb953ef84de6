// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// RecordStatus indicates whether a PDF is available for a canonical key.
type RecordStatus string

const (
	StatusFound   RecordStatus = "found"
	StatusMissing RecordStatus = "missing"
)

// PDFSource identifies which strategy produced a found PDF.
type PDFSource string

const (
	SourceCache         PDFSource = "cache"
	SourceLocalFile     PDFSource = "local_file"
	SourceDownload      PDFSource = "download"
	SourceBrowserAssist PDFSource = "browser_assist"
)

// MissingReason explains why no PDF is available for a record.
type MissingReason string

const (
	ReasonNotChecked               MissingReason = "not_checked"
	ReasonNotFound                 MissingReason = "not_found"
	ReasonPDFNotResolved           MissingReason = "pdf_not_resolved"
	ReasonBrowserAssistUnresolved  MissingReason = "browser_assist_unresolved"
	ReasonBrowserAssistUnavailable MissingReason = "browser_assist_unavailable"
	ReasonBrowserAssistError       MissingReason = "browser_assist_error"
)

var missingReasonLabels = map[MissingReason]string{
	ReasonNotChecked:               "PDF lookup has not run yet.",
	ReasonNotFound:                 "PDF was not resolved.",
	ReasonPDFNotResolved:           "No downloadable PDF found from known sources.",
	ReasonBrowserAssistUnresolved:  "Browser assist timed out before a PDF became downloadable.",
	ReasonBrowserAssistUnavailable: "Browser assist could not start (Chrome/Chromium runtime unavailable).",
	ReasonBrowserAssistError:       "Browser assist failed while trying to fetch the PDF.",
}

var missingReasonHints = map[MissingReason]string{
	ReasonNotFound:                 "Try re-run with browser assist enabled.",
	ReasonPDFNotResolved:           "Try re-run with browser assist enabled and complete publisher login first.",
	ReasonBrowserAssistUnresolved:  "Keep the opened browser window on the publisher page until challenge/login is completed.",
	ReasonBrowserAssistUnavailable: "Install Google Chrome or Chromium, or point CHROME_PATH at the browser binary.",
	ReasonBrowserAssistError:       "Retry once; if repeated, inspect the fetch logs for the specific browser/network error.",
}

// Label returns a human-readable description of the reason. Unknown reasons
// are returned verbatim.
func (r MissingReason) Label() string {
	if r == "" {
		return ""
	}
	if l, ok := missingReasonLabels[r]; ok {
		return l
	}
	return string(r)
}

// Hint returns a suggested remediation, or "" when there is none.
func (r MissingReason) Hint() string {
	return missingReasonHints[r]
}

// PdfRecord is the persisted outcome for one canonical key in the shared
// PDF library. Optional string fields are empty when absent.
type PdfRecord struct {
	ID            string        `json:"id" yaml:"id"`
	Key           string        `json:"key" yaml:"key"`
	DOI           string        `json:"doi,omitempty" yaml:"doi,omitempty"`
	Year          string        `json:"year,omitempty" yaml:"year,omitempty"`
	Database      string        `json:"database,omitempty" yaml:"database,omitempty"`
	Title         string        `json:"title,omitempty" yaml:"title,omitempty"`
	Status        RecordStatus  `json:"status" yaml:"status"`
	PDFPath       string        `json:"pdf_path,omitempty" yaml:"pdf_path,omitempty"`
	ManagedFile   bool          `json:"managed_file" yaml:"managed_file"`
	Source        PDFSource     `json:"source,omitempty" yaml:"source,omitempty"`
	SourceURL     string        `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Provider      string        `json:"provider,omitempty" yaml:"provider,omitempty"`
	ContentType   string        `json:"content_type,omitempty" yaml:"content_type,omitempty"`
	SizeBytes     *int64        `json:"size_bytes" yaml:"size_bytes"`
	ProjectIDs    []string      `json:"project_ids" yaml:"project_ids"`
	StepIDs       []string      `json:"step_ids" yaml:"step_ids"`
	EntryKeys     []string      `json:"entry_keys" yaml:"entry_keys"`
	MissingReason MissingReason `json:"missing_reason,omitempty" yaml:"missing_reason,omitempty"`
	FailureCount  int           `json:"failure_count" yaml:"failure_count"`
	CreatedAt     time.Time     `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" yaml:"updated_at"`
	LastCheckedAt time.Time     `json:"last_checked_at" yaml:"last_checked_at"`
}

// Found reports whether the record points at an available PDF.
func (r *PdfRecord) Found() bool {
	return r.Status == StatusFound && r.PDFPath != ""
}

// ExternalRef reports whether the record references a file the library
// does not own.
func (r *PdfRecord) ExternalRef() bool {
	return !r.ManagedFile && r.PDFPath != ""
}

// ProviderCategory groups free-text provider labels (e.g. "acm_direct_pdf",
// "openalex_landing") into a closed set.
type ProviderCategory string

const (
	ProviderEntry           ProviderCategory = "entry"
	ProviderResolver        ProviderCategory = "resolver"
	ProviderPublisher       ProviderCategory = "publisher"
	ProviderOpenAlex        ProviderCategory = "openalex"
	ProviderSemanticScholar ProviderCategory = "semantic_scholar"
	ProviderUnpaywall       ProviderCategory = "unpaywall"
	ProviderLanding         ProviderCategory = "landing"
	ProviderBrowser         ProviderCategory = "browser"
	ProviderLocal           ProviderCategory = "local"
	ProviderCache           ProviderCategory = "cache"
	ProviderOther           ProviderCategory = "other"
)

// CategoryOf maps a provider label to its category. Landing-page and HTML
// expansions are categorised as landing regardless of the seed provider.
func CategoryOf(label string) ProviderCategory {
	l := strings.ToLower(label)
	switch {
	case l == "":
		return ProviderOther
	case strings.HasPrefix(l, "browser"):
		return ProviderBrowser
	case strings.HasSuffix(l, "_landing"), strings.HasSuffix(l, "_html"):
		return ProviderLanding
	case strings.HasPrefix(l, "entry"):
		return ProviderEntry
	case l == "doi_resolver":
		return ProviderResolver
	case strings.HasPrefix(l, "acm_"), strings.HasPrefix(l, "ieee_"):
		return ProviderPublisher
	case strings.HasPrefix(l, "openalex"):
		return ProviderOpenAlex
	case strings.HasPrefix(l, "semantic_scholar"):
		return ProviderSemanticScholar
	case strings.HasPrefix(l, "unpaywall"):
		return ProviderUnpaywall
	case l == "local":
		return ProviderLocal
	case l == "cache":
		return ProviderCache
	default:
		return ProviderOther
	}
}
