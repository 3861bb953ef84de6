// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ChangeAction is the pipeline action applied to an entry.
type ChangeAction string

const (
	ActionKeep   ChangeAction = "keep"
	ActionRemove ChangeAction = "remove"
)

// Change reasons emitted by the pdf-fetch step.
const (
	ChangePDFAvailable     = "pdf_available"
	ChangePDFMissingPassed = "pdf_missing_passed"
	ChangePDFMissing       = "pdf_missing"
)

// EntryDetails carries the per-entry diagnostics of a fetch run.
type EntryDetails struct {
	PDFStatus               RecordStatus     `json:"pdf_status"`
	PDFPath                 string           `json:"pdf_path,omitempty"`
	Source                  PDFSource        `json:"source,omitempty"`
	Provider                string           `json:"provider,omitempty"`
	ProviderCategory        ProviderCategory `json:"provider_category,omitempty"`
	SourceURL               string           `json:"source_url,omitempty"`
	PDFRecordID             string           `json:"pdf_record_id,omitempty"`
	DOI                     string           `json:"doi,omitempty"`
	CacheKey                string           `json:"cache_key,omitempty"`
	BrowserAssistUsed       bool             `json:"browser_assist_used"`
	BrowserAssistResult     string           `json:"browser_assist_result,omitempty"`
	BrowserAssistCandidates int              `json:"browser_assist_candidates,omitempty"`
	BrowserAssistTried      int              `json:"browser_assist_tried,omitempty"`
	BrowserAssistPageURL    string           `json:"browser_assist_page_url,omitempty"`
	MissingReason           MissingReason    `json:"missing_reason,omitempty"`
	MissingReasonLabel      string           `json:"missing_reason_label,omitempty"`
	MissingReasonHint       string           `json:"missing_reason_hint,omitempty"`
	AttemptedProviders      []string         `json:"attempted_providers"`
	CandidateCount          int              `json:"candidate_count"`
}

// Change records what the step did with one entry.
type Change struct {
	EntryKey string       `json:"entry_key"`
	Title    string       `json:"title"`
	Action   ChangeAction `json:"action"`
	Reason   string       `json:"reason"`
	Details  EntryDetails `json:"details"`
}

// StepOutputs partitions the input entries.
type StepOutputs struct {
	Passed     []BibEntry `json:"passed"`
	PDFFound   []BibEntry `json:"pdf_found"`
	PDFMissing []BibEntry `json:"pdf_missing"`
}

// StepStats summarises the selected pass mode.
type StepStats struct {
	InputCount   int `json:"input_count"`
	PassedCount  int `json:"passed_count"`
	RemovedCount int `json:"removed_count"`
}

// BrowserAssistSummary aggregates browser assist activity across a run.
type BrowserAssistSummary struct {
	Enabled          bool   `json:"enabled"`
	Available        *bool  `json:"available"`
	AttemptedEntries int    `json:"attempted_entries"`
	ResolvedEntries  int    `json:"resolved_entries"`
	Errors           int    `json:"errors"`
	LastError        string `json:"last_error,omitempty"`
}

// StepDetails holds run-level diagnostics, including the outputs and change
// sets of both pass modes so a caller can switch modes without re-resolving.
type StepDetails struct {
	RunID           string                  `json:"run_id"`
	PassMode        PassMode                `json:"pass_mode"`
	ModeOutputs     map[PassMode][]BibEntry `json:"mode_outputs"`
	ModeChanges     map[PassMode][]Change   `json:"mode_changes"`
	Stats           StepStats               `json:"stats"`
	CacheHits       int                     `json:"cache_hits"`
	LocalHits       int                     `json:"local_hits"`
	DownloadedCount int                     `json:"downloaded_count"`
	BrowserAssist   BrowserAssistSummary    `json:"browser_assist"`
}

// StepResult is the outcome of a pdf-fetch run.
type StepResult struct {
	Outputs StepOutputs `json:"outputs"`
	Changes []Change    `json:"changes"`
	Details StepDetails `json:"details"`
}

// WithPassMode returns a copy of r whose passed output, changes and stats
// reflect mode. The resolution outcome itself is unchanged.
func (r *StepResult) WithPassMode(mode PassMode) *StepResult {
	if !mode.Valid() {
		mode = PassAll
	}
	out := *r
	out.Outputs.Passed = r.Details.ModeOutputs[mode]
	out.Changes = r.Details.ModeChanges[mode]
	out.Details.PassMode = mode
	input := len(r.Details.ModeOutputs[PassAll])
	out.Details.Stats = StepStats{
		InputCount:   input,
		PassedCount:  len(out.Outputs.Passed),
		RemovedCount: input - len(out.Outputs.Passed),
	}
	return &out
}
