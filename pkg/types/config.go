package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds each individual network call (default 20s, 3s-120s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests. Publishers
	// reject obvious bot agents, so the default mimics a desktop browser.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// PassMode selects which entries the fetch step passes downstream.
type PassMode string

const (
	// PassAll keeps every entry, annotating the ones without a PDF.
	PassAll PassMode = "all"

	// PassPDFOnly keeps only entries with a resolved PDF.
	PassPDFOnly PassMode = "pdf_only"
)

// Valid reports whether m is a known pass mode.
func (m PassMode) Valid() bool {
	return m == PassAll || m == PassPDFOnly
}

// BrowserAssistConfig controls the interactive browser fallback.
type BrowserAssistConfig struct {
	// Enabled turns browser assist on for entries that direct download
	// could not resolve.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Headed shows the browser window so the user can complete logins and
	// challenges.
	Headed bool `json:"headed" yaml:"headed"`

	// Wait is the per-entry polling window (default 180s, 10s-900s).
	Wait time.Duration `json:"wait" yaml:"wait"`

	// Profile names the persistent browser profile; sanitised before use.
	Profile string `json:"profile" yaml:"profile"`

	// ProfilesDir holds one user-data directory per profile.
	ProfilesDir string `json:"profiles_dir" yaml:"profiles_dir"`
}

// LocalConfig locates the screening workspace used to resolve relative
// file references in entries.
type LocalConfig struct {
	// ImportsDir contains one directory per import (entry field _source_import).
	ImportsDir string `json:"imports_dir" yaml:"imports_dir"`

	// ProjectsDir contains one directory per project, each with sources/<category>.
	ProjectsDir string `json:"projects_dir" yaml:"projects_dir"`

	// WorkDir is the last-resort base directory (default: process working directory).
	WorkDir string `json:"work_dir" yaml:"work_dir"`
}

// FetchConfig holds settings for one pdf-fetch run.
type FetchConfig struct {
	HTTPConfig `yaml:",inline"`

	PassMode        PassMode `json:"pass_mode" yaml:"pass_mode"`
	ReuseCache      bool     `json:"reuse_cache" yaml:"reuse_cache"`
	DownloadEnabled bool     `json:"download_enabled" yaml:"download_enabled"`

	// MaxPDFBytes caps the size of a single downloaded PDF (default 50 MiB,
	// 1-200 MiB).
	MaxPDFBytes int64 `json:"max_pdf_bytes" yaml:"max_pdf_bytes"`

	// UnpaywallEmail enables Unpaywall lookups, which require a contact address.
	UnpaywallEmail string `json:"unpaywall_email,omitempty" yaml:"unpaywall_email,omitempty"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	BrowserAssist BrowserAssistConfig `json:"browser_assist" yaml:"browser_assist"`
	Local         LocalConfig         `json:"local" yaml:"local"`

	// ProjectID and StepID are recorded on every touched record.
	ProjectID string `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	StepID    string `json:"step_id,omitempty" yaml:"step_id,omitempty"`
}

// Limits applied by FetchConfig.Normalize.
const (
	DefaultTimeout     = 20 * time.Second
	MinTimeout         = 3 * time.Second
	MaxTimeout         = 120 * time.Second
	DefaultMaxPDFMB    = 50
	MinPDFMB           = 1
	MaxPDFMB           = 200
	DefaultBrowserWait = 180 * time.Second
	MinBrowserWait     = 10 * time.Second
	MaxBrowserWait     = 900 * time.Second
	DefaultProfile     = "default"
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// DefaultFetchConfig returns the configuration used when a caller supplies
// no overrides.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		HTTPConfig: HTTPConfig{
			Timeout:   DefaultTimeout,
			UserAgent: DefaultUserAgent,
		},
		PassMode:        PassAll,
		ReuseCache:      true,
		DownloadEnabled: true,
		MaxPDFBytes:     DefaultMaxPDFMB << 20,
		BrowserAssist: BrowserAssistConfig{
			Enabled: true,
			Headed:  true,
			Wait:    DefaultBrowserWait,
			Profile: DefaultProfile,
		},
	}
}

// Normalize fills defaults and clamps numeric settings into their allowed
// ranges. Out-of-range values are clamped, never rejected.
func (c FetchConfig) Normalize() FetchConfig {
	if !c.PassMode.Valid() {
		c.PassMode = PassAll
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.Timeout = clampDuration(c.Timeout, MinTimeout, MaxTimeout)
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxPDFBytes <= 0 {
		c.MaxPDFBytes = DefaultMaxPDFMB << 20
	}
	c.MaxPDFBytes = min(max(c.MaxPDFBytes, MinPDFMB<<20), MaxPDFMB<<20)
	if c.BrowserAssist.Wait <= 0 {
		c.BrowserAssist.Wait = DefaultBrowserWait
	}
	c.BrowserAssist.Wait = clampDuration(c.BrowserAssist.Wait, MinBrowserWait, MaxBrowserWait)
	if c.BrowserAssist.Profile == "" {
		c.BrowserAssist.Profile = DefaultProfile
	}
	return c
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	return min(max(d, lo), hi)
}
