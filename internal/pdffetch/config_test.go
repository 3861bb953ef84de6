// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdffetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-library/pkg/types"
)

func TestParseStepConfigDefaults(t *testing.T) {
	t.Setenv(EnvUnpaywallEmail, "")

	cfg, err := ParseStepConfig(nil)
	require.NoError(t, err)

	want := types.DefaultFetchConfig()
	assert.Equal(t, want.PassMode, cfg.PassMode)
	assert.Equal(t, want.Timeout, cfg.Timeout)
	assert.Equal(t, want.UserAgent, cfg.UserAgent)
	assert.Equal(t, want.MaxPDFBytes, cfg.MaxPDFBytes)
	assert.True(t, cfg.ReuseCache)
	assert.True(t, cfg.DownloadEnabled)
	assert.Equal(t, want.BrowserAssist.Enabled, cfg.BrowserAssist.Enabled)
	assert.Equal(t, types.DefaultBrowserWait, cfg.BrowserAssist.Wait)
	assert.Equal(t, types.DefaultProfile, cfg.BrowserAssist.Profile)
	assert.Empty(t, cfg.UnpaywallEmail)
}

func TestParseStepConfig(t *testing.T) {
	t.Setenv(EnvUnpaywallEmail, "")

	cfg, err := ParseStepConfig(map[string]any{
		"pass_mode":                "pdf_only",
		"reuse_cache":              "false",
		"timeout_sec":              "7.5",
		"max_pdf_mb":               12,
		"user_agent":               "  research-bot/1.0 ",
		"unpaywall_email":          "lib@example.com",
		"semantic_scholar_api_key": "s2-key",
		"browser_assist_enabled":   false,
		"browser_assist_wait_sec":  45,
		"browser_assist_profile":   "acm",
		"browser_profiles_dir":     "/var/profiles",
		"imports_dir":              "/data/imports",
		"projects_dir":             "/data/projects",
		"_project_id":              "p1",
		"_step_id":                 "s1",
		"unknown_key":              "ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, types.PassPDFOnly, cfg.PassMode)
	assert.False(t, cfg.ReuseCache)
	assert.True(t, cfg.DownloadEnabled)
	assert.Equal(t, 7500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, int64(12<<20), cfg.MaxPDFBytes)
	assert.Equal(t, "research-bot/1.0", cfg.UserAgent)
	assert.Equal(t, "lib@example.com", cfg.UnpaywallEmail)
	assert.Equal(t, "s2-key", cfg.SemanticScholarAPIKey)
	assert.False(t, cfg.BrowserAssist.Enabled)
	assert.Equal(t, 45*time.Second, cfg.BrowserAssist.Wait)
	assert.Equal(t, "acm", cfg.BrowserAssist.Profile)
	assert.Equal(t, "/var/profiles", cfg.BrowserAssist.ProfilesDir)
	assert.Equal(t, types.LocalConfig{ImportsDir: "/data/imports", ProjectsDir: "/data/projects"}, cfg.Local)
	assert.Equal(t, "p1", cfg.ProjectID)
	assert.Equal(t, "s1", cfg.StepID)
}

func TestParseStepConfigClamps(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		timeout  time.Duration
		maxBytes int64
		wait     time.Duration
		passMode types.PassMode
	}{
		{
			name:     "below minimum",
			raw:      map[string]any{"timeout_sec": 1, "max_pdf_mb": 0, "browser_assist_wait_sec": 2},
			timeout:  types.MinTimeout,
			maxBytes: types.DefaultMaxPDFMB << 20,
			wait:     types.MinBrowserWait,
			passMode: types.PassAll,
		},
		{
			name:     "above maximum",
			raw:      map[string]any{"timeout_sec": 600, "max_pdf_mb": 1000, "browser_assist_wait_sec": 3600},
			timeout:  types.MaxTimeout,
			maxBytes: types.MaxPDFMB << 20,
			wait:     types.MaxBrowserWait,
			passMode: types.PassAll,
		},
		{
			name:     "unknown pass mode",
			raw:      map[string]any{"pass_mode": "everything"},
			timeout:  types.DefaultTimeout,
			maxBytes: types.DefaultMaxPDFMB << 20,
			wait:     types.DefaultBrowserWait,
			passMode: types.PassAll,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseStepConfig(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.timeout, cfg.Timeout)
			assert.Equal(t, tt.maxBytes, cfg.MaxPDFBytes)
			assert.Equal(t, tt.wait, cfg.BrowserAssist.Wait)
			assert.Equal(t, tt.passMode, cfg.PassMode)
		})
	}
}

func TestParseStepConfigUnpaywallEnv(t *testing.T) {
	t.Setenv(EnvUnpaywallEmail, " env@example.com ")

	cfg, err := ParseStepConfig(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", cfg.UnpaywallEmail)

	cfg, err = ParseStepConfig(map[string]any{"unpaywall_email": "cfg@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cfg@example.com", cfg.UnpaywallEmail)
}

func TestParseStepConfigInvalid(t *testing.T) {
	_, err := ParseStepConfig(map[string]any{"timeout_sec": "soon"})
	assert.Error(t, err)

	_, err = ParseStepConfig(map[string]any{"max_pdf_mb": map[string]any{"value": 1}})
	assert.Error(t, err)
}
