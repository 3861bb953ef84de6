// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdffetch

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/pdiddy/pdf-library/pkg/types"
)

// EnvUnpaywallEmail supplies the Unpaywall contact address when the step
// configuration has none.
const EnvUnpaywallEmail = "UNPAYWALL_EMAIL"

// StepConfig is the flat, pipeline-facing form of the fetch configuration.
// Keys match the step's configuration schema.
type StepConfig struct {
	PassMode        string  `mapstructure:"pass_mode"`
	ReuseCache      bool    `mapstructure:"reuse_cache"`
	DownloadEnabled bool    `mapstructure:"download_enabled"`
	TimeoutSec      float64 `mapstructure:"timeout_sec"`
	MaxPDFMB        int     `mapstructure:"max_pdf_mb"`
	UserAgent       string  `mapstructure:"user_agent"`

	UnpaywallEmail        string `mapstructure:"unpaywall_email"`
	SemanticScholarAPIKey string `mapstructure:"semantic_scholar_api_key"`

	BrowserAssistEnabled bool    `mapstructure:"browser_assist_enabled"`
	BrowserAssistHeaded  bool    `mapstructure:"browser_assist_headed"`
	BrowserAssistWaitSec float64 `mapstructure:"browser_assist_wait_sec"`
	BrowserAssistProfile string  `mapstructure:"browser_assist_profile"`
	BrowserProfilesDir   string  `mapstructure:"browser_profiles_dir"`

	ImportsDir  string `mapstructure:"imports_dir"`
	ProjectsDir string `mapstructure:"projects_dir"`

	// Set by the pipeline runner, not by users.
	ProjectID string `mapstructure:"_project_id"`
	StepID    string `mapstructure:"_step_id"`
}

// DefaultStepConfig returns the documented defaults.
func DefaultStepConfig() StepConfig {
	d := types.DefaultFetchConfig()
	return StepConfig{
		PassMode:             string(d.PassMode),
		ReuseCache:           d.ReuseCache,
		DownloadEnabled:      d.DownloadEnabled,
		TimeoutSec:           d.Timeout.Seconds(),
		MaxPDFMB:             types.DefaultMaxPDFMB,
		BrowserAssistEnabled: d.BrowserAssist.Enabled,
		BrowserAssistHeaded:  d.BrowserAssist.Headed,
		BrowserAssistWaitSec: d.BrowserAssist.Wait.Seconds(),
		BrowserAssistProfile: d.BrowserAssist.Profile,
	}
}

// ParseStepConfig decodes a pipeline configuration map over the defaults.
// Values are weakly typed ("30" is accepted for a number, "false" for a
// boolean); unknown keys are ignored. The result is normalized.
func ParseStepConfig(raw map[string]any) (types.FetchConfig, error) {
	sc := DefaultStepConfig()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &sc,
	})
	if err != nil {
		return types.FetchConfig{}, fmt.Errorf("creating config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return types.FetchConfig{}, fmt.Errorf("decoding pdf-fetch config: %w", err)
	}
	return sc.FetchConfig(), nil
}

// FetchConfig converts the flat configuration to the engine's form,
// applying the UNPAYWALL_EMAIL fallback and range clamping.
func (s StepConfig) FetchConfig() types.FetchConfig {
	email := strings.TrimSpace(s.UnpaywallEmail)
	if email == "" {
		email = strings.TrimSpace(os.Getenv(EnvUnpaywallEmail))
	}
	cfg := types.FetchConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   seconds(s.TimeoutSec),
			UserAgent: strings.TrimSpace(s.UserAgent),
		},
		PassMode:              types.PassMode(strings.TrimSpace(s.PassMode)),
		ReuseCache:            s.ReuseCache,
		DownloadEnabled:       s.DownloadEnabled,
		MaxPDFBytes:           int64(s.MaxPDFMB) << 20,
		UnpaywallEmail:        email,
		SemanticScholarAPIKey: strings.TrimSpace(s.SemanticScholarAPIKey),
		BrowserAssist: types.BrowserAssistConfig{
			Enabled:     s.BrowserAssistEnabled,
			Headed:      s.BrowserAssistHeaded,
			Wait:        seconds(s.BrowserAssistWaitSec),
			Profile:     strings.TrimSpace(s.BrowserAssistProfile),
			ProfilesDir: s.BrowserProfilesDir,
		},
		Local: types.LocalConfig{
			ImportsDir:  s.ImportsDir,
			ProjectsDir: s.ProjectsDir,
		},
		ProjectID: strings.TrimSpace(s.ProjectID),
		StepID:    strings.TrimSpace(s.StepID),
	}
	return cfg.Normalize()
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
