// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-library/internal/secrets"
	"github.com/pdiddy/pdf-library/pkg/types"
)

func TestFetchConfigLayering(t *testing.T) {
	t.Setenv("UNPAYWALL_EMAIL", "")
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("fetch", map[string]any{
		"pass_mode":   "pdf_only",
		"timeout_sec": 40,
		"max_pdf_mb":  80,
	})

	prev := loadedSecrets
	loadedSecrets = map[string]string{secrets.UnpaywallEmail: "secret@example.com"}
	t.Cleanup(func() { loadedSecrets = prev })

	cmd := fetchCmd
	t.Cleanup(func() {
		for flag := range fetchFlags {
			if f := cmd.Flags().Lookup(flag); f != nil {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			}
		}
	})
	require.NoError(t, cmd.Flags().Set("timeout", "12"))
	require.NoError(t, cmd.Flags().Set("browser-assist", "false"))

	cfg, err := fetchConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, types.PassPDFOnly, cfg.PassMode, "config file value kept")
	assert.Equal(t, 12*time.Second, cfg.Timeout, "flag overrides config file")
	assert.Equal(t, int64(80<<20), cfg.MaxPDFBytes)
	assert.False(t, cfg.BrowserAssist.Enabled)
	assert.Equal(t, "secret@example.com", cfg.UnpaywallEmail)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
}
