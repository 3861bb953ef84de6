// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-library/internal/pdffetch"
	"github.com/pdiddy/pdf-library/internal/secrets"
	"github.com/pdiddy/pdf-library/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <entries.json|entries.yaml>",
	Short: "Resolve PDFs for bibliographic entries",
	Long: `Fetch reads a list of bibliographic entries (JSON or YAML) and resolves a
PDF for each one. Strategies are tried in order: library cache, local files
named by the entry, direct download from the entry URL, DOI resolver,
publisher templates, OpenAlex, Semantic Scholar and Unpaywall, and finally an
interactive browser window where you can complete publisher logins.

Every outcome is recorded in the PDF library. Settings come from the "fetch"
section of the config file and are overridden by flags.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

// fetchFlags maps command-line flags to step configuration keys.
var fetchFlags = map[string]string{
	"pass-mode":                "pass_mode",
	"reuse-cache":              "reuse_cache",
	"download":                 "download_enabled",
	"timeout":                  "timeout_sec",
	"max-pdf-mb":               "max_pdf_mb",
	"user-agent":               "user_agent",
	"unpaywall-email":          "unpaywall_email",
	"semantic-scholar-api-key": "semantic_scholar_api_key",
	"browser-assist":           "browser_assist_enabled",
	"headed":                   "browser_assist_headed",
	"browser-wait":             "browser_assist_wait_sec",
	"browser-profile":          "browser_assist_profile",
	"browser-profiles-dir":     "browser_profiles_dir",
	"imports-dir":              "imports_dir",
	"projects-dir":             "projects_dir",
	"project-id":               "_project_id",
	"step-id":                  "_step_id",
}

func init() {
	d := pdffetch.DefaultStepConfig()
	f := fetchCmd.Flags()
	f.String("pass-mode", d.PassMode, "entries to pass downstream: all or pdf_only")
	f.Bool("reuse-cache", d.ReuseCache, "reuse PDFs already in the library")
	f.Bool("download", d.DownloadEnabled, "download PDFs from the web")
	f.Float64("timeout", d.TimeoutSec, "per-request timeout in seconds (3-120)")
	f.Int("max-pdf-mb", d.MaxPDFMB, "largest PDF to download in MiB (1-200)")
	f.String("user-agent", "", "User-Agent header for downloads")
	f.String("unpaywall-email", "", "contact address for Unpaywall (default: $UNPAYWALL_EMAIL or .secrets/unpaywall-email)")
	f.String("semantic-scholar-api-key", "", "Semantic Scholar API key (default: .secrets/semantic-scholar-api-key)")
	f.Bool("browser-assist", d.BrowserAssistEnabled, "open a browser for entries direct download cannot resolve")
	f.Bool("headed", d.BrowserAssistHeaded, "show the browser window")
	f.Float64("browser-wait", d.BrowserAssistWaitSec, "seconds to wait per entry in the browser (10-900)")
	f.String("browser-profile", d.BrowserAssistProfile, "persistent browser profile name")
	f.String("browser-profiles-dir", "", "directory of browser profiles (default: next to the library)")
	f.String("imports-dir", "", "directory of imports for relative file references")
	f.String("projects-dir", "", "directory of projects for relative file references")
	f.String("project-id", "", "project id recorded on touched records")
	f.String("step-id", "", "step id recorded on touched records")
	f.String("out", "", "write the step result as JSON to this file")
	f.Bool("quiet", false, "suppress per-entry progress")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	entries, err := pdffetch.ReadEntries(args[0])
	if err != nil {
		return err
	}

	cfg, err := fetchConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := pdffetch.New(openLibrary(), log)
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		engine.Progress = func(done, total int, msg string) {
			fmt.Fprintln(os.Stderr, msg)
		}
	}

	result, err := engine.Run(ctx, entries, cfg)
	if err != nil {
		return err
	}

	printFetchSummary(result)

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := writeJSON(out, result); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", out)
	}
	return nil
}

// fetchConfig layers changed flags over the config file's fetch section and
// fills credentials from .secrets/.
func fetchConfig(cmd *cobra.Command) (types.FetchConfig, error) {
	raw := map[string]any{}
	for k, v := range viper.GetStringMap("fetch") {
		raw[k] = v
	}
	for flag, key := range fetchFlags {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			raw[key] = f.Value.String()
		}
	}

	cfg, err := pdffetch.ParseStepConfig(raw)
	if err != nil {
		return types.FetchConfig{}, err
	}
	secrets.ApplyFetch(loadedSecrets, &cfg)
	return cfg, nil
}

func printFetchSummary(r *types.StepResult) {
	d := r.Details
	fmt.Printf("\nPDF fetch: %d found, %d missing (%d cached, %d local, %d downloaded)\n",
		len(r.Outputs.PDFFound), len(r.Outputs.PDFMissing), d.CacheHits, d.LocalHits, d.DownloadedCount)
	fmt.Printf("Pass mode %s: %d of %d entries passed\n", d.PassMode, d.Stats.PassedCount, d.Stats.InputCount)
	if d.BrowserAssist.AttemptedEntries > 0 {
		fmt.Printf("Browser assist: %d attempted, %d resolved, %d errors\n",
			d.BrowserAssist.AttemptedEntries, d.BrowserAssist.ResolvedEntries, d.BrowserAssist.Errors)
	}

	for _, c := range r.Changes {
		if c.Details.PDFStatus == types.StatusFound {
			continue
		}
		fmt.Printf("  missing  %-24s  %s\n", c.EntryKey, c.Details.MissingReasonLabel)
		if c.Details.MissingReasonHint != "" {
			fmt.Printf("           %-24s  hint: %s\n", "", c.Details.MissingReasonHint)
		}
	}
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
