// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdf-library CLI.
// It resolves PDFs for bibliographic entries into a shared library and
// manages that library (list, stats, get, delete, inspect, export, serve).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-library/internal/library"
	"github.com/pdiddy/pdf-library/internal/logger"
	"github.com/pdiddy/pdf-library/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds credentials loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	// log is the structured logger built from --log-mode.
	log *logger.Logger
)

// rootCmd is the base command for the pdf-library CLI.
var rootCmd = &cobra.Command{
	Use:   "pdf-library",
	Short: "Resolve, cache and manage PDFs for bibliographic entries",
	Long: `pdf-library finds PDFs for bibliographic entries and keeps them in a shared,
content-addressed library keyed by DOI or URL.

The fetch command tries the library cache, local files referenced by the
entries, open-access APIs and publisher links, and finally an interactive
browser window for paywalled publishers. The library and serve commands
browse, export and prune the library.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine.
		_ = godotenv.Load()

		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		l, err := logger.New(viper.GetString("log_mode"))
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			log.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./pdf-library.yaml or ~/.config/pdf-library/config.yaml)")
	rootCmd.PersistentFlags().String("library-dir", "", "PDF library directory (default: $PDF_LIBRARY_DIR or ./pdf_library)")
	rootCmd.PersistentFlags().String("log-mode", "dev", "log format: dev (console, debug) or prod (JSON, info)")

	_ = viper.BindPFlag("library_dir", rootCmd.PersistentFlags().Lookup("library-dir"))
	_ = viper.BindPFlag("log_mode", rootCmd.PersistentFlags().Lookup("log-mode"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdf-library")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdf-library"))
		}
	}

	viper.SetEnvPrefix("PDF_LIBRARY")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openLibrary returns the library selected by --library-dir, the config
// file or the environment.
func openLibrary() *library.Library {
	return library.Open(viper.GetString("library_dir"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
