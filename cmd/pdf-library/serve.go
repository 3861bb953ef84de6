// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdf-library/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library management API",
	Long: `Serve exposes the PDF library over HTTP under /api/pdf-library: list and
search records, statistics, download or view a PDF, and delete records.
An optional entries file supplies year and database for download names.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().String("entries", "", "entries file (JSON or YAML) used for download names")
	_ = viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	entries, err := optionalEntries(cmd)
	if err != nil {
		return err
	}
	if viper.GetString("log_mode") == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(openLibrary(), entries, log).Run(ctx, viper.GetString("serve.addr"))
}
