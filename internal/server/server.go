// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the PDF library over HTTP for browsing, downloading
// and deleting records.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/pdf-library/internal/library"
	"github.com/pdiddy/pdf-library/internal/logger"
	"github.com/pdiddy/pdf-library/pkg/types"
)

const shutdownTimeout = 10 * time.Second

// Server serves one library. Entries, when given, supply year and database
// for download file names of records that lack them.
type Server struct {
	lib     *library.Library
	entries []types.BibEntry
	log     *logger.Logger
}

// New returns a Server for lib.
func New(lib *library.Library, entries []types.BibEntry, log *logger.Logger) *Server {
	return &Server{lib: lib, entries: entries, log: logger.OrNop(log)}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog())

	router.GET("/healthcheck", healthCheck)

	api := router.Group("/api/pdf-library")
	{
		api.GET("", s.listRecords)
		api.GET("/stats", s.stats)
		api.GET("/:id/download", s.download)
		api.GET("/:id/view", s.view)
		api.DELETE("/:id", s.deleteRecord)
	}
	return router
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("pdf library api listening", "addr", addr, "library", s.lib.Dir())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.log.Info("pdf library api stopped")
	return nil
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func healthCheck(c *gin.Context) {
	respondOK(c, gin.H{"status": "ok"})
}
