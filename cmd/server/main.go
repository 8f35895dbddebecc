// Package main implements the entry point for the stylize API server, which
// registers stylization tasks, issues upload credentials, and reports task
// status.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mosaicworks/stylize-api/internal/api"
	apimiddleware "github.com/mosaicworks/stylize-api/internal/api/middleware"
	"github.com/mosaicworks/stylize-api/internal/app"
	"github.com/mosaicworks/stylize-api/internal/config"
	"github.com/mosaicworks/stylize-api/internal/pipeline"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logg := logger.Setup(cfg.Server)
	logg.Info("configuration loaded", "port", cfg.Server.Port, "store_driver", cfg.Store.Driver)

	collab, err := app.Setup(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := collab.Close(); err != nil {
			logg.Warn("failed to close collaborators", "error", err)
		}
	}()

	handler := api.NewHandler(
		pipeline.NewCreator(collab.Tasks, collab.Blobs),
		pipeline.NewStatusReader(collab.Tasks, collab.Blobs),
	)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Trace)
	r.HandleFunc("/", handler.Dispatch)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logg.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	logg.Info("server stopped")
	return nil
}
