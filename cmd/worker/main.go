// Package main implements the entry point for the stylize worker, which runs
// the validation and transformation stages against the uploads and handoff
// queues.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mosaicworks/stylize-api/internal/app"
	"github.com/mosaicworks/stylize-api/internal/config"
	"github.com/mosaicworks/stylize-api/internal/pipeline"
	"github.com/mosaicworks/stylize-api/internal/platform/logger"
	"github.com/mosaicworks/stylize-api/internal/platform/sqsqueue"
	"github.com/mosaicworks/stylize-api/internal/transform"
	"github.com/mosaicworks/stylize-api/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("worker exited: %v", err)
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
	logg.Info("configuration loaded",
		"store_driver", cfg.Store.Driver,
		"workers", cfg.Pipeline.Workers,
		"max_upload_bytes", cfg.Pipeline.MaxUploadBytes)

	collab, err := app.Setup(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := collab.Close(); err != nil {
			logg.Warn("failed to close collaborators", "error", err)
		}
	}()

	validator := pipeline.NewValidator(collab.Tasks, collab.Blobs, collab.Handoff, cfg.Pipeline.MaxUploadBytes)
	transformer := pipeline.NewTransformer(collab.Tasks, collab.Blobs, transform.NewStylizer())

	validateUpload := func(ctx context.Context, body string) error {
		keys, err := sqsqueue.ParseObjectCreatedEvent(body)
		if err != nil {
			logger.FromContext(ctx).Warn("discarding unparseable storage event", "error", err)
			return nil
		}
		for _, key := range keys {
			if err := validator.Validate(ctx, key); err != nil {
				return err
			}
		}
		return nil
	}

	processHandoff := func(ctx context.Context, body string) error {
		taskID, err := sqsqueue.ParseHandoff(body)
		if err != nil {
			logger.FromContext(ctx).Warn("discarding unparseable handoff message", "error", err)
			return nil
		}
		return transformer.Process(ctx, taskID)
	}

	consumers := []*worker.Consumer{
		worker.NewConsumer("validator", collab.Uploads, validateUpload, cfg.Pipeline.Workers, logg),
		worker.NewConsumer("transformer", collab.Handoff, processHandoff, cfg.Pipeline.Workers, logg),
	}

	// Health and metrics listener. The worker has no request surface of its
	// own, so failures here are logged rather than fatal.
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Warn("health listener failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(ctx)
		}()
	}

	<-ctx.Done()
	logg.Info("shutdown signal received, draining consumers")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Warn("health listener shutdown failed", "error", err)
	}

	logg.Info("worker stopped")
	return nil
}
