// Worker runs transcription and question jobs published by an API server
// started with WORKER_MODE=external.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/app"
	"jamesfarrell.me/video-mcq/internal/config"
	"jamesfarrell.me/video-mcq/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger().With("component", "worker")
	slog.SetDefault(logger)

	if cfg.StoreBackend != "postgres" {
		logger.Error("the worker needs the postgres store", "store_backend", cfg.StoreBackend)
		os.Exit(1)
	}
	// this process runs the jobs itself
	cfg.Worker.Mode = "inline"
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("initializing", "error", err)
		os.Exit(1)
	}

	if err := a.Pipeline.Recover(ctx); err != nil {
		logger.Error("recovering unfinished videos", "error", err)
	}

	err = postgres.Listen(ctx, cfg.DatabaseURL, func(notice postgres.JobNotice) {
		job, err := a.Pipeline.Dispatch(ctx, notice)
		switch {
		case errors.Is(err, apperr.ErrVideoBusy):
			logger.Warn("video already has a job", "video_id", notice.VideoID, "kind", notice.Kind)
		case err != nil:
			logger.Error("dispatching job", "video_id", notice.VideoID, "kind", notice.Kind, "error", err)
		default:
			logger.Info("job queued", "job_id", job.ID, "video_id", notice.VideoID, "kind", notice.Kind)
		}
	})
	if err != nil {
		logger.Error("listener stopped", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("closing", "error", err)
	}
}
