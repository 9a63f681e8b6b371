package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jamesfarrell.me/video-mcq/internal/api"
	"jamesfarrell.me/video-mcq/internal/api/handlers"
	"jamesfarrell.me/video-mcq/internal/app"
	"jamesfarrell.me/video-mcq/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

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

	if !a.Pipeline.External() {
		if err := a.Pipeline.Recover(ctx); err != nil {
			logger.Error("recovering unfinished videos", "error", err)
		}
	}

	router := api.NewRouter(api.Deps{
		Store:     a.Store,
		Files:     a.Files,
		Jobs:      a.Pipeline,
		Hub:       a.Hub,
		MaxUpload: cfg.Storage.MaxUploadBytes,
		APIKey:    cfg.APIKey,
		Logger:    logger,
		Embedder:  embedderOrNil(a),
		Searcher:  a.Searcher,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr, "worker_mode", cfg.Worker.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown", "error", err)
	}
	if err := a.Close(shutdownCtx); err != nil {
		logger.Error("closing", "error", err)
	}
}

// embedderOrNil keeps a nil client from becoming a non-nil interface.
func embedderOrNil(a *app.App) handlers.QueryEmbedder {
	if a.Embedder == nil {
		return nil
	}
	return a.Embedder
}
