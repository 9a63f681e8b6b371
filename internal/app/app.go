// Package app assembles the stores, providers, orchestrators and job pipeline
// from a loaded configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"jamesfarrell.me/video-mcq/internal/config"
	"jamesfarrell.me/video-mcq/internal/embeddings"
	"jamesfarrell.me/video-mcq/internal/events"
	"jamesfarrell.me/video-mcq/internal/jobs"
	"jamesfarrell.me/video-mcq/internal/mcq"
	"jamesfarrell.me/video-mcq/internal/media"
	"jamesfarrell.me/video-mcq/internal/pipeline"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/db"
	"jamesfarrell.me/video-mcq/internal/storage/files"
	"jamesfarrell.me/video-mcq/internal/storage/memory"
	"jamesfarrell.me/video-mcq/internal/storage/postgres"
	"jamesfarrell.me/video-mcq/internal/transcription"
)

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Store    storage.Store
	Files    files.Store
	Hub      *events.Hub
	Queue    *jobs.Queue
	Pipeline *pipeline.Pipeline

	// nil unless search is enabled
	Embedder *embeddings.Client
	Searcher storage.Searcher
}

// New connects to the configured backends. With Worker.Mode "external" the
// pipeline only publishes jobs; otherwise it runs them on the local queue.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Hub: events.NewHub()}

	switch cfg.StoreBackend {
	case "postgres":
		conn, err := db.NewConnection(ctx, db.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, conn, cfg.Search.Enabled); err != nil {
			conn.Close()
			return nil, err
		}
		a.DB = conn
		store := postgres.NewStore(conn)
		a.Store = store
		if cfg.Search.Enabled {
			a.Searcher = store
			a.Embedder = embeddings.NewClient(cfg.Search.OpenAIAPIKey)
		}
	case "memory":
		logger.Warn("using the in-memory store; data is lost on exit")
		a.Store = memory.New()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	fileStore, err := newFileStore(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Files = fileStore

	if cfg.Worker.Mode == "external" {
		a.Pipeline = pipeline.NewExternal(a.Store, postgres.NewNotifier(a.DB), logger)
		return a, nil
	}

	provider, err := transcription.NewProvider(cfg.Transcription.Backend, transcription.ProviderConfig{
		APIKey:   cfg.Transcription.APIKey,
		BaseURL:  cfg.Transcription.BaseURL,
		Model:    cfg.Transcription.Model,
		Language: cfg.Transcription.Language,
		Timeout:  cfg.Transcription.Timeout,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	generator, err := mcq.NewGenerator(cfg.MCQ.Backend, cfg.MCQ.ServiceURL, mcq.OpenAIConfig{
		APIKey:  cfg.MCQ.APIKey,
		BaseURL: cfg.MCQ.BaseURL,
		Model:   cfg.MCQ.Model,
		Timeout: cfg.MCQ.Timeout,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	questions := mcq.NewService(a.Store, generator, a.Hub, logger)

	opts := []transcription.Option{
		transcription.WithEvents(a.Hub),
		transcription.WithLogger(logger),
	}
	tools := &media.FFmpeg{FFmpegPath: cfg.Media.FFmpegPath, FFprobePath: cfg.Media.FFprobePath}
	if tools.Available() {
		opts = append(opts, transcription.WithMedia(tools))
	} else {
		logger.Warn("ffmpeg not found, thumbnails and audio extraction disabled")
	}
	if a.Embedder != nil {
		opts = append(opts, transcription.WithSearch(a.Embedder, a.Searcher))
	}
	transcriber := transcription.NewService(a.Store, a.Files, provider, questions, cfg.SegmentDuration, opts...)

	a.Queue = jobs.NewQueue(cfg.Worker.Count, cfg.Worker.QueueDepth, logger)
	a.Pipeline = pipeline.NewInline(a.Store, a.Queue, transcriber, questions, a.Hub, logger)
	return a, nil
}

func newFileStore(ctx context.Context, cfg *config.Config) (files.Store, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return files.NewS3(ctx, cfg.Storage.S3Bucket, cfg.Storage.S3Prefix)
	case "fs", "":
		return files.NewFS(cfg.Storage.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Close drains the job queue within ctx and closes the database.
func (a *App) Close(ctx context.Context) error {
	var err error
	if a.Queue != nil {
		if qerr := a.Queue.Shutdown(ctx); qerr != nil {
			err = fmt.Errorf("job queue shutdown: %w", qerr)
		}
	}
	if a.DB != nil {
		a.DB.Close()
	}
	return err
}
