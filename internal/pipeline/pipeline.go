// Package pipeline starts transcription and question jobs for videos, either
// on the local worker pool or by notifying an external worker.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/events"
	"jamesfarrell.me/video-mcq/internal/jobs"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/models"
	"jamesfarrell.me/video-mcq/internal/storage/postgres"
)

// InterruptedMessage is recorded on videos that were mid-run when the
// process stopped.
const InterruptedMessage = "processing interrupted"

type Runner interface {
	Run(ctx context.Context, videoID string) error
}

type Notifier interface {
	Notify(ctx context.Context, notice postgres.JobNotice) error
}

type Pipeline struct {
	store       storage.VideoStore
	queue       *jobs.Queue
	transcriber Runner
	generator   Runner
	notifier    Notifier
	events      events.Publisher
	logger      *slog.Logger
}

// NewInline runs jobs on queue in this process.
func NewInline(store storage.VideoStore, queue *jobs.Queue, transcriber, generator Runner, publisher events.Publisher, logger *slog.Logger) *Pipeline {
	if publisher == nil {
		publisher = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:       store,
		queue:       queue,
		transcriber: transcriber,
		generator:   generator,
		events:      publisher,
		logger:      logger,
	}
}

// NewExternal hands jobs to a worker process through notifier.
func NewExternal(store storage.VideoStore, notifier Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{store: store, notifier: notifier, events: events.Discard, logger: logger}
}

// External reports whether jobs run in another process.
func (p *Pipeline) External() bool {
	return p.queue == nil
}

// StartTranscription transcribes the video and then generates its questions.
func (p *Pipeline) StartTranscription(ctx context.Context, videoID string) (jobs.Job, error) {
	return p.start(ctx, videoID, jobs.KindTranscribe, p.transcriber)
}

// StartGeneration regenerates the questions of an already segmented video.
func (p *Pipeline) StartGeneration(ctx context.Context, videoID string) (jobs.Job, error) {
	return p.start(ctx, videoID, jobs.KindGenerate, p.generator)
}

func (p *Pipeline) start(ctx context.Context, videoID string, kind jobs.Kind, runner Runner) (jobs.Job, error) {
	if p.External() {
		if err := p.notifier.Notify(ctx, postgres.JobNotice{VideoID: videoID, Kind: string(kind)}); err != nil {
			return jobs.Job{}, err
		}
		p.logger.Info("job published", "video_id", videoID, "kind", kind)
		return jobs.Job{VideoID: videoID, Kind: kind, State: jobs.StateQueued}, nil
	}

	return p.queue.Submit(videoID, kind, func(ctx context.Context) error {
		return runner.Run(ctx, videoID)
	})
}

// Dispatch starts the job described by a notification from the API process.
func (p *Pipeline) Dispatch(ctx context.Context, notice postgres.JobNotice) (jobs.Job, error) {
	switch jobs.Kind(notice.Kind) {
	case jobs.KindTranscribe:
		return p.StartTranscription(ctx, notice.VideoID)
	case jobs.KindGenerate:
		return p.StartGeneration(ctx, notice.VideoID)
	default:
		return jobs.Job{}, apperr.Validation("unknown job kind %q", notice.Kind)
	}
}

// Cancel stops the local job of a video, if any.
func (p *Pipeline) Cancel(videoID string) bool {
	if p.External() {
		return false
	}
	return p.queue.Cancel(videoID)
}

// Job looks up a local job.
func (p *Pipeline) Job(id string) (jobs.Job, error) {
	if p.External() {
		return jobs.Job{}, apperr.NotFound("job", id)
	}
	return p.queue.Get(id)
}

// Recover re-queues videos that were uploaded but never started and marks
// videos interrupted mid-run as failed. Interrupted runs are not retried.
func (p *Pipeline) Recover(ctx context.Context) error {
	interrupted, err := p.store.ListVideosByStatus(ctx, models.StatusTranscribing, models.StatusGenerating)
	if err != nil {
		return fmt.Errorf("list interrupted videos: %w", err)
	}
	for _, v := range interrupted {
		if err := p.store.SetStatus(ctx, v.ID, models.StatusError, InterruptedMessage); err != nil {
			p.logger.Error("marking interrupted video failed", "video_id", v.ID, "error", err)
			continue
		}
		p.events.Publish(events.StatusEvent{VideoID: v.ID, Status: models.StatusError, Error: InterruptedMessage})
		p.logger.Warn("video interrupted", "video_id", v.ID, "was", v.Status)
	}

	pending, err := p.store.ListVideosByStatus(ctx, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("list pending videos: %w", err)
	}
	for _, v := range pending {
		if _, err := p.StartTranscription(ctx, v.ID); err != nil && !errors.Is(err, apperr.ErrVideoBusy) {
			p.logger.Error("re-queue failed", "video_id", v.ID, "error", err)
			continue
		}
		p.logger.Info("re-queued video", "video_id", v.ID)
	}
	return nil
}
