package mcq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/events"
	"jamesfarrell.me/video-mcq/internal/segment"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// Service generates questions for every spoken segment of a video.
type Service struct {
	store     storage.Store
	generator Generator
	events    events.Publisher
	logger    *slog.Logger
}

func NewService(store storage.Store, generator Generator, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, generator: generator, events: publisher, logger: logger}
}

// Run replaces the questions of each segment in order and marks the video
// completed. The first failure aborts the remaining segments and leaves the
// video in error.
func (s *Service) Run(ctx context.Context, videoID string) error {
	logger := s.logger.With("video_id", videoID)

	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	segments, err := s.store.Segments(ctx, videoID)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return apperr.Validation("video %s has no transcript segments", videoID)
	}

	switch video.Status {
	case models.StatusGenerating:
	case models.StatusTranscribing:
		return fmt.Errorf("video %s is still transcribing: %w", videoID, apperr.ErrStatusConflict)
	default:
		if err := s.transition(ctx, videoID, video.Status, models.StatusGenerating); err != nil {
			return err
		}
	}
	logger.Info("question generation started", "segments", len(segments))

	total := 0
	for _, seg := range segments {
		if segment.IsPlaceholder(seg.Text) || seg.Text == "" {
			continue
		}

		raw, err := s.generator.Generate(ctx, seg.Text)
		if err != nil {
			err = fmt.Errorf("segment %d: %w", seg.Index+1, err)
			s.fail(ctx, logger, videoID, err)
			return err
		}

		questions, mapErr := Normalize(raw)
		if mapErr != nil {
			logger.Warn("unmapped correct answers", "segment", seg.Index, "error", mapErr)
		}
		if err := s.store.ReplaceSegmentQuestions(ctx, videoID, seg.ID, questions); err != nil {
			s.fail(ctx, logger, videoID, err)
			return err
		}
		total += len(questions)
	}

	if err := s.transition(ctx, videoID, models.StatusGenerating, models.StatusCompleted); err != nil {
		return err
	}
	logger.Info("question generation finished", "questions", total)
	return nil
}

func (s *Service) transition(ctx context.Context, videoID string, from, to models.Status) error {
	if err := s.store.TransitionStatus(ctx, videoID, from, to); err != nil {
		return err
	}
	s.events.Publish(events.StatusEvent{VideoID: videoID, Status: to})
	return nil
}

func (s *Service) fail(ctx context.Context, logger *slog.Logger, videoID string, err error) {
	logger.Error("question generation failed", "error", err)

	writeCtx := context.WithoutCancel(ctx)
	if serr := s.store.SetStatus(writeCtx, videoID, models.StatusError, err.Error()); serr != nil {
		if !errors.Is(serr, apperr.ErrNotFound) {
			logger.Error("recording failure", "error", serr)
		}
		return
	}
	s.events.Publish(events.StatusEvent{VideoID: videoID, Status: models.StatusError, Error: err.Error()})
}
