package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/events"
	"jamesfarrell.me/video-mcq/internal/segment"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/files"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// MediaTools probes and converts the stored media. Every call is best effort.
type MediaTools interface {
	Duration(ctx context.Context, videoPath string) (float64, error)
	Thumbnail(ctx context.Context, videoPath, outPath string, atSec float64) error
	ExtractAudio(ctx context.Context, videoPath, tmpDir string) (string, error)
}

// Embedder turns segment text into search vectors.
type Embedder interface {
	GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// QuestionRunner is the step that follows a successful transcription.
type QuestionRunner interface {
	Run(ctx context.Context, videoID string) error
}

type Option func(*Service)

func WithMedia(m MediaTools) Option {
	return func(s *Service) { s.media = m }
}

// WithSearch embeds non-placeholder segments after they are saved.
func WithSearch(e Embedder, searcher storage.Searcher) Option {
	return func(s *Service) {
		s.embedder = e
		s.searcher = searcher
	}
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service transcribes a stored video, segments the transcript and hands the
// video to the question step.
type Service struct {
	store     storage.Store
	files     files.Store
	provider  Provider
	questions QuestionRunner
	windowSec float64

	media    MediaTools
	embedder Embedder
	searcher storage.Searcher
	events   events.Publisher
	logger   *slog.Logger
}

func NewService(store storage.Store, fileStore files.Store, provider Provider, questions QuestionRunner, windowSec float64, opts ...Option) *Service {
	s := &Service{
		store:     store,
		files:     fileStore,
		provider:  provider,
		questions: questions,
		windowSec: windowSec,
		events:    events.Discard,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ThumbnailKey is the file key of a video's generated thumbnail.
func ThumbnailKey(videoID string) string {
	return videoID + "-thumbnail.jpg"
}

// Run moves the video through transcribing to generating and then runs the
// question step. Provider and hand-off failures leave the video in error.
func (s *Service) Run(ctx context.Context, videoID string) error {
	logger := s.logger.With("video_id", videoID)

	video, err := s.store.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	switch video.Status {
	case models.StatusProcessing, models.StatusError:
	default:
		return fmt.Errorf("video %s is %s: %w", videoID, video.Status, apperr.ErrStatusConflict)
	}
	if err := s.transition(ctx, videoID, video.Status, models.StatusTranscribing); err != nil {
		return err
	}
	logger.Info("transcription started", "file_key", video.FileKey)

	segments, err := s.transcribe(ctx, logger, video)
	if err != nil {
		s.fail(ctx, logger.With("stage", "transcribe"), videoID, err)
		return err
	}

	if err := s.transition(ctx, videoID, models.StatusTranscribing, models.StatusGenerating); err != nil {
		return err
	}
	logger.Info("transcription finished", "segments", len(segments))

	if err := s.questions.Run(ctx, videoID); err != nil {
		s.fail(ctx, logger.With("stage", "generate"), videoID, err)
		return fmt.Errorf("generate questions: %w", err)
	}
	return nil
}

func (s *Service) transcribe(ctx context.Context, logger *slog.Logger, video *models.Video) ([]models.Segment, error) {
	mediaPath, cleanup, err := s.files.Fetch(ctx, video.FileKey)
	if err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	defer cleanup()

	probed, audioPath := s.inspect(ctx, logger, video.ID, mediaPath)
	if audioPath != "" {
		defer os.Remove(audioPath)
		mediaPath = audioPath
	}

	tr, err := s.provider.Transcribe(ctx, mediaPath)
	if err != nil {
		return nil, err
	}

	duration := tr.Duration
	if duration <= 0 {
		duration = probed
	}
	if duration <= 0 {
		for _, u := range tr.Utterances {
			duration = max(duration, u.EndSec)
		}
	}
	if duration <= 0 {
		return nil, &apperr.ProviderError{Provider: "transcription", Err: errors.New("transcript has no duration")}
	}

	segments := segment.Build(tr.Utterances, duration, s.windowSec)
	for i := range segments {
		segments[i].ID = uuid.NewString()
	}

	if err := s.store.SetDuration(ctx, video.ID, duration); err != nil {
		return nil, err
	}
	if err := s.store.SaveSegments(ctx, video.ID, segments); err != nil {
		return nil, err
	}
	s.index(ctx, logger, segments)
	return segments, nil
}

// inspect probes the duration, stores a thumbnail and extracts an audio track
// when media tools are configured. Failures are logged and ignored.
func (s *Service) inspect(ctx context.Context, logger *slog.Logger, videoID, mediaPath string) (duration float64, audioPath string) {
	if s.media == nil {
		return 0, ""
	}

	duration, err := s.media.Duration(ctx, mediaPath)
	if err != nil {
		logger.Warn("duration probe failed", "error", err)
	}

	tmpDir, err := os.MkdirTemp("", "media-"+videoID)
	if err != nil {
		logger.Warn("temp dir failed", "error", err)
		return duration, ""
	}
	defer os.RemoveAll(tmpDir)

	at := 5.0
	if duration > 0 && duration < at {
		at = 0
	}
	thumbPath := filepath.Join(tmpDir, "thumbnail.jpg")
	if err := s.media.Thumbnail(ctx, mediaPath, thumbPath, at); err != nil {
		logger.Warn("thumbnail generation failed", "error", err)
	} else if err := s.saveThumbnail(ctx, videoID, thumbPath); err != nil {
		logger.Warn("thumbnail upload failed", "error", err)
	}

	extracted, err := s.media.ExtractAudio(ctx, mediaPath, tmpDir)
	if err != nil {
		logger.Warn("audio extraction failed, sending original media", "error", err)
		return duration, ""
	}
	// tmpDir is removed on return; move the audio out first
	audio, err := os.CreateTemp("", "audio-*"+filepath.Ext(extracted))
	if err != nil {
		return duration, ""
	}
	audio.Close()
	if err := os.Rename(extracted, audio.Name()); err != nil {
		os.Remove(audio.Name())
		return duration, ""
	}
	return duration, audio.Name()
}

// saveThumbnail stores the image and links it to the video. A video deleted
// meanwhile gets no thumbnail file.
func (s *Service) saveThumbnail(ctx context.Context, videoID, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	key := ThumbnailKey(videoID)
	if _, err := s.files.Save(ctx, key, f); err != nil {
		return err
	}
	if err := s.store.SetThumbnail(ctx, videoID, key); err != nil {
		if errors.Is(err, apperr.ErrNotFound) || ctx.Err() != nil {
			if derr := s.files.Delete(context.WithoutCancel(ctx), key); derr != nil {
				s.logger.Warn("removing orphaned thumbnail", "video_id", videoID, "error", derr)
			}
		}
		return err
	}
	return nil
}

func (s *Service) index(ctx context.Context, logger *slog.Logger, segments []models.Segment) {
	if s.embedder == nil || s.searcher == nil {
		return
	}

	var ids, texts []string
	for _, seg := range segments {
		if !segment.IsPlaceholder(seg.Text) {
			ids = append(ids, seg.ID)
			texts = append(texts, seg.Text)
		}
	}
	if len(texts) == 0 {
		return
	}

	vectors, err := s.embedder.GetEmbeddings(ctx, texts)
	if err != nil {
		logger.Warn("segment embedding failed", "error", err)
		return
	}
	byID := make(map[string][]float32, len(ids))
	for i, id := range ids {
		byID[id] = vectors[i]
	}
	if err := s.searcher.SaveSegmentEmbeddings(ctx, byID); err != nil {
		logger.Warn("saving segment embeddings failed", "error", err)
	}
}

func (s *Service) transition(ctx context.Context, videoID string, from, to models.Status) error {
	if err := s.store.TransitionStatus(ctx, videoID, from, to); err != nil {
		return err
	}
	s.events.Publish(events.StatusEvent{VideoID: videoID, Status: to})
	return nil
}

// fail records err on the video. A video deleted meanwhile stays deleted.
func (s *Service) fail(ctx context.Context, logger *slog.Logger, videoID string, err error) {
	logger.Error("video processing failed", "error", err)

	// the run context may already be canceled; the error must still land
	writeCtx := context.WithoutCancel(ctx)
	if serr := s.store.SetStatus(writeCtx, videoID, models.StatusError, err.Error()); serr != nil {
		if !errors.Is(serr, apperr.ErrNotFound) {
			logger.Error("recording failure", "error", serr)
		}
		return
	}
	s.events.Publish(events.StatusEvent{VideoID: videoID, Status: models.StatusError, Error: err.Error()})
}
