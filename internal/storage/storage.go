// Package storage defines the persistence contract for videos, their segments
// and their questions. Questions live in one place, keyed by video id with an
// optional segment id; the per-segment view is a grouping of the same rows.
package storage

import (
	"context"

	"jamesfarrell.me/video-mcq/internal/storage/models"
)

type VideoStore interface {
	CreateVideo(ctx context.Context, video *models.Video) error
	GetVideo(ctx context.Context, id string) (*models.Video, error)
	ListVideos(ctx context.Context) ([]models.VideoSummary, error)
	ListVideosByStatus(ctx context.Context, statuses ...models.Status) ([]models.Video, error)
	// DeleteVideo removes the video with its segments and questions.
	DeleteVideo(ctx context.Context, id string) error

	// TransitionStatus moves the video from one status to another only if its
	// current status is from. It returns apperr.ErrStatusConflict otherwise.
	TransitionStatus(ctx context.Context, id string, from, to models.Status) error
	// SetStatus writes status and error message unconditionally.
	SetStatus(ctx context.Context, id string, status models.Status, errMsg string) error
	SetDuration(ctx context.Context, id string, seconds float64) error
	SetThumbnail(ctx context.Context, id string, key string) error
}

type SegmentStore interface {
	// SaveSegments replaces the segment list of a video.
	SaveSegments(ctx context.Context, videoID string, segments []models.Segment) error
	// Segments returns the ordered segments with their questions embedded.
	Segments(ctx context.Context, videoID string) ([]models.Segment, error)
}

type QuestionStore interface {
	// ReplaceSegmentQuestions swaps the questions attached to one segment.
	ReplaceSegmentQuestions(ctx context.Context, videoID, segmentID string, questions []models.Question) error
	AddQuestions(ctx context.Context, videoID string, questions []models.Question) error
	Questions(ctx context.Context, videoID string) ([]models.Question, error)
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	ReplaceQuestion(ctx context.Context, question models.Question) error
	DeleteQuestion(ctx context.Context, id string) error
}

type Store interface {
	VideoStore
	SegmentStore
	QuestionStore
}

// Searcher finds segments close to a query embedding.
type Searcher interface {
	SaveSegmentEmbeddings(ctx context.Context, embeddings map[string][]float32) error
	SearchSegments(ctx context.Context, embedding []float32, limit int) ([]models.SearchResult, error)
}
