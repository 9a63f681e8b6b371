// Package memory is a process-local Store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	videos    map[string]models.Video
	segments  map[string][]models.Segment
	questions map[string]models.Question
	order     []string // question ids in insertion order
	now       func() time.Time
}

func New() *Store {
	return &Store{
		videos:    make(map[string]models.Video),
		segments:  make(map[string][]models.Segment),
		questions: make(map[string]models.Question),
		now:       time.Now,
	}
}

func (s *Store) CreateVideo(ctx context.Context, video *models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[video.ID]; ok {
		return apperr.Validation("video %s already exists", video.ID)
	}
	now := s.now()
	if video.CreatedAt.IsZero() {
		video.CreatedAt = now
	}
	video.UpdatedAt = now
	if video.Status == "" {
		video.Status = models.StatusProcessing
	}
	s.videos[video.ID] = *video
	return nil
}

func (s *Store) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.videos[id]
	if !ok {
		return nil, apperr.NotFound("video", id)
	}
	return &v, nil
}

func (s *Store) ListVideos(ctx context.Context) ([]models.VideoSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, q := range s.questions {
		counts[q.VideoID]++
	}

	result := make([]models.VideoSummary, 0, len(s.videos))
	for _, v := range s.videos {
		result = append(result, models.VideoSummary{Video: v, MCQCount: counts[v.ID]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) ListVideosByStatus(ctx context.Context, statuses ...models.Status) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Video
	for _, v := range s.videos {
		for _, st := range statuses {
			if v.Status == st {
				result = append(result, v)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[id]; !ok {
		return apperr.NotFound("video", id)
	}
	delete(s.videos, id)
	delete(s.segments, id)
	for qid, q := range s.questions {
		if q.VideoID == id {
			delete(s.questions, qid)
		}
	}
	s.compactOrder()
	return nil
}

func (s *Store) TransitionStatus(ctx context.Context, id string, from, to models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return apperr.NotFound("video", id)
	}
	if v.Status != from {
		return fmt.Errorf("video %s is %s, expected %s: %w", id, v.Status, from, apperr.ErrStatusConflict)
	}
	v.Status = to
	v.Error = ""
	v.UpdatedAt = s.now()
	s.videos[id] = v
	return nil
}

func (s *Store) SetStatus(ctx context.Context, id string, status models.Status, errMsg string) error {
	return s.update(id, func(v *models.Video) {
		v.Status = status
		v.Error = errMsg
	})
}

func (s *Store) SetDuration(ctx context.Context, id string, seconds float64) error {
	return s.update(id, func(v *models.Video) { v.Duration = seconds })
}

func (s *Store) SetThumbnail(ctx context.Context, id string, key string) error {
	return s.update(id, func(v *models.Video) { v.ThumbnailKey = key })
}

func (s *Store) update(id string, fn func(*models.Video)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		return apperr.NotFound("video", id)
	}
	fn(&v)
	v.UpdatedAt = s.now()
	s.videos[id] = v
	return nil
}

func (s *Store) SaveSegments(ctx context.Context, videoID string, segments []models.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[videoID]; !ok {
		return apperr.NotFound("video", videoID)
	}
	for qid, q := range s.questions {
		if q.VideoID == videoID && q.SegmentID != "" {
			delete(s.questions, qid)
		}
	}
	s.compactOrder()

	copied := make([]models.Segment, len(segments))
	for i, seg := range segments {
		seg.Questions = nil
		copied[i] = seg
	}
	s.segments[videoID] = copied
	return nil
}

func (s *Store) Segments(ctx context.Context, videoID string) ([]models.Segment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.videos[videoID]; !ok {
		return nil, apperr.NotFound("video", videoID)
	}
	stored := s.segments[videoID]
	if len(stored) == 0 {
		return nil, nil
	}

	bySegment := make(map[string][]models.Question)
	for _, qid := range s.order {
		q, ok := s.questions[qid]
		if ok && q.VideoID == videoID && q.SegmentID != "" {
			bySegment[q.SegmentID] = append(bySegment[q.SegmentID], q)
		}
	}

	result := make([]models.Segment, len(stored))
	for i, seg := range stored {
		seg.Questions = bySegment[seg.ID]
		result[i] = seg
	}
	return result, nil
}

func (s *Store) ReplaceSegmentQuestions(ctx context.Context, videoID, segmentID string, questions []models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[videoID]; !ok {
		return apperr.NotFound("video", videoID)
	}
	for qid, q := range s.questions {
		if q.VideoID == videoID && q.SegmentID == segmentID {
			delete(s.questions, qid)
		}
	}
	s.compactOrder()
	for _, q := range questions {
		q.VideoID = videoID
		q.SegmentID = segmentID
		s.insert(q)
	}
	return nil
}

func (s *Store) AddQuestions(ctx context.Context, videoID string, questions []models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[videoID]; !ok {
		return apperr.NotFound("video", videoID)
	}
	for _, q := range questions {
		if _, exists := s.questions[q.ID]; exists {
			return apperr.Validation("question %s already exists", q.ID)
		}
	}
	for _, q := range questions {
		q.VideoID = videoID
		s.insert(q)
	}
	return nil
}

func (s *Store) insert(q models.Question) {
	now := s.now()
	q.CreatedAt = now
	q.UpdatedAt = now
	s.questions[q.ID] = q
	s.order = append(s.order, q.ID)
}

func (s *Store) Questions(ctx context.Context, videoID string) ([]models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Question
	for _, qid := range s.order {
		if q, ok := s.questions[qid]; ok && q.VideoID == videoID {
			result = append(result, q)
		}
	}
	return result, nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, apperr.NotFound("question", id)
	}
	return &q, nil
}

func (s *Store) ReplaceQuestion(ctx context.Context, question models.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.questions[question.ID]
	if !ok {
		return apperr.NotFound("question", question.ID)
	}
	question.VideoID = existing.VideoID
	question.SegmentID = existing.SegmentID
	question.CreatedAt = existing.CreatedAt
	question.UpdatedAt = s.now()
	s.questions[question.ID] = question
	return nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return apperr.NotFound("question", id)
	}
	delete(s.questions, id)
	s.compactOrder()
	return nil
}

// compactOrder drops ids of deleted questions. Caller holds the lock.
func (s *Store) compactOrder() {
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.questions[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}
