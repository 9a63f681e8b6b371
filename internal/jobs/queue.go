// Package jobs runs video work on a bounded in-process worker pool with at
// most one active job per video.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"jamesfarrell.me/video-mcq/internal/apperr"
)

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

type Kind string

const (
	KindTranscribe Kind = "transcribe"
	KindGenerate   Kind = "generate"
)

// Job is a snapshot of a submitted unit of work.
type Job struct {
	ID         string    `json:"id"`
	VideoID    string    `json:"videoId"`
	Kind       Kind      `json:"kind"`
	State      State     `json:"state"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

type Func func(ctx context.Context) error

var (
	ErrQueueFull   = errors.New("job queue is full")
	ErrQueueClosed = errors.New("job queue is shut down")
)

// finished jobs kept for lookup
const maxFinished = 1000

type entry struct {
	job    Job
	fn     Func
	ctx    context.Context
	cancel context.CancelFunc
}

type Queue struct {
	mu       sync.Mutex
	jobs     map[string]*entry
	active   map[string]*entry // by video id
	finished []string
	pending  chan *entry
	closed   bool

	base   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

func NewQueue(workers, depth int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if depth < 1 {
		depth = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, stop := context.WithCancel(context.Background())
	q := &Queue{
		jobs:    make(map[string]*entry),
		active:  make(map[string]*entry),
		pending: make(chan *entry, depth),
		base:    base,
		stop:    stop,
		logger:  logger,
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Submit queues fn for videoID. It fails with apperr.ErrVideoBusy while
// another job for the same video is queued or running.
func (q *Queue) Submit(videoID string, kind Kind, fn Func) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Job{}, ErrQueueClosed
	}
	if current, ok := q.active[videoID]; ok {
		return Job{}, fmt.Errorf("video %s has %s job %s: %w", videoID, current.job.Kind, current.job.ID, apperr.ErrVideoBusy)
	}

	ctx, cancel := context.WithCancel(q.base)
	e := &entry{
		job: Job{
			ID:        uuid.NewString(),
			VideoID:   videoID,
			Kind:      kind,
			State:     StateQueued,
			CreatedAt: time.Now(),
		},
		fn:     fn,
		ctx:    ctx,
		cancel: cancel,
	}

	select {
	case q.pending <- e:
	default:
		cancel()
		return Job{}, ErrQueueFull
	}
	q.jobs[e.job.ID] = e
	q.active[videoID] = e
	return e.job, nil
}

func (q *Queue) Get(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.jobs[id]
	if !ok {
		return Job{}, apperr.NotFound("job", id)
	}
	return e.job, nil
}

// Active returns the queued or running job of a video.
func (q *Queue) Active(videoID string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.active[videoID]
	if !ok {
		return Job{}, false
	}
	return e.job, true
}

// Cancel cancels the active job of a video and reports whether there was one.
func (q *Queue) Cancel(videoID string) bool {
	q.mu.Lock()
	e, ok := q.active[videoID]
	q.mu.Unlock()

	if ok {
		e.cancel()
	}
	return ok
}

// Shutdown stops accepting jobs and waits for queued and running ones. When
// ctx expires first, running jobs are canceled.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.stop()
		return nil
	case <-ctx.Done():
		q.stop()
		<-done
		return ctx.Err()
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for e := range q.pending {
		q.run(e)
	}
}

func (q *Queue) run(e *entry) {
	q.mu.Lock()
	if e.ctx.Err() != nil {
		q.finish(e, StateCanceled, "canceled before start")
		q.mu.Unlock()
		return
	}
	e.job.State = StateRunning
	e.job.StartedAt = time.Now()
	job := e.job
	q.mu.Unlock()

	logger := q.logger.With("job_id", job.ID, "video_id", job.VideoID, "kind", job.Kind)
	logger.Info("job started")

	err := safeCall(e.ctx, e.fn)

	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case err == nil:
		q.finish(e, StateSucceeded, "")
		logger.Info("job succeeded", "took", e.job.FinishedAt.Sub(e.job.StartedAt))
	case e.ctx.Err() != nil:
		q.finish(e, StateCanceled, err.Error())
		logger.Warn("job canceled", "error", err)
	default:
		q.finish(e, StateFailed, err.Error())
		logger.Error("job failed", "error", err)
	}
}

// finish records the final state. Caller holds the lock.
func (q *Queue) finish(e *entry, state State, msg string) {
	e.cancel()
	e.job.State = state
	e.job.Error = msg
	e.job.FinishedAt = time.Now()
	if q.active[e.job.VideoID] == e {
		delete(q.active, e.job.VideoID)
	}

	q.finished = append(q.finished, e.job.ID)
	if len(q.finished) > maxFinished {
		delete(q.jobs, q.finished[0])
		q.finished = q.finished[1:]
	}
}

func safeCall(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return fn(ctx)
}
