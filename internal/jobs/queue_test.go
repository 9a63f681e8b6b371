package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"jamesfarrell.me/video-mcq/internal/apperr"
)

func waitState(t *testing.T, q *Queue, id string, want State) Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Get(id)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
		if job.State == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := q.Get(id)
	t.Fatalf("job %s state = %s, want %s", id, job.State, want)
	return job
}

func TestQueueRunsJobs(t *testing.T) {
	q := NewQueue(2, 4, nil)
	defer q.Shutdown(context.Background())

	ok, err := q.Submit("v1", KindTranscribe, func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	bad, err := q.Submit("v2", KindGenerate, func(ctx context.Context) error { return errors.New("provider down") })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	boom, err := q.Submit("v3", KindGenerate, func(ctx context.Context) error { panic("nil map") })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	waitState(t, q, ok.ID, StateSucceeded)
	if job := waitState(t, q, bad.ID, StateFailed); job.Error != "provider down" {
		t.Errorf("failed job error = %q", job.Error)
	}
	waitState(t, q, boom.ID, StateFailed)

	if _, active := q.Active("v1"); active {
		t.Error("finished job still active")
	}
	if _, err := q.Get("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestQueueOneActiveJobPerVideo(t *testing.T) {
	q := NewQueue(2, 4, nil)
	defer q.Shutdown(context.Background())

	release := make(chan struct{})
	first, err := q.Submit("v1", KindTranscribe, func(ctx context.Context) error {
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	_, err = q.Submit("v1", KindGenerate, func(ctx context.Context) error { return nil })
	if !errors.Is(err, apperr.ErrVideoBusy) {
		t.Errorf("second Submit() error = %v, want ErrVideoBusy", err)
	}
	if _, err := q.Submit("v2", KindGenerate, func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Submit() for another video error = %v", err)
	}

	close(release)
	waitState(t, q, first.ID, StateSucceeded)

	if _, err := q.Submit("v1", KindGenerate, func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("Submit() after finish error = %v", err)
	}
}

func TestQueueCancel(t *testing.T) {
	q := NewQueue(1, 4, nil)
	defer q.Shutdown(context.Background())

	started := make(chan struct{})
	job, err := q.Submit("v1", KindTranscribe, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	queued, err := q.Submit("v2", KindTranscribe, func(ctx context.Context) error {
		t.Error("canceled queued job ran")
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	<-started
	if !q.Cancel("v2") {
		t.Error("Cancel(v2) = false for queued job")
	}
	if !q.Cancel("v1") {
		t.Error("Cancel(v1) = false for running job")
	}
	if q.Cancel("v9") {
		t.Error("Cancel() = true for unknown video")
	}

	waitState(t, q, job.ID, StateCanceled)
	waitState(t, q, queued.ID, StateCanceled)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1, 1, nil)
	release := make(chan struct{})
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	started := make(chan struct{})
	if _, err := q.Submit("v1", KindTranscribe, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started
	if _, err := q.Submit("v2", KindTranscribe, func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := q.Submit("v3", KindTranscribe, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Submit() error = %v, want ErrQueueFull", err)
	}
	if _, active := q.Active("v3"); active {
		t.Error("rejected job registered as active")
	}
}

func TestQueueShutdown(t *testing.T) {
	q := NewQueue(1, 4, nil)

	done := make(chan struct{})
	if _, err := q.Submit("v1", KindTranscribe, func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if err := q.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	select {
	case <-done:
	default:
		t.Error("Shutdown() returned before the queued job finished")
	}

	if _, err := q.Submit("v2", KindTranscribe, func(ctx context.Context) error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Submit() after shutdown error = %v, want ErrQueueClosed", err)
	}
}

func TestQueueShutdownTimeoutCancelsRunning(t *testing.T) {
	q := NewQueue(1, 1, nil)
	started := make(chan struct{})
	if _, err := q.Submit("v1", KindTranscribe, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown() error = %v, want DeadlineExceeded", err)
	}
}
