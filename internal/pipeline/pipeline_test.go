package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/jobs"
	"jamesfarrell.me/video-mcq/internal/storage/memory"
	"jamesfarrell.me/video-mcq/internal/storage/models"
	"jamesfarrell.me/video-mcq/internal/storage/postgres"
)

type fakeRunner struct {
	mu  sync.Mutex
	ran []string
}

func (r *fakeRunner) Run(ctx context.Context, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, videoID)
	return nil
}

func (r *fakeRunner) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

type fakeNotifier struct {
	notices []postgres.JobNotice
}

func (n *fakeNotifier) Notify(ctx context.Context, notice postgres.JobNotice) error {
	n.notices = append(n.notices, notice)
	return nil
}

func waitDone(t *testing.T, q *jobs.Queue, id string) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := q.Get(id)
		if err != nil {
			t.Fatal(err)
		}
		if job.State != jobs.StateQueued && job.State != jobs.StateRunning {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return jobs.Job{}
}

func TestInlineStartRunsOnQueue(t *testing.T) {
	q := jobs.NewQueue(1, 4, nil)
	defer q.Shutdown(context.Background())
	transcriber, generator := &fakeRunner{}, &fakeRunner{}
	p := NewInline(memory.New(), q, transcriber, generator, nil, nil)

	job, err := p.StartTranscription(context.Background(), "v1")
	if err != nil {
		t.Fatalf("StartTranscription() error = %v", err)
	}
	if job.Kind != jobs.KindTranscribe || job.ID == "" {
		t.Errorf("job = %+v", job)
	}
	if done := waitDone(t, q, job.ID); done.State != jobs.StateSucceeded {
		t.Errorf("job state = %s", done.State)
	}

	job, err = p.StartGeneration(context.Background(), "v1")
	if err != nil {
		t.Fatalf("StartGeneration() error = %v", err)
	}
	waitDone(t, q, job.ID)

	if got := transcriber.calls(); len(got) != 1 || got[0] != "v1" {
		t.Errorf("transcriber calls = %v", got)
	}
	if got := generator.calls(); len(got) != 1 {
		t.Errorf("generator calls = %v", got)
	}
	if got, err := p.Job(job.ID); err != nil || got.ID != job.ID {
		t.Errorf("Job() = %+v, %v", got, err)
	}
}

func TestExternalStartNotifies(t *testing.T) {
	notifier := &fakeNotifier{}
	p := NewExternal(memory.New(), notifier, nil)

	job, err := p.StartTranscription(context.Background(), "v1")
	if err != nil {
		t.Fatalf("StartTranscription() error = %v", err)
	}
	if job.State != jobs.StateQueued {
		t.Errorf("job state = %s, want queued", job.State)
	}
	want := postgres.JobNotice{VideoID: "v1", Kind: string(jobs.KindTranscribe)}
	if len(notifier.notices) != 1 || notifier.notices[0] != want {
		t.Errorf("notices = %+v, want %+v", notifier.notices, want)
	}
	if p.Cancel("v1") {
		t.Error("Cancel() = true in external mode")
	}
	if _, err := p.Job("anything"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Job() error = %v, want ErrNotFound", err)
	}
}

func TestDispatch(t *testing.T) {
	q := jobs.NewQueue(1, 4, nil)
	defer q.Shutdown(context.Background())
	transcriber, generator := &fakeRunner{}, &fakeRunner{}
	p := NewInline(memory.New(), q, transcriber, generator, nil, nil)

	job, err := p.Dispatch(context.Background(), postgres.JobNotice{VideoID: "v1", Kind: "generate"})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	waitDone(t, q, job.ID)
	if len(generator.calls()) != 1 || len(transcriber.calls()) != 0 {
		t.Errorf("dispatch ran transcriber=%v generator=%v", transcriber.calls(), generator.calls())
	}

	if _, err := p.Dispatch(context.Background(), postgres.JobNotice{VideoID: "v1", Kind: "launch"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Dispatch(unknown) error = %v, want ErrValidation", err)
	}
}

func TestRecover(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for id, status := range map[string]models.Status{
		"pending":      models.StatusProcessing,
		"transcribing": models.StatusTranscribing,
		"generating":   models.StatusGenerating,
		"done":         models.StatusCompleted,
	} {
		if err := store.CreateVideo(ctx, &models.Video{ID: id, Status: status}); err != nil {
			t.Fatal(err)
		}
	}

	q := jobs.NewQueue(1, 4, nil)
	transcriber := &fakeRunner{}
	p := NewInline(store, q, transcriber, &fakeRunner{}, nil, nil)

	if err := p.Recover(ctx); err != nil {
		t.Fatalf("Recover() error = %v", err)
	}
	if err := q.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	if got := transcriber.calls(); len(got) != 1 || got[0] != "pending" {
		t.Errorf("re-queued = %v, want [pending]", got)
	}
	for _, id := range []string{"transcribing", "generating"} {
		v, _ := store.GetVideo(ctx, id)
		if v.Status != models.StatusError || v.Error != InterruptedMessage {
			t.Errorf("%s = %s %q, want error %q", id, v.Status, v.Error, InterruptedMessage)
		}
	}
	if v, _ := store.GetVideo(ctx, "done"); v.Status != models.StatusCompleted {
		t.Errorf("completed video changed to %s", v.Status)
	}
}
