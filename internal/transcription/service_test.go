package transcription

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/events"
	"jamesfarrell.me/video-mcq/internal/storage/files"
	"jamesfarrell.me/video-mcq/internal/storage/memory"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

type fakeProvider struct {
	transcript *Transcript
	err        error
	gotPath    string
}

func (p *fakeProvider) Transcribe(ctx context.Context, mediaPath string) (*Transcript, error) {
	p.gotPath = mediaPath
	return p.transcript, p.err
}

type fakeRunner struct {
	calls int
	err   error
}

func (r *fakeRunner) Run(ctx context.Context, videoID string) error {
	r.calls++
	return r.err
}

type fakeMedia struct {
	duration float64
}

func (m *fakeMedia) Duration(ctx context.Context, path string) (float64, error) {
	return m.duration, nil
}

func (m *fakeMedia) Thumbnail(ctx context.Context, videoPath, outPath string, atSec float64) error {
	return os.WriteFile(outPath, []byte("jpeg"), 0644)
}

func (m *fakeMedia) ExtractAudio(ctx context.Context, videoPath, tmpDir string) (string, error) {
	return "", errors.New("no ffmpeg here")
}

type recorder struct {
	events []events.StatusEvent
}

func (r *recorder) Publish(ev events.StatusEvent) { r.events = append(r.events, ev) }

type fixture struct {
	store *memory.Store
	files *files.FS
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fs, err := files.NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS() error = %v", err)
	}
	f := &fixture{store: memory.New(), files: fs}

	ctx := context.Background()
	if _, err := fs.Save(ctx, "v1.mp4", strings.NewReader("fake mp4")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := f.store.CreateVideo(ctx, &models.Video{ID: "v1", Title: "lecture", FileKey: "v1.mp4"}); err != nil {
		t.Fatalf("CreateVideo() error = %v", err)
	}
	return f
}

func TestRunSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := &fakeProvider{transcript: &Transcript{
		Utterances: []models.Utterance{
			{Text: "a", StartSec: 0, EndSec: 5},
			{Text: "b", StartSec: 310, EndSec: 320},
		},
		Duration: 600,
	}}
	runner := &fakeRunner{}
	rec := &recorder{}

	svc := NewService(f.store, f.files, provider, runner, 300, WithEvents(rec))
	if err := svc.Run(ctx, "v1"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	video, _ := f.store.GetVideo(ctx, "v1")
	if video.Status != models.StatusGenerating {
		t.Errorf("status = %s, want generating", video.Status)
	}
	if video.Duration != 600 {
		t.Errorf("duration = %v, want 600", video.Duration)
	}
	if runner.calls != 1 {
		t.Errorf("question step ran %d times, want 1", runner.calls)
	}

	segs, _ := f.store.Segments(ctx, "v1")
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[0].Text != "a" || segs[1].Text != "b" {
		t.Errorf("segment texts = %q, %q", segs[0].Text, segs[1].Text)
	}
	if segs[0].ID == "" || segs[0].ID == segs[1].ID {
		t.Errorf("segment ids not assigned: %q, %q", segs[0].ID, segs[1].ID)
	}

	want := []models.Status{models.StatusTranscribing, models.StatusGenerating}
	if len(rec.events) != len(want) {
		t.Fatalf("published %d events, want %d", len(rec.events), len(want))
	}
	for i, st := range want {
		if rec.events[i].Status != st {
			t.Errorf("event %d = %s, want %s", i, rec.events[i].Status, st)
		}
	}
}

func TestRunProviderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := &fakeProvider{err: &apperr.ProviderError{Provider: "whisper", Err: errors.New("quota exceeded")}}
	runner := &fakeRunner{}

	svc := NewService(f.store, f.files, provider, runner, 300)
	err := svc.Run(ctx, "v1")

	var perr *apperr.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("Run() error = %v, want ProviderError", err)
	}

	video, _ := f.store.GetVideo(ctx, "v1")
	if video.Status != models.StatusError {
		t.Errorf("status = %s, want error", video.Status)
	}
	if !strings.Contains(video.Error, "quota exceeded") {
		t.Errorf("error message = %q", video.Error)
	}
	if segs, _ := f.store.Segments(ctx, "v1"); segs != nil {
		t.Errorf("segments saved after failure: %+v", segs)
	}
	if runner.calls != 0 {
		t.Error("question step ran after provider failure")
	}
}

func TestRunHandOffFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := &fakeProvider{transcript: &Transcript{
		Utterances: []models.Utterance{{Text: "a", StartSec: 1}},
		Duration:   30,
	}}
	runner := &fakeRunner{err: errors.New("mcq service down")}

	svc := NewService(f.store, f.files, provider, runner, 300)
	if err := svc.Run(ctx, "v1"); err == nil {
		t.Fatal("Run() error = nil, want hand-off error")
	}

	video, _ := f.store.GetVideo(ctx, "v1")
	if video.Status != models.StatusError || video.Error == "" {
		t.Errorf("video = %s %q, want error with message", video.Status, video.Error)
	}
}

func TestRunRejectsActiveVideo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.store.SetStatus(ctx, "v1", models.StatusTranscribing, ""); err != nil {
		t.Fatal(err)
	}

	svc := NewService(f.store, f.files, &fakeProvider{}, &fakeRunner{}, 300)
	if err := svc.Run(ctx, "v1"); !errors.Is(err, apperr.ErrStatusConflict) {
		t.Errorf("Run() error = %v, want ErrStatusConflict", err)
	}
}

func TestRunFallsBackToProbedDuration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := &fakeProvider{transcript: &Transcript{
		Utterances: []models.Utterance{{Text: "hello", StartSec: 2, EndSec: 4}},
	}}

	svc := NewService(f.store, f.files, provider, &fakeRunner{}, 300, WithMedia(&fakeMedia{duration: 450}))
	if err := svc.Run(ctx, "v1"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	video, _ := f.store.GetVideo(ctx, "v1")
	if video.Duration != 450 {
		t.Errorf("duration = %v, want 450", video.Duration)
	}
	if video.ThumbnailKey != ThumbnailKey("v1") {
		t.Errorf("thumbnail key = %q", video.ThumbnailKey)
	}
	if _, err := f.files.Open(ctx, ThumbnailKey("v1")); err != nil {
		t.Errorf("thumbnail not stored: %v", err)
	}
	if !strings.HasSuffix(provider.gotPath, "v1.mp4") {
		t.Errorf("provider got %q, want original media after extraction failure", provider.gotPath)
	}

	segs, _ := f.store.Segments(ctx, "v1")
	if len(segs) != 2 {
		t.Errorf("got %d segments, want 2", len(segs))
	}
}

func TestRunCueTranscriptUsesProbedDuration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tr, err := transcriptFromCues("WEBVTT\n\n00:00:01.000 --> 00:01:40.000\nspeech ends early\n")
	if err != nil {
		t.Fatal(err)
	}

	svc := NewService(f.store, f.files, &fakeProvider{transcript: tr}, &fakeRunner{}, 300, WithMedia(&fakeMedia{duration: 600}))
	if err := svc.Run(ctx, "v1"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	video, _ := f.store.GetVideo(ctx, "v1")
	if video.Duration != 600 {
		t.Errorf("duration = %v, want 600", video.Duration)
	}
	segs, _ := f.store.Segments(ctx, "v1")
	if len(segs) != 2 {
		t.Fatalf("got %d segments, want 2", len(segs))
	}
	if segs[1].EndTime != 600 {
		t.Errorf("last segment ends at %v, want 600", segs[1].EndTime)
	}
}

// deletingMedia removes the video from the store while the thumbnail is being
// rendered, the way a concurrent delete request would.
type deletingMedia struct {
	fakeMedia
	store *memory.Store
}

func (m *deletingMedia) Thumbnail(ctx context.Context, videoPath, outPath string, atSec float64) error {
	if err := m.store.DeleteVideo(ctx, "v1"); err != nil {
		return err
	}
	return m.fakeMedia.Thumbnail(ctx, videoPath, outPath, atSec)
}

func TestRunDeletedVideoKeepsNoThumbnail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := &fakeProvider{transcript: &Transcript{
		Utterances: []models.Utterance{{Text: "a", StartSec: 1}},
		Duration:   30,
	}}

	svc := NewService(f.store, f.files, provider, &fakeRunner{}, 300, WithMedia(&deletingMedia{fakeMedia: fakeMedia{duration: 30}, store: f.store}))
	if err := svc.Run(ctx, "v1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Run() error = %v, want ErrNotFound", err)
	}

	if _, err := f.files.Open(ctx, ThumbnailKey("v1")); err == nil {
		t.Error("thumbnail stored for deleted video")
	}
	if _, err := f.store.GetVideo(ctx, "v1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetVideo() error = %v, deleted video came back", err)
	}
}

func TestRunCanceledSkipsThumbnail(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(f.store, f.files, &fakeProvider{}, &fakeRunner{}, 300, WithMedia(&fakeMedia{duration: 30}))
	if err := svc.saveThumbnail(ctx, "v1", "unused.jpg"); !errors.Is(err, context.Canceled) {
		t.Errorf("saveThumbnail() error = %v, want context.Canceled", err)
	}
	if _, err := f.files.Open(context.Background(), ThumbnailKey("v1")); err == nil {
		t.Error("thumbnail stored after cancel")
	}
}

type fakeEmbedder struct {
	texts []string
}

func (e *fakeEmbedder) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	e.texts = texts
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

type fakeSearcher struct {
	saved map[string][]float32
}

func (s *fakeSearcher) SaveSegmentEmbeddings(ctx context.Context, embeddings map[string][]float32) error {
	s.saved = embeddings
	return nil
}

func (s *fakeSearcher) SearchSegments(ctx context.Context, embedding []float32, limit int) ([]models.SearchResult, error) {
	return nil, nil
}

func TestRunIndexesSpokenSegments(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	provider := &fakeProvider{transcript: &Transcript{
		Utterances: []models.Utterance{{Text: "only the first window speaks", StartSec: 10}},
		Duration:   900,
	}}
	embedder := &fakeEmbedder{}
	searcher := &fakeSearcher{}

	svc := NewService(f.store, f.files, provider, &fakeRunner{}, 300, WithSearch(embedder, searcher))
	if err := svc.Run(ctx, "v1"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(embedder.texts) != 1 || embedder.texts[0] != "only the first window speaks" {
		t.Errorf("embedded texts = %q", embedder.texts)
	}
	segs, _ := f.store.Segments(ctx, "v1")
	if _, ok := searcher.saved[segs[0].ID]; !ok || len(searcher.saved) != 1 {
		t.Errorf("saved embeddings = %v, want only segment %s", searcher.saved, segs[0].ID)
	}
}

func TestTranscriptFromVTT(t *testing.T) {
	tr, err := TranscriptFromVTT("WEBVTT\n\n00:00:01.000 --> 00:00:04.000\nHi\n\n00:09:59.000 --> 00:10:02.500\nBye\n")
	if err != nil {
		t.Fatalf("TranscriptFromVTT() error = %v", err)
	}
	if tr.Duration != 602.5 {
		t.Errorf("duration = %v, want 602.5", tr.Duration)
	}
	if len(tr.Utterances) != 2 {
		t.Errorf("got %d utterances, want 2", len(tr.Utterances))
	}

	if _, err := TranscriptFromVTT("garbage"); err == nil {
		t.Error("TranscriptFromVTT(garbage) error = nil")
	}
}
