package transcription

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestVTTTranscribeLeavesDurationToCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "text/vtt")
		w.Write([]byte("WEBVTT\n\n00:00:01.000 --> 00:01:40.000\nspeech ends early\n"))
	}))
	defer srv.Close()

	media := filepath.Join(t.TempDir(), "v1.mp4")
	if err := os.WriteFile(media, []byte("fake mp4"), 0644); err != nil {
		t.Fatal(err)
	}

	tr, err := NewVTT(ProviderConfig{APIKey: "test", BaseURL: srv.URL}).Transcribe(context.Background(), media)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if tr.Duration != 0 {
		t.Errorf("duration = %v, want 0", tr.Duration)
	}
	if len(tr.Utterances) != 1 || tr.Utterances[0].EndSec != 100 {
		t.Errorf("utterances = %+v", tr.Utterances)
	}
}
