package files

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"jamesfarrell.me/video-mcq/internal/apperr"
)

func TestFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS() error = %v", err)
	}

	n, err := store.Save(ctx, "abc.mp4", strings.NewReader("video bytes"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if n != int64(len("video bytes")) {
		t.Errorf("Save() wrote %d bytes", n)
	}

	rc, err := store.Open(ctx, "abc.mp4")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "video bytes" {
		t.Errorf("Open() content = %q", data)
	}

	path, cleanup, err := store.Fetch(ctx, "abc.mp4")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	cleanup()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Fetch() cleanup removed the stored file: %v", err)
	}

	if err := store.Delete(ctx, "abc.mp4"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Open(ctx, "abc.mp4"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Open() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "abc.mp4"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
}

func TestFSRejectsBadKeys(t *testing.T) {
	store, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS() error = %v", err)
	}

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"parent traversal", "../escape.mp4"},
		{"nested path", "a/b.mp4"},
		{"hidden", ".env"},
		{"backslash", `a\b.mp4`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Save(context.Background(), tt.key, strings.NewReader("x"))
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("Save(%q) error = %v, want ErrValidation", tt.key, err)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"a.mp4", "video/mp4"},
		{"a-thumbnail.jpg", "image/jpeg"},
		{"a.MP4", "video/mp4"},
		{"a.bin", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := ContentType(tt.key); got != tt.want {
				t.Errorf("ContentType(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}
