// Package files stores uploaded media and derived thumbnails by key.
package files

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"jamesfarrell.me/video-mcq/internal/apperr"
)

type Store interface {
	// Save writes r under key and returns the number of bytes written.
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Fetch makes the object available as a local file. cleanup removes any
	// temporary copy and must always be called.
	Fetch(ctx context.Context, key string) (localPath string, cleanup func(), err error)
	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

var errBadKey = errors.New("invalid file key")

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key != path.Clean(key) || strings.HasPrefix(key, ".") {
		return apperr.Validation("%v %q", errBadKey, key)
	}
	return nil
}

// ContentType guesses the media type of a stored key from its extension.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".vtt":
		return "text/vtt"
	default:
		return "application/octet-stream"
	}
}
