package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"jamesfarrell.me/video-mcq/internal/apperr"
)

var _ Store = (*FS)(nil)

// FS keeps files in a local directory.
type FS struct {
	baseDir string
}

func NewFS(baseDir string) (*FS, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FS{baseDir: baseDir}, nil
}

func (s *FS) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := checkKey(key); err != nil {
		return 0, err
	}
	fullPath := filepath.Join(s.baseDir, key)

	f, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(fullPath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return n, nil
}

func (s *FS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.baseDir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.NotFound("file", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

func (s *FS) Fetch(ctx context.Context, key string) (string, func(), error) {
	if err := checkKey(key); err != nil {
		return "", func() {}, err
	}
	fullPath := filepath.Join(s.baseDir, key)
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", func() {}, apperr.NotFound("file", key)
		}
		return "", func() {}, fmt.Errorf("failed to stat file: %w", err)
	}
	return fullPath, func() {}, nil
}

func (s *FS) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.baseDir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
