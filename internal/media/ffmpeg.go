// Package media wraps the ffmpeg and ffprobe binaries.
package media

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// FFmpeg runs the ffmpeg tools found on PATH unless overridden.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

func New() *FFmpeg {
	return &FFmpeg{FFmpegPath: "ffmpeg", FFprobePath: "ffprobe"}
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() bool {
	if _, err := exec.LookPath(f.FFmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.FFprobePath)
	return err == nil
}

// Duration returns the container duration in seconds.
func (f *FFmpeg) Duration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	return ParseDuration(string(out))
}

// ParseDuration reads the bare seconds value ffprobe prints.
func ParseDuration(out string) (float64, error) {
	s := strings.TrimSpace(out)
	if s == "" || s == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", d)
	}
	return d, nil
}

// Thumbnail writes a JPEG frame taken at atSec, scaled to 640px wide.
func (f *FFmpeg) Thumbnail(ctx context.Context, videoPath, outPath string, atSec float64) error {
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-y",
		"-ss", strconv.FormatFloat(atSec, 'f', 3, 64),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", "scale=640:-1",
		"-q:v", "2",
		outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg thumbnail: %w: %s", err, lastLine(output))
	}
	return nil
}

// ExtractAudio writes a mono 16kHz MP3 next to tmpDir and returns its path.
func (f *FFmpeg) ExtractAudio(ctx context.Context, videoPath, tmpDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	out := filepath.Join(tmpDir, base+"_audio.mp3")

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-y", "-i", videoPath,
		"-vn",
		"-ac", "1", "-ar", "16000",
		"-b:a", "64k",
		out,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("ffmpeg: %w: %s", err, lastLine(output))
	}
	return out, nil
}

func lastLine(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	return lines[len(lines)-1]
}
