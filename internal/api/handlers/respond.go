package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"jamesfarrell.me/video-mcq/internal/apperr"
	"jamesfarrell.me/video-mcq/internal/jobs"
)

// Jobs starts and tracks background work for videos.
type Jobs interface {
	StartTranscription(ctx context.Context, videoID string) (jobs.Job, error)
	StartGeneration(ctx context.Context, videoID string) (jobs.Job, error)
	Cancel(videoID string) bool
	Job(id string) (jobs.Job, error)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
	VideoID string `json:"videoId,omitempty"`
	JobID   string `json:"jobId,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: http.StatusText(status), Message: message})
}

// respondErr maps err to its status code. Server errors are logged.
func respondErr(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if errors.Is(err, jobs.ErrQueueFull) || errors.Is(err, jobs.ErrQueueClosed) {
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}
