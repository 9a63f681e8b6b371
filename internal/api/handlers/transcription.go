package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// TranscriptionHandler triggers and inspects transcription outside the upload
// flow.
type TranscriptionHandler struct {
	store  storage.Store
	jobs   Jobs
	logger *slog.Logger
}

func NewTranscriptionHandler(store storage.Store, jobs Jobs, logger *slog.Logger) *TranscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptionHandler{store: store, jobs: jobs, logger: logger}
}

type transcriptionStatusResponse struct {
	Status models.Status `json:"status"`
	Error  string        `json:"error,omitempty"`
}

func (h *TranscriptionHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := mux.Vars(r)["videoId"]

	video, err := h.store.GetVideo(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	switch video.Status {
	case models.StatusProcessing, models.StatusError:
	case models.StatusCompleted:
		writeError(w, http.StatusBadRequest, "Transcription already completed")
		return
	default:
		writeError(w, http.StatusBadRequest, "Transcription already in progress")
		return
	}

	job, err := h.jobs.StartTranscription(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "Transcription started", VideoID: videoID, JobID: job.ID})
}

func (h *TranscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	video, err := h.store.GetVideo(r.Context(), mux.Vars(r)["videoId"])
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptionStatusResponse{Status: video.Status, Error: video.Error})
}

// Segments is available once transcription has finished.
func (h *TranscriptionHandler) Segments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := mux.Vars(r)["videoId"]

	video, err := h.store.GetVideo(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if video.Status != models.StatusGenerating && video.Status != models.StatusCompleted {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Message: "Transcription not yet completed",
			Status:  string(video.Status),
		})
		return
	}

	segments, err := h.store.Segments(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if len(segments) == 0 {
		writeError(w, http.StatusNotFound, "Transcript not found")
		return
	}
	writeJSON(w, http.StatusOK, segments)
}
