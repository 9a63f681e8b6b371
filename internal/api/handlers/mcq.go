package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"jamesfarrell.me/video-mcq/internal/mcq"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

// MCQHandler is direct CRUD over the question collection. It does not look at
// the video status.
type MCQHandler struct {
	store  storage.Store
	jobs   Jobs
	logger *slog.Logger
}

func NewMCQHandler(store storage.Store, jobs Jobs, logger *slog.Logger) *MCQHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MCQHandler{store: store, jobs: jobs, logger: logger}
}

type questionInput struct {
	ID              string          `json:"id"`
	Question        string          `json:"question"`
	Options         []models.Option `json:"options"`
	CorrectOptionID string          `json:"correctOptionId"`
}

func (in questionInput) toQuestion() models.Question {
	return models.Question{
		ID:              in.ID,
		Question:        in.Question,
		Options:         in.Options,
		CorrectOptionID: in.CorrectOptionID,
	}
}

type createMCQsRequest struct {
	MCQs []questionInput `json:"mcqs"`
}

type createMCQsResponse struct {
	Message string            `json:"message"`
	Count   int               `json:"count"`
	MCQs    []models.Question `json:"mcqs"`
}

type updateMCQResponse struct {
	Message string           `json:"message"`
	MCQ     *models.Question `json:"mcq"`
}

func (h *MCQHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := mux.Vars(r)["videoId"]

	if _, err := h.store.GetVideo(ctx, videoID); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	questions, err := h.store.Questions(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if questions == nil {
		questions = []models.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

// Create appends questions to a video. Missing question ids are generated;
// option ids must be supplied so correctOptionId can name one.
func (h *MCQHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := mux.Vars(r)["videoId"]

	var req createMCQsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if req.MCQs == nil {
		writeError(w, http.StatusBadRequest, "MCQs must be an array")
		return
	}
	if _, err := h.store.GetVideo(ctx, videoID); err != nil {
		respondErr(w, h.logger, err)
		return
	}

	questions := make([]models.Question, 0, len(req.MCQs))
	for i, in := range req.MCQs {
		q := in.toQuestion()
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.VideoID = videoID
		if err := mcq.Validate(q); err != nil {
			respondErr(w, h.logger, fmt.Errorf("mcq %d: %w", i, err))
			return
		}
		questions = append(questions, q)
	}

	if err := h.store.AddQuestions(ctx, videoID, questions); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createMCQsResponse{
		Message: "MCQs created successfully",
		Count:   len(questions),
		MCQs:    questions,
	})
}

func (h *MCQHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	var in questionInput
	if err := decodeJSON(r, &in); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	existing, err := h.store.GetQuestion(ctx, id)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	updated := in.toQuestion()
	updated.ID = existing.ID
	updated.VideoID = existing.VideoID
	updated.SegmentID = existing.SegmentID
	if err := mcq.Validate(updated); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if err := h.store.ReplaceQuestion(ctx, updated); err != nil {
		respondErr(w, h.logger, err)
		return
	}

	saved, err := h.store.GetQuestion(ctx, id)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updateMCQResponse{Message: "MCQ updated successfully", MCQ: saved})
}

func (h *MCQHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteQuestion(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "MCQ deleted successfully"})
}

// Generate queues a question run over the existing segments of a video.
func (h *MCQHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := mux.Vars(r)["videoId"]

	video, err := h.store.GetVideo(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	switch video.Status {
	case models.StatusProcessing, models.StatusTranscribing:
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Message: "Transcription must be completed before generating MCQs",
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
		writeError(w, http.StatusBadRequest, "No transcript segments found")
		return
	}

	job, err := h.jobs.StartGeneration(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Message: "MCQ generation started", VideoID: videoID, JobID: job.ID})
}

// Export renders the questions of a video as a downloadable JSON file.
func (h *MCQHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID := mux.Vars(r)["videoId"]

	format := mcq.ExportFormat(r.URL.Query().Get("format"))

	if _, err := h.store.GetVideo(ctx, videoID); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	questions, err := h.store.Questions(ctx, videoID)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	out, err := mcq.Export(questions, format)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="mcqs-%s.json"`, videoID))
	writeJSON(w, http.StatusOK, out)
}
