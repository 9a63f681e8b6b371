package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"jamesfarrell.me/video-mcq/internal/events"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/files"
	"jamesfarrell.me/video-mcq/internal/storage/models"
	"jamesfarrell.me/video-mcq/internal/transcription"
)

// multipart parts above this size spill to temp files
const uploadMemory = 32 << 20

type VideoHandler struct {
	store     storage.Store
	files     files.Store
	jobs      Jobs
	hub       *events.Hub
	maxUpload int64
	logger    *slog.Logger

	pollInterval time.Duration
}

func NewVideoHandler(store storage.Store, fileStore files.Store, jobs Jobs, hub *events.Hub, maxUpload int64, logger *slog.Logger) *VideoHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoHandler{
		store:        store,
		files:        fileStore,
		jobs:         jobs,
		hub:          hub,
		maxUpload:    maxUpload,
		logger:       logger,
		pollInterval: 2 * time.Second,
	}
}

type videoLinks struct {
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

func linksFor(v models.Video) videoLinks {
	links := videoLinks{VideoURL: "/api/videos/" + v.ID + "/media"}
	if v.ThumbnailKey != "" {
		links.ThumbnailURL = "/api/videos/" + v.ID + "/thumbnail"
	}
	return links
}

type videoSummaryResponse struct {
	models.VideoSummary
	videoLinks
}

type transcriptResponse struct {
	Segments []models.Segment `json:"segments"`
}

type videoResponse struct {
	models.Video
	videoLinks
	Transcript *transcriptResponse `json:"transcript,omitempty"`
	MCQs       []models.Question   `json:"mcqs,omitempty"`
}

func isMP4(header *multipart.FileHeader) bool {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch header.Header.Get("Content-Type") {
	case "video/mp4":
		return true
	case "", "application/octet-stream":
		return ext == ".mp4"
	default:
		return false
	}
}

// Upload stores the file, creates the video and queues its transcription.
func (h *VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "video exceeds the upload limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No video file uploaded")
		return
	}
	defer file.Close()

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		writeError(w, http.StatusBadRequest, "Video title is required")
		return
	}
	if !isMP4(header) {
		writeError(w, http.StatusBadRequest, "Only MP4 videos are allowed")
		return
	}

	ctx := r.Context()
	id := uuid.NewString()
	key := id + ".mp4"
	logger := h.logger.With("video_id", id)

	size, err := h.files.Save(ctx, key, file)
	if err != nil {
		respondErr(w, logger, err)
		return
	}

	video := &models.Video{
		ID:           id,
		Title:        title,
		Description:  strings.TrimSpace(r.FormValue("description")),
		Filename:     key,
		OriginalName: header.Filename,
		FileKey:      key,
		Size:         size,
		Status:       models.StatusProcessing,
	}
	if err := h.store.CreateVideo(ctx, video); err != nil {
		if derr := h.files.Delete(ctx, key); derr != nil {
			logger.Warn("removing orphaned upload", "error", derr)
		}
		respondErr(w, logger, err)
		return
	}
	logger.Info("video uploaded", "title", title, "size", size)

	resp := messageResponse{Message: "Video uploaded successfully", VideoID: id}
	job, err := h.jobs.StartTranscription(ctx, id)
	if err != nil {
		// the upload stands; the video records why nothing happened
		logger.Error("queueing transcription", "error", err)
		msg := "could not start transcription: " + err.Error()
		if serr := h.store.SetStatus(ctx, id, models.StatusError, msg); serr != nil {
			logger.Error("recording failure", "error", serr)
		}
	}
	resp.JobID = job.ID
	writeJSON(w, http.StatusCreated, resp)
}

func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	videos, err := h.store.ListVideos(r.Context())
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	resp := make([]videoSummaryResponse, 0, len(videos))
	for _, v := range videos {
		resp = append(resp, videoSummaryResponse{VideoSummary: v, videoLinks: linksFor(v.Video)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns the video with its segments and questions when present.
func (h *VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	video, err := h.store.GetVideo(ctx, id)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	segments, err := h.store.Segments(ctx, id)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	questions, err := h.store.Questions(ctx, id)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}

	resp := videoResponse{Video: *video, videoLinks: linksFor(*video), MCQs: questions}
	if len(segments) > 0 {
		resp.Transcript = &transcriptResponse{Segments: segments}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delete stops any running job, then removes the record with its segments and
// questions, then the stored media.
func (h *VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]
	logger := h.logger.With("video_id", id)

	video, err := h.store.GetVideo(ctx, id)
	if err != nil {
		respondErr(w, logger, err)
		return
	}
	if h.jobs.Cancel(id) {
		logger.Info("canceled running job")
	}
	if err := h.store.DeleteVideo(ctx, id); err != nil {
		respondErr(w, logger, err)
		return
	}

	thumbnail := video.ThumbnailKey
	if thumbnail == "" {
		thumbnail = transcription.ThumbnailKey(id)
	}
	for _, key := range []string{video.FileKey, thumbnail} {
		if err := h.files.Delete(ctx, key); err != nil {
			logger.Warn("deleting stored file", "key", key, "error", err)
		}
	}

	logger.Info("video deleted")
	writeJSON(w, http.StatusOK, messageResponse{Message: "Video deleted successfully"})
}

type statusRequest struct {
	Status models.Status `json:"status"`
	Error  string        `json:"error"`
}

// UpdateStatus overwrites the status unconditionally.
func (h *VideoHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if err := h.store.SetStatus(r.Context(), id, req.Status, req.Error); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	h.logger.Warn("status overridden", "video_id", id, "status", req.Status)
	if h.hub != nil {
		h.hub.Publish(events.StatusEvent{VideoID: id, Status: req.Status, Error: req.Error, At: time.Now()})
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Video status updated successfully"})
}

func (h *VideoHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	video, err := h.store.GetVideo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	if video.ThumbnailKey == "" {
		writeError(w, http.StatusNotFound, "thumbnail not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	h.serveFile(w, r, video.ThumbnailKey)
}

func (h *VideoHandler) Media(w http.ResponseWriter, r *http.Request) {
	video, err := h.store.GetVideo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	h.serveFile(w, r, video.FileKey)
}

func (h *VideoHandler) serveFile(w http.ResponseWriter, r *http.Request, key string) {
	rc, err := h.files.Open(r.Context(), key)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", files.ContentType(key))
	// local files support range requests for seeking
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, key, time.Time{}, rs)
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("streaming file", "key", key, "error", err)
	}
}
