// Package api wires the HTTP routes of the video MCQ service.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"jamesfarrell.me/video-mcq/internal/api/handlers"
	"jamesfarrell.me/video-mcq/internal/api/middleware"
	"jamesfarrell.me/video-mcq/internal/events"
	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/files"
)

type Deps struct {
	Store     storage.Store
	Files     files.Store
	Jobs      handlers.Jobs
	Hub       *events.Hub
	MaxUpload int64
	APIKey    string
	Logger    *slog.Logger

	// Search routes are registered only when both are set.
	Embedder handlers.QueryEmbedder
	Searcher storage.Searcher
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	r := mux.NewRouter()

	// Public routes
	r.HandleFunc("/health", healthCheck).Methods(http.MethodGet)

	// Protected routes
	protected := r.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth(d.APIKey))

	videoHandler := handlers.NewVideoHandler(d.Store, d.Files, d.Jobs, d.Hub, d.MaxUpload, d.Logger)
	videos := protected.PathPrefix("/api/videos").Subrouter()
	videos.HandleFunc("", videoHandler.List).Methods(http.MethodGet)
	videos.HandleFunc("/upload", videoHandler.Upload).Methods(http.MethodPost)
	videos.HandleFunc("/{id}", videoHandler.Get).Methods(http.MethodGet)
	videos.HandleFunc("/{id}", videoHandler.Delete).Methods(http.MethodDelete)
	videos.HandleFunc("/{id}/status", videoHandler.UpdateStatus).Methods(http.MethodPatch)
	videos.HandleFunc("/{id}/thumbnail", videoHandler.Thumbnail).Methods(http.MethodGet)
	videos.HandleFunc("/{id}/media", videoHandler.Media).Methods(http.MethodGet)
	videos.HandleFunc("/{id}/watch", videoHandler.Watch).Methods(http.MethodGet)

	mcqHandler := handlers.NewMCQHandler(d.Store, d.Jobs, d.Logger)
	mcqs := protected.PathPrefix("/api/mcqs").Subrouter()
	mcqs.HandleFunc("/video/{videoId}", mcqHandler.List).Methods(http.MethodGet)
	mcqs.HandleFunc("/video/{videoId}", mcqHandler.Create).Methods(http.MethodPost)
	mcqs.HandleFunc("/video/{videoId}/export", mcqHandler.Export).Methods(http.MethodGet)
	mcqs.HandleFunc("/generate/{videoId}", mcqHandler.Generate).Methods(http.MethodPost)
	mcqs.HandleFunc("/{id}", mcqHandler.Update).Methods(http.MethodPut)
	mcqs.HandleFunc("/{id}", mcqHandler.Delete).Methods(http.MethodDelete)

	transcriptionHandler := handlers.NewTranscriptionHandler(d.Store, d.Jobs, d.Logger)
	transcription := protected.PathPrefix("/transcription").Subrouter()
	transcription.HandleFunc("/start/{videoId}", transcriptionHandler.Start).Methods(http.MethodPost)
	transcription.HandleFunc("/status/{videoId}", transcriptionHandler.Status).Methods(http.MethodGet)
	transcription.HandleFunc("/segments/{videoId}", transcriptionHandler.Segments).Methods(http.MethodGet)

	jobHandler := handlers.NewJobHandler(d.Jobs, d.Logger)
	protected.HandleFunc("/api/jobs/{id}", jobHandler.Get).Methods(http.MethodGet)

	if d.Embedder != nil && d.Searcher != nil {
		searchHandler := handlers.NewSearchHandler(d.Embedder, d.Searcher, d.Logger)
		protected.HandleFunc("/api/search", searchHandler.Search).Methods(http.MethodPost)
	}

	// preflight requests are answered before routing
	return middleware.CORS(middleware.Logging(d.Logger)(r))
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
