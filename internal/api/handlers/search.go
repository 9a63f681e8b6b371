package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"jamesfarrell.me/video-mcq/internal/storage"
	"jamesfarrell.me/video-mcq/internal/storage/models"
)

const maxSearchLimit = 50

type QueryEmbedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

type SearchHandler struct {
	embedder QueryEmbedder
	searcher storage.Searcher
	logger   *slog.Logger
}

func NewSearchHandler(embedder QueryEmbedder, searcher storage.Searcher, logger *slog.Logger) *SearchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchHandler{embedder: embedder, searcher: searcher, logger: logger}
}

// Search returns the transcript segments closest to the query text.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErr(w, h.logger, err)
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}
	req.Limit = min(req.Limit, maxSearchLimit)

	embedding, err := h.embedder.GetEmbedding(r.Context(), req.Query)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	results, err := h.searcher.SearchSegments(r.Context(), embedding, req.Limit)
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	h.logger.Debug("search", "query", req.Query, "results", len(results))
	writeJSON(w, http.StatusOK, models.SearchResponse{Results: results})
}
