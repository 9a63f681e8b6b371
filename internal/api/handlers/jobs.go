package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type JobHandler struct {
	jobs   Jobs
	logger *slog.Logger
}

func NewJobHandler(jobs Jobs, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{jobs: jobs, logger: logger}
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Job(mux.Vars(r)["id"])
	if err != nil {
		respondErr(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}
