package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/academic-crawler/internal/run"
)

type startRequest struct {
	TargetCount *int `json:"target_count"`
}

type startResponse struct {
	RunID       string `json:"run_id"`
	TargetCount int    `json:"target_count"`
	Message     string `json:"message"`
}

// startCrawling handles POST /start_crawling with an optional {"target_count": n}
// body. It returns 202 with the run ID, 400 for a bad body, or 409 while a run
// is already active.
func (s *Server) startCrawling(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	target := s.cfg.Run.TargetCount
	if req.TargetCount != nil {
		target = *req.TargetCount
	}
	if target <= 0 {
		writeError(w, http.StatusBadRequest, "target_count must be > 0")
		return
	}

	h, err := s.runs.Start(r.Context(), target)
	switch {
	case errors.Is(err, run.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, run.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("start crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}
	writeJSON(w, http.StatusAccepted, startResponse{
		RunID:       h.ID(),
		TargetCount: target,
		Message:     "crawl started",
	})
}

// crawlingStatus handles GET /crawling_status.
func (s *Server) crawlingStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runs.Status())
}

// cancelCrawling handles POST /crawling/cancel. It returns 202 when a run was
// asked to stop and 409 when nothing is running.
func (s *Server) cancelCrawling(w http.ResponseWriter, _ *http.Request) {
	if !s.runs.Cancel() {
		writeError(w, http.StatusConflict, "no crawl is running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
