package server

import (
	"errors"
	"net/http"

	"agentcluster/internal/campaign"
	"agentcluster/internal/logging"
	"agentcluster/internal/mcp"
)

type buildRequest struct {
	Requirement string `json:"requirement"`
}

type intentRequest struct {
	Prompt string `json:"prompt"`
}

// runStatus is returned by the command endpoints.
type runStatus struct {
	RunID   string         `json:"run_id,omitempty"`
	Phase   campaign.Phase `json:"phase"`
	Running bool           `json:"running"`
}

func (s *Server) status() runStatus {
	snap := s.cluster.Snapshot()
	return runStatus{RunID: snap.RunID, Phase: snap.Phase, Running: snap.Running}
}

func (s *Server) handleStartBuild(w http.ResponseWriter, r *http.Request) {
	var req buildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	if err := s.cluster.Start(req.Requirement); err != nil {
		switch {
		case errors.Is(err, campaign.ErrEmptyRequirement):
			writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "requirement is required")
		case errors.Is(err, campaign.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, ErrCodeConflict, "a build is already running")
		default:
			logging.Get(logging.CategoryServer).Error("Start failed: %v", err)
			writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to start build")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, s.status())
}

func (s *Server) handleStopBuild(w http.ResponseWriter, _ *http.Request) {
	s.cluster.Stop()
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleSubmitIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body")
		return
	}

	if err := s.cluster.SubmitIntent(req.Prompt); err != nil {
		if errors.Is(err, campaign.ErrEmptyPrompt) {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidInput, "prompt is required")
			return
		}
		logging.Get(logging.CategoryServer).Error("Intent failed: %v", err)
		writeError(w, http.StatusInternalServerError, ErrCodeInternal, "failed to submit intent")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cluster.Snapshot())
}

func (s *Server) handleServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, mcp.Catalog())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"phase":   s.cluster.Snapshot().Phase,
	})
}
