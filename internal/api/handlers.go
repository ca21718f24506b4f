package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mattjoyce/convhost/internal/protocol"
	"github.com/mattjoyce/convhost/internal/state"
)

const maxHistoryLimit = 500

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	commands := s.config.Commands
	if commands == nil {
		commands = []string{}
	}
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Commands:      commands,
		Queue:         s.producer.Stats(),
	})
}

// handleSubmit treats the request body as the message payload. Shape is not
// checked here; the worker decodes and reports.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	payload, err := protocol.ReadPayload(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, accepted := s.producer.Submit(payload)
	if !accepted {
		w.Header().Set("Retry-After", "1")
		respondJSON(w, http.StatusServiceUnavailable, SubmitResponse{
			MessageID: id,
			Status:    StatusDropped,
			Error:     "queue full",
		})
		return
	}

	respondJSON(w, http.StatusAccepted, SubmitResponse{MessageID: id, Status: StatusAccepted})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "journal disabled")
		return
	}

	limit := state.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if entries == nil {
		entries = []state.Entry{}
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Entries: entries})
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
