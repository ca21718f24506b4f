package api

import (
	"github.com/mattjoyce/convhost/internal/host"
	"github.com/mattjoyce/convhost/internal/state"
)

const (
	StatusAccepted = "accepted"
	StatusDropped  = "dropped"
)

// SubmitResponse is returned by POST /messages.
type SubmitResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string     `json:"status"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	Commands      []string   `json:"commands"`
	Queue         host.Stats `json:"queue"`
}

// HistoryResponse is returned by GET /history.
type HistoryResponse struct {
	Entries []state.Entry `json:"entries"`
}
