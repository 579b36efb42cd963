// Package api provides the HTTP handlers that control recognition and
// manage gestures.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/registry"
	"github.com/ayusman/mudra/internal/store"
)

// Service is the application surface used by the handlers.
type Service interface {
	Status() app.Status
	Start() error
	Stop()

	Gestures() []registry.Entry
	Detections(limit int) ([]*store.Detection, error)

	RequestGestures() error
	StartCalibration() error
	StopCalibration() error
	StartRecording(name string) error
	StopRecording() error
	DeleteGesture(name string) error
	Send(line string) error

	SetNotifications(enabled bool)
}

type errorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeCommandError maps a command error to a status code.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, protocol.ErrInvalidName), errors.Is(err, protocol.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, lifecycle.ErrNotConnected), errors.Is(err, lifecycle.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// command runs fn and answers 202 with message on success.
func command(w http.ResponseWriter, fn func() error, message string) {
	if err := fn(); err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, messageResponse{Status: "accepted", Message: message})
}
