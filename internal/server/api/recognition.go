package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RecognitionHandler starts and stops recognition and reports its status.
type RecognitionHandler struct {
	svc Service
}

// NewRecognitionHandler creates a RecognitionHandler.
func NewRecognitionHandler(svc Service) *RecognitionHandler {
	return &RecognitionHandler{svc: svc}
}

// Routes returns the recognition routes, mounted under /api/recognition.
func (h *RecognitionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/start", h.start)
	r.Post("/stop", h.stop)
	r.Post("/send", h.send)
	r.Put("/notifications", h.notifications)
	return r
}

type sendRequest struct {
	Line string `json:"line"`
}

type notificationsRequest struct {
	Enabled *bool `json:"enabled"`
}

// Status handles GET /api/status.
func (h *RecognitionHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// start handles POST /api/recognition/start. The connection is made in the
// background; progress is reported on /api/events.
func (h *RecognitionHandler) start(w http.ResponseWriter, r *http.Request) {
	command(w, h.svc.Start, "recognition starting")
}

// stop handles POST /api/recognition/stop.
func (h *RecognitionHandler) stop(w http.ResponseWriter, r *http.Request) {
	h.svc.Stop()
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// send handles POST /api/recognition/send, writing one raw command line to
// the recognizer. Replies arrive on /api/events.
func (h *RecognitionHandler) send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	command(w, func() error { return h.svc.Send(req.Line) }, "sent "+req.Line)
}

// notifications handles PUT /api/recognition/notifications.
func (h *RecognitionHandler) notifications(w http.ResponseWriter, r *http.Request) {
	var req notificationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	h.svc.SetNotifications(*req.Enabled)
	writeJSON(w, http.StatusOK, h.svc.Status())
}
