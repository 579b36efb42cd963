package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/registry"
	"github.com/ayusman/mudra/internal/store"
)

// GestureHandler handles gesture management requests. Commands are sent to
// the recognizer; the registry changes once it answers.
type GestureHandler struct {
	svc Service
}

// NewGestureHandler creates a new GestureHandler.
func NewGestureHandler(svc Service) *GestureHandler {
	return &GestureHandler{svc: svc}
}

// Routes returns the gesture routes, mounted under /api/gestures.
func (h *GestureHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/refresh", h.refresh)
	r.Post("/record", h.record)
	r.Post("/record/stop", h.stopRecord)
	r.Delete("/{name}", h.delete)
	return r
}

// CalibrationRoutes returns the calibration routes, mounted under /api/calibration.
func (h *GestureHandler) CalibrationRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/start", func(w http.ResponseWriter, r *http.Request) {
		command(w, h.svc.StartCalibration, "calibration started")
	})
	r.Post("/stop", func(w http.ResponseWriter, r *http.Request) {
		command(w, h.svc.StopCalibration, "calibration stopped")
	})
	return r
}

type listGesturesResponse struct {
	Gestures []registry.Entry `json:"gestures"`
}

type recordRequest struct {
	Name string `json:"name"`
}

type listDetectionsResponse struct {
	Detections []*store.Detection `json:"detections"`
}

// list handles GET /api/gestures.
func (h *GestureHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, listGesturesResponse{Gestures: h.svc.Gestures()})
}

// refresh handles POST /api/gestures/refresh.
func (h *GestureHandler) refresh(w http.ResponseWriter, r *http.Request) {
	command(w, h.svc.RequestGestures, "gesture list requested")
}

// record handles POST /api/gestures/record.
func (h *GestureHandler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	command(w, func() error { return h.svc.StartRecording(req.Name) }, "recording "+req.Name)
}

// stopRecord handles POST /api/gestures/record/stop.
func (h *GestureHandler) stopRecord(w http.ResponseWriter, r *http.Request) {
	command(w, h.svc.StopRecording, "recording stopped")
}

// delete handles DELETE /api/gestures/{name}.
func (h *GestureHandler) delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	command(w, func() error { return h.svc.DeleteGesture(name) }, "deleting "+name)
}

// Detections handles GET /api/detections?limit=N.
func (h *GestureHandler) Detections(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	detections, err := h.svc.Detections(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list detections")
		return
	}
	writeJSON(w, http.StatusOK, listDetectionsResponse{Detections: detections})
}
