package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/registry"
	"github.com/ayusman/mudra/internal/store"
)

// fakeService records calls and returns err from every command.
type fakeService struct {
	err        error
	calls      []string
	gestures   []registry.Entry
	detections []*store.Detection
	limit      int
	status     app.Status
}

func (f *fakeService) Status() app.Status { return f.status }
func (f *fakeService) Start() error       { f.calls = append(f.calls, "start"); return f.err }
func (f *fakeService) Stop()              { f.calls = append(f.calls, "stop") }
func (f *fakeService) Gestures() []registry.Entry {
	return f.gestures
}
func (f *fakeService) Detections(limit int) ([]*store.Detection, error) {
	f.limit = limit
	return f.detections, f.err
}
func (f *fakeService) RequestGestures() error {
	f.calls = append(f.calls, protocol.CmdGetGestures)
	return f.err
}
func (f *fakeService) StartCalibration() error {
	f.calls = append(f.calls, protocol.CmdCalibrateStart)
	return f.err
}
func (f *fakeService) StopCalibration() error {
	f.calls = append(f.calls, protocol.CmdStopCalibrate)
	return f.err
}
func (f *fakeService) StartRecording(name string) error {
	if err := protocol.ValidateName(name); err != nil {
		return err
	}
	f.calls = append(f.calls, "RECORD:"+name)
	return f.err
}
func (f *fakeService) StopRecording() error {
	f.calls = append(f.calls, protocol.CmdStopRecord)
	return f.err
}
func (f *fakeService) DeleteGesture(name string) error {
	f.calls = append(f.calls, "DELETE_GESTURE:"+name)
	return f.err
}
func (f *fakeService) Send(line string) error {
	if err := protocol.ValidateCommand(line); err != nil {
		return err
	}
	f.calls = append(f.calls, line)
	return f.err
}
func (f *fakeService) SetNotifications(enabled bool) {
	f.status.Notifications = enabled
}

func newRouter(svc Service) http.Handler {
	gestures := NewGestureHandler(svc)
	recognition := NewRecognitionHandler(svc)

	r := chi.NewRouter()
	r.Get("/api/status", recognition.Status)
	r.Get("/api/detections", gestures.Detections)
	r.Mount("/api/recognition", recognition.Routes())
	r.Mount("/api/gestures", gestures.Routes())
	r.Mount("/api/calibration", gestures.CalibrationRoutes())
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGestureHandler_List(t *testing.T) {
	svc := &fakeService{gestures: []registry.Entry{
		{Name: "ok", Count: 2, Color: registry.ColorOrange},
		{Name: "thumbs_up", Count: 0, Color: registry.ColorGreen},
	}}
	h := newRouter(svc)

	rec := do(t, h, http.MethodGet, "/api/gestures", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var resp listGesturesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Gestures) != 2 {
		t.Fatalf("expected 2 gestures, got %d", len(resp.Gestures))
	}
	if resp.Gestures[0].Name != "ok" || resp.Gestures[0].Count != 2 || resp.Gestures[0].Color != registry.ColorOrange {
		t.Errorf("unexpected first gesture: %+v", resp.Gestures[0])
	}
}

func TestGestureHandler_Record(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	rec := do(t, h, http.MethodPost, "/api/gestures/record", `{"name":"thumb"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rec.Code, rec.Body.String())
	}
	if len(svc.calls) != 1 || svc.calls[0] != "RECORD:thumb" {
		t.Errorf("unexpected calls: %v", svc.calls)
	}

	rec = do(t, h, http.MethodPost, "/api/gestures/record/stop", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if svc.calls[1] != protocol.CmdStopRecord {
		t.Errorf("unexpected calls: %v", svc.calls)
	}
}

func TestGestureHandler_Record_BadRequests(t *testing.T) {
	h := newRouter(&fakeService{})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"name":`},
		{"missing name", `{}`},
		{"reserved character", `{"name":"a:b"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/gestures/record", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestGestureHandler_Delete(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	rec := do(t, h, http.MethodDelete, "/api/gestures/victory", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "DELETE_GESTURE:victory" {
		t.Errorf("unexpected calls: %v", svc.calls)
	}
}

func TestGestureHandler_NotConnected(t *testing.T) {
	svc := &fakeService{err: lifecycle.ErrNotConnected}
	h := newRouter(svc)

	for _, path := range []string{"/api/gestures/refresh", "/api/calibration/start", "/api/calibration/stop"} {
		rec := do(t, h, http.MethodPost, path, "")
		if rec.Code != http.StatusConflict {
			t.Errorf("%s: expected status %d, got %d", path, http.StatusConflict, rec.Code)
		}
		var resp errorResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Error == "" {
			t.Errorf("%s: expected error message", path)
		}
	}
}

func TestGestureHandler_TransportError(t *testing.T) {
	h := newRouter(&fakeService{err: errors.New("send: broken pipe")})

	rec := do(t, h, http.MethodPost, "/api/gestures/refresh", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected status %d, got %d", http.StatusBadGateway, rec.Code)
	}
}

func TestGestureHandler_MethodNotAllowed(t *testing.T) {
	h := newRouter(&fakeService{})

	rec := do(t, h, http.MethodPut, "/api/gestures", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestDetections_Limit(t *testing.T) {
	svc := &fakeService{detections: []*store.Detection{{ID: "1", Gesture: "ok"}}}
	h := newRouter(svc)

	rec := do(t, h, http.MethodGet, "/api/detections?limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if svc.limit != 5 {
		t.Errorf("limit = %d, want 5", svc.limit)
	}

	var resp listDetectionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Detections) != 1 || resp.Detections[0].Gesture != "ok" {
		t.Errorf("unexpected detections: %+v", resp.Detections)
	}

	rec = do(t, h, http.MethodGet, "/api/detections", "")
	if svc.limit != 50 {
		t.Errorf("default limit = %d, want 50", svc.limit)
	}

	for _, bad := range []string{"0", "-1", "abc", "5000"} {
		rec = do(t, h, http.MethodGet, "/api/detections?limit="+bad, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: expected status %d, got %d", bad, http.StatusBadRequest, rec.Code)
		}
	}
}

func TestRecognitionHandler(t *testing.T) {
	svc := &fakeService{status: app.Status{
		Status:      lifecycle.Status{State: lifecycle.StateIdle, Connection: "Disconnected"},
		LastGesture: "ok",
	}}
	h := newRouter(svc)

	rec := do(t, h, http.MethodPost, "/api/recognition/start", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/recognition/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if len(svc.calls) != 2 || svc.calls[0] != "start" || svc.calls[1] != "stop" {
		t.Errorf("unexpected calls: %v", svc.calls)
	}

	rec = do(t, h, http.MethodGet, "/api/status", "")
	var status map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status["state"] != "Idle" {
		t.Errorf("state = %v, want Idle", status["state"])
	}
	if status["last_gesture"] != "ok" {
		t.Errorf("last_gesture = %v, want ok", status["last_gesture"])
	}
}

func TestRecognitionHandler_StartWhileRunning(t *testing.T) {
	h := newRouter(&fakeService{err: lifecycle.ErrInvalidState})

	rec := do(t, h, http.MethodPost, "/api/recognition/start", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestRecognitionHandler_Send(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	rec := do(t, h, http.MethodPost, "/api/recognition/send", `{"line":"GET_GESTURES"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if len(svc.calls) != 1 || svc.calls[0] != "GET_GESTURES" {
		t.Errorf("unexpected calls: %v", svc.calls)
	}

	for _, body := range []string{`{`, `{"line":""}`, `{"line":"GET_GESTURES\nSTOP_RECORD"}`} {
		rec := do(t, h, http.MethodPost, "/api/recognition/send", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected status %d, got %d", body, http.StatusBadRequest, rec.Code)
		}
	}
	if len(svc.calls) != 1 {
		t.Errorf("invalid lines should not be sent: %v", svc.calls)
	}
}

func TestRecognitionHandler_Send_NotConnected(t *testing.T) {
	h := newRouter(&fakeService{err: lifecycle.ErrNotConnected})

	rec := do(t, h, http.MethodPost, "/api/recognition/send", `{"line":"GET_GESTURES"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestRecognitionHandler_Notifications(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc)

	rec := do(t, h, http.MethodPut, "/api/recognition/notifications", `{"enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var status map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if status["notifications"] != true {
		t.Errorf("notifications = %v, want true", status["notifications"])
	}

	rec = do(t, h, http.MethodPut, "/api/recognition/notifications", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
