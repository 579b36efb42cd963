package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/lifecycle"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// eventMessage is the JSON form of a lifecycle event.
type eventMessage struct {
	Type      lifecycle.EventType `json:"type"`
	Time      time.Time           `json:"time"`
	SessionID string              `json:"session_id,omitempty"`
	State     string              `json:"state,omitempty"`
	Previous  string              `json:"previous,omitempty"`
	Gesture   string              `json:"gesture,omitempty"`
	Gestures  []string            `json:"gestures,omitempty"`
	OK        bool                `json:"ok"`
	Message   string              `json:"message,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func newEventMessage(ev lifecycle.Event) eventMessage {
	msg := eventMessage{
		Type:      ev.Type,
		Time:      ev.Time,
		SessionID: ev.SessionID,
		Gesture:   ev.Gesture,
		Gestures:  ev.Gestures,
		OK:        ev.OK,
		Message:   ev.Message,
	}
	if ev.Type == lifecycle.EventStateChanged {
		msg.State = ev.State.String()
		msg.Previous = ev.Previous.String()
	}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	return msg
}

// EventsHandler streams lifecycle events to WebSocket clients. Each client
// gets its own subscription, so every client sees events in order.
type EventsHandler struct {
	source EventSource
	logger *zap.Logger
}

// NewEventsHandler creates a new EventsHandler reading from source.
func NewEventsHandler(source EventSource, logger *zap.Logger) *EventsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventsHandler{source: source, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	// Clients never send anything; reading detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.logger.Debug("Event stream client connected", zap.String("remote_addr", r.RemoteAddr))

	for {
		select {
		case <-gone:
			h.logger.Debug("Event stream client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case ev, ok := <-events:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newEventMessage(ev)); err != nil {
				h.logger.Debug("Event stream write failed", zap.Error(err))
				return
			}
		}
	}
}
