// Package app connects the lifecycle coordinator to the gesture registry,
// the store, notifications and the front-ends (tray and HTTP API).
package app

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/notify"
	"github.com/ayusman/mudra/internal/registry"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the collaborators of an App. Store and Notifier are optional.
type Config struct {
	Coordinator *lifecycle.Coordinator
	Registry    *registry.Registry
	Store       *store.Store
	Notifier    *notify.Notifier
	Logger      *zap.Logger
}

// Status is what the front-ends display.
type Status struct {
	lifecycle.Status
	LastGesture   string `json:"last_gesture,omitempty"`
	Gestures      int    `json:"gestures"`
	Notifications bool   `json:"notifications"`
}

// Update is passed to listeners after an event has been applied.
type Update struct {
	Event       lifecycle.Event
	State       lifecycle.State
	LastGesture string
}

// App applies coordinator events to the registry and store and exposes the
// operations the front-ends need.
type App struct {
	coord    *lifecycle.Coordinator
	registry *registry.Registry
	store    *store.Store
	notifier *notify.Notifier
	logger   *zap.Logger

	mu          sync.RWMutex
	lastGesture string
	listeners   []func(Update)

	runOnce     sync.Once
	unsubscribe func()
	done        chan struct{}
}

// New creates an App. A nil Registry is replaced by one seeded with the
// built-in gestures.
func New(config Config) *App {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := config.Registry
	if reg == nil {
		reg = registry.NewDefault()
	}
	return &App{
		coord:    config.Coordinator,
		registry: reg,
		store:    config.Store,
		notifier: config.Notifier,
		logger:   logger.Named("app"),
		done:     make(chan struct{}),
	}
}

// LoadGestures restores the registry from the store. An empty store is
// seeded from the registry instead.
func (a *App) LoadGestures() error {
	if a.store == nil {
		return nil
	}

	gestures, err := a.store.Gestures().List()
	if err != nil {
		return err
	}

	if len(gestures) == 0 {
		a.persistAll()
		return nil
	}

	names := make([]string, len(gestures))
	for i, g := range gestures {
		names[i] = g.Name
	}
	a.registry.Replace(names)
	for _, g := range gestures {
		a.registry.Set(g.Name, g.Count)
	}

	a.logger.Info("Loaded gestures from database", zap.Int("count", len(gestures)))
	return nil
}

// Run subscribes to the coordinator and applies its events until the
// coordinator closes. It returns immediately.
func (a *App) Run() {
	a.runOnce.Do(func() {
		events, unsubscribe := a.coord.Subscribe()
		a.mu.Lock()
		a.unsubscribe = unsubscribe
		a.mu.Unlock()
		go a.loop(events, unsubscribe)
	})
}

// Close stops the coordinator and waits for the remaining events to be applied.
func (a *App) Close() {
	a.coord.Close()
	a.mu.RLock()
	started := a.unsubscribe != nil
	a.mu.RUnlock()
	if started {
		<-a.done
	}
}

// OnUpdate registers fn to be called after every applied event.
func (a *App) OnUpdate(fn func(Update)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Registry returns the gesture registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Coordinator returns the lifecycle coordinator.
func (a *App) Coordinator() *lifecycle.Coordinator {
	return a.coord
}

// LastGesture returns the most recently detected gesture of the current session.
func (a *App) LastGesture() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastGesture
}

// Status returns the combined coordinator and registry status.
func (a *App) Status() Status {
	return Status{
		Status:      a.coord.Status(),
		LastGesture:   a.LastGesture(),
		Gestures:      a.registry.Len(),
		Notifications: a.Notifications(),
	}
}

// Notifications reports whether desktop notifications are shown.
func (a *App) Notifications() bool {
	return a.notifier != nil && a.notifier.Enabled()
}

// SetNotifications turns desktop notifications on or off. It is a no-op
// without a Notifier.
func (a *App) SetNotifications(enabled bool) {
	if a.notifier == nil {
		return
	}
	a.notifier.SetEnabled(enabled)
	a.logger.Info("Notifications toggled", zap.Bool("enabled", enabled))
}

// Gestures returns a snapshot of the registry.
func (a *App) Gestures() []registry.Entry {
	return a.registry.Snapshot()
}

// Detections returns the most recent detections, newest first.
func (a *App) Detections(limit int) ([]*store.Detection, error) {
	if a.store == nil {
		return []*store.Detection{}, nil
	}
	return a.store.Detections().Recent(limit)
}

// Start begins recognition.
func (a *App) Start() error { return a.coord.Start() }

// Stop ends recognition.
func (a *App) Stop() { a.coord.Stop() }

// Toggle starts recognition when idle and stops it otherwise.
func (a *App) Toggle() error {
	if a.coord.State() == lifecycle.StateIdle {
		err := a.coord.Start()
		if errors.Is(err, lifecycle.ErrInvalidState) {
			return nil
		}
		return err
	}
	a.coord.Stop()
	return nil
}

// RequestGestures asks the recognizer for its gesture list.
func (a *App) RequestGestures() error { return a.coord.RequestGestures() }

// StartCalibration enters calibration mode.
func (a *App) StartCalibration() error { return a.coord.StartCalibration() }

// StopCalibration leaves calibration mode.
func (a *App) StopCalibration() error { return a.coord.StopCalibration() }

// StartRecording records samples for name.
func (a *App) StartRecording(name string) error { return a.coord.StartRecording(name) }

// StopRecording finishes the current recording.
func (a *App) StopRecording() error { return a.coord.StopRecording() }

// DeleteGesture deletes name on the recognizer. The registry changes once
// the recognizer confirms.
func (a *App) DeleteGesture(name string) error { return a.coord.DeleteGesture(name) }

// Send writes a raw command line to the recognizer.
func (a *App) Send(line string) error { return a.coord.Send(line) }
