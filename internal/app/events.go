package app

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/registry"
	"github.com/ayusman/mudra/internal/store"
)

func (a *App) loop(events <-chan lifecycle.Event, unsubscribe func()) {
	defer close(a.done)
	defer unsubscribe()

	for ev := range events {
		a.apply(ev)
		a.notifyListeners(ev)
	}
}

// apply updates the registry, the store and notifications for one event.
func (a *App) apply(ev lifecycle.Event) {
	switch ev.Type {
	case lifecycle.EventConnected:
		a.startSession(ev)
		a.notifier.Connected()

	case lifecycle.EventDisconnected:
		a.setLastGesture("")
		a.endSession(ev)
		if ev.Err != nil {
			a.notifier.Disconnected(ev.Err.Error())
		}

	case lifecycle.EventError:
		a.notifier.Error(ev.Message)

	case lifecycle.EventGestureList:
		a.registry.Replace(ev.Gestures)
		a.persistAll()

	case lifecycle.EventRecordResult:
		if !ev.OK {
			a.notifier.Error("Recording failed: " + ev.Message)
			return
		}
		a.registry.Add(ev.Gesture)
		a.persist(ev.Gesture, 0)
		a.notifier.Info("Gesture " + ev.Gesture + " recorded")

	case lifecycle.EventDeleteResult:
		if !ev.OK {
			a.notifier.Error("Delete failed: " + ev.Message)
			return
		}
		if err := a.registry.Remove(ev.Gesture); err != nil {
			a.logger.Warn("Deleted gesture was not in the registry", zap.String("gesture", ev.Gesture))
		}
		a.unpersist(ev.Gesture)

	case lifecycle.EventCalibration:
		if ev.OK {
			a.notifier.Info("Calibration complete")
		} else {
			a.notifier.Error("Calibration failed: " + ev.Message)
		}

	case lifecycle.EventGesture:
		a.setLastGesture(ev.Gesture)
		if count, ok := a.registry.Observe(ev.Gesture); ok {
			a.persistCount(ev.Gesture, count)
		} else {
			a.logger.Debug("Detected gesture is not in the registry", zap.String("gesture", ev.Gesture))
		}
		a.recordDetection(ev)
	}
}

func (a *App) notifyListeners(ev lifecycle.Event) {
	a.mu.RLock()
	listeners := append(([]func(Update))(nil), a.listeners...)
	last := a.lastGesture
	a.mu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	u := Update{Event: ev, State: a.coord.State(), LastGesture: last}
	for _, fn := range listeners {
		fn(u)
	}
}

func (a *App) setLastGesture(name string) {
	a.mu.Lock()
	a.lastGesture = name
	a.mu.Unlock()
}

func (a *App) persistAll() {
	if a.store == nil {
		return
	}
	entries := a.registry.Snapshot()
	gestures := make([]*store.Gesture, len(entries))
	for i, e := range entries {
		gestures[i] = &store.Gesture{Name: e.Name, Count: e.Count, Color: string(e.Color)}
	}
	if err := a.store.Gestures().Replace(gestures); err != nil {
		a.logger.Error("Failed to save gesture list", zap.Error(err))
	}
}

func (a *App) persist(name string, count int) {
	if a.store == nil {
		return
	}
	g := &store.Gesture{Name: name, Count: count, Color: string(registry.ColorFor(name))}
	if err := a.store.Gestures().Upsert(g); err != nil {
		a.logger.Error("Failed to save gesture", zap.String("gesture", name), zap.Error(err))
	}
}

func (a *App) persistCount(name string, count int) {
	if a.store == nil {
		return
	}
	err := a.store.Gestures().SetCount(name, count)
	if errors.Is(err, store.ErrNotFound) {
		a.persist(name, count)
		return
	}
	if err != nil {
		a.logger.Error("Failed to save gesture count", zap.String("gesture", name), zap.Error(err))
	}
}

func (a *App) unpersist(name string) {
	if a.store == nil {
		return
	}
	if err := a.store.Gestures().Delete(name); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.logger.Error("Failed to delete gesture", zap.String("gesture", name), zap.Error(err))
	}
}

func (a *App) startSession(ev lifecycle.Event) {
	if a.store == nil || ev.SessionID == "" {
		return
	}
	if err := a.store.Sessions().Start(ev.SessionID, ev.Time); err != nil {
		a.logger.Error("Failed to record session start", zap.Error(err))
	}
}

func (a *App) endSession(ev lifecycle.Event) {
	if a.store == nil || ev.SessionID == "" {
		return
	}
	reason := ""
	if ev.Err != nil {
		reason = ev.Err.Error()
	}
	if err := a.store.Sessions().End(ev.SessionID, ev.Time, reason); err != nil && !errors.Is(err, store.ErrNotFound) {
		a.logger.Error("Failed to record session end", zap.Error(err))
	}

	n, err := a.store.Detections().CountBySession(ev.SessionID)
	if err != nil {
		a.logger.Warn("Failed to count session detections", zap.Error(err))
		return
	}
	a.logger.Info("Session ended",
		zap.String("session_id", ev.SessionID),
		zap.Int("detections", n),
		zap.String("reason", reason))
}

func (a *App) recordDetection(ev lifecycle.Event) {
	if a.store == nil {
		return
	}
	d := &store.Detection{Gesture: ev.Gesture, SessionID: ev.SessionID, DetectedAt: ev.Time}
	if err := a.store.Detections().Create(d); err != nil {
		a.logger.Error("Failed to save detection", zap.String("gesture", ev.Gesture), zap.Error(err))
	}
}
