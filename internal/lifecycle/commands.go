package lifecycle

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/relay"
)

// RequestGestures asks the recognizer for its gesture list.
func (c *Coordinator) RequestGestures() error {
	return c.send(protocol.GetGestures())
}

// StartCalibration puts the recognizer into calibration mode.
func (c *Coordinator) StartCalibration() error {
	return c.send(protocol.CalibrateStart())
}

// StopCalibration leaves calibration mode.
func (c *Coordinator) StopCalibration() error {
	return c.send(protocol.StopCalibrate())
}

// StartRecording starts recording samples for the named gesture.
func (c *Coordinator) StartRecording(name string) error {
	line, err := protocol.Record(name)
	if err != nil {
		return err
	}
	return c.send(line)
}

// StopRecording finishes the current recording.
func (c *Coordinator) StopRecording() error {
	return c.send(protocol.StopRecord())
}

// DeleteGesture asks the recognizer to delete the named gesture.
func (c *Coordinator) DeleteGesture(name string) error {
	line, err := protocol.DeleteGesture(name)
	if err != nil {
		return err
	}
	return c.send(line)
}

// Send writes a raw command line. It is meant for debugging; the typed
// command methods should be preferred.
func (c *Coordinator) Send(line string) error {
	if err := protocol.ValidateCommand(line); err != nil {
		return err
	}
	return c.send(line)
}

func (c *Coordinator) send(line string) error {
	c.mu.Lock()
	rel := c.relay
	gen := c.gen
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || rel == nil {
		c.logger.Warn("Command dropped, not connected", zap.String("command", line))
		return ErrNotConnected
	}

	err := rel.Send(line)
	c.metrics.CommandSent(err)
	if err != nil {
		var terr *relay.TransportError
		if errors.As(err, &terr) {
			go c.connectionLost(gen, err)
		}
		return err
	}
	return nil
}

// handleMessage turns a decoded line into an event. Messages from a cycle
// that is no longer current are dropped.
func (c *Coordinator) handleMessage(gen uint64, msg protocol.Message) {
	if !c.isCurrent(gen) {
		return
	}
	c.metrics.MessageReceived(msg.Kind.String())

	switch msg.Kind {
	case protocol.KindGesture:
		c.metrics.GestureDetected(msg.Name)
		c.emit(Event{Type: EventGesture, Gesture: msg.Name})
	case protocol.KindGestureList:
		names := append([]string(nil), msg.Names...)
		c.logger.Info("Received gesture list", zap.Strings("gestures", names))
		c.emit(Event{Type: EventGestureList, Gestures: names})
	case protocol.KindRecordSuccess:
		c.logger.Info("Gesture recorded", zap.String("gesture", msg.Name))
		c.emit(Event{Type: EventRecordResult, Gesture: msg.Name, OK: true})
	case protocol.KindRecordError:
		c.logger.Warn("Recording failed", zap.String("error", msg.Text))
		c.emit(Event{Type: EventRecordResult, Message: msg.Text})
	case protocol.KindDeleteSuccess:
		c.logger.Info("Gesture deleted", zap.String("gesture", msg.Name))
		c.emit(Event{Type: EventDeleteResult, Gesture: msg.Name, OK: true})
	case protocol.KindDeleteError:
		c.logger.Warn("Delete failed", zap.String("error", msg.Text))
		c.emit(Event{Type: EventDeleteResult, Message: msg.Text})
	case protocol.KindCalibrationComplete:
		c.logger.Info("Calibration complete")
		c.emit(Event{Type: EventCalibration, OK: true})
	case protocol.KindCalibrationError:
		c.logger.Warn("Calibration failed", zap.String("error", msg.Text))
		c.emit(Event{Type: EventCalibration, Message: msg.Text})
	}
}
