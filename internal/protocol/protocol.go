// Package protocol encodes and decodes the line-based text protocol spoken
// between mudra and the external recognition process.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Outbound commands (client -> recognizer).
const (
	CmdGetGestures    = "GET_GESTURES"
	CmdCalibrateStart = "CALIBRATE:START"
	CmdStopCalibrate  = "STOP_CALIBRATE"
	CmdRecordPrefix   = "RECORD:"
	CmdStopRecord     = "STOP_RECORD"
	CmdDeletePrefix   = "DELETE_GESTURE:"
)

// Inbound message prefixes (recognizer -> client).
const (
	prefixGesture          = "GESTURE:"
	prefixGesturesList     = "GESTURES_LIST:"
	prefixRecordSuccess    = "RECORD_SUCCESS:"
	prefixRecordError      = "RECORD_ERROR:"
	prefixDeleteSuccess    = "DELETE_SUCCESS:"
	prefixDeleteError      = "DELETE_ERROR:"
	prefixCalibrationError = "CALIBRATION_ERROR:"
	calibrationComplete    = "CALIBRATION_COMPLETE"

	// Older recognizer builds still emit these.
	legacyGesturesList = "GESTURES:"
	legacyRecordSaved  = "GESTURE_SAVED:"
	legacyDeleted      = "DELETED:"
)

var (
	// ErrInvalidName is returned when a gesture name cannot be carried on the wire.
	ErrInvalidName = errors.New("invalid gesture name")
	// ErrInvalidCommand is returned for a raw command that is empty or spans lines.
	ErrInvalidCommand = errors.New("invalid command")
)

// Kind identifies the type of an inbound message.
type Kind int

const (
	KindUnknown Kind = iota
	KindGesture
	KindGestureList
	KindRecordSuccess
	KindRecordError
	KindDeleteSuccess
	KindDeleteError
	KindCalibrationComplete
	KindCalibrationError
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindGesture:
		return "gesture"
	case KindGestureList:
		return "gesture_list"
	case KindRecordSuccess:
		return "record_success"
	case KindRecordError:
		return "record_error"
	case KindDeleteSuccess:
		return "delete_success"
	case KindDeleteError:
		return "delete_error"
	case KindCalibrationComplete:
		return "calibration_complete"
	case KindCalibrationError:
		return "calibration_error"
	default:
		return "unknown"
	}
}

// Message is a decoded inbound line.
type Message struct {
	Kind Kind
	// Name is the gesture name for gesture, record and delete messages.
	Name string
	// Names holds the gesture list for KindGestureList.
	Names []string
	// Text is the error text for *_ERROR messages.
	Text string
	// Raw is the original line with the trailing newline removed.
	Raw string
}

// Error reports a line that does not match any known message, or a known
// message missing its required payload.
type Error struct {
	Line   string
	Reason string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unrecognized message: %q: %s", e.Line, e.Reason)
	}
	return fmt.Sprintf("unrecognized message: %q", e.Line)
}

// Parse decodes a single line received from the recognizer.
// Unrecognized lines, and gesture, record or delete confirmations without a
// name, return a *Error together with a KindUnknown message.
func Parse(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	msg := Message{Raw: line}
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == calibrationComplete:
		msg.Kind = KindCalibrationComplete
	case strings.HasPrefix(trimmed, prefixGesturesList):
		msg.Kind = KindGestureList
		msg.Names = SplitNames(strings.TrimPrefix(trimmed, prefixGesturesList))
	case strings.HasPrefix(trimmed, legacyGesturesList):
		msg.Kind = KindGestureList
		msg.Names = SplitNames(strings.TrimPrefix(trimmed, legacyGesturesList))
	case strings.HasPrefix(trimmed, legacyRecordSaved):
		msg.Kind = KindRecordSuccess
		msg.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, legacyRecordSaved))
	case strings.HasPrefix(trimmed, prefixGesture):
		msg.Kind = KindGesture
		msg.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixGesture))
	case strings.HasPrefix(trimmed, prefixRecordSuccess):
		msg.Kind = KindRecordSuccess
		msg.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixRecordSuccess))
	case strings.HasPrefix(trimmed, prefixRecordError):
		msg.Kind = KindRecordError
		msg.Text = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixRecordError))
	case strings.HasPrefix(trimmed, prefixDeleteSuccess):
		msg.Kind = KindDeleteSuccess
		msg.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixDeleteSuccess))
	case strings.HasPrefix(trimmed, legacyDeleted):
		msg.Kind = KindDeleteSuccess
		msg.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, legacyDeleted))
	case strings.HasPrefix(trimmed, prefixDeleteError):
		msg.Kind = KindDeleteError
		msg.Text = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixDeleteError))
	case strings.HasPrefix(trimmed, prefixCalibrationError):
		msg.Kind = KindCalibrationError
		msg.Text = strings.TrimSpace(strings.TrimPrefix(trimmed, prefixCalibrationError))
	default:
		return msg, &Error{Line: line}
	}

	switch msg.Kind {
	case KindGesture, KindRecordSuccess, KindDeleteSuccess:
		if msg.Name == "" {
			return Message{Raw: line}, &Error{Line: line, Reason: "missing gesture name"}
		}
	}

	return msg, nil
}

// SplitNames splits a comma-separated gesture list, dropping blanks and duplicates.
func SplitNames(payload string) []string {
	parts := strings.Split(payload, ",")
	names := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ValidateName checks that a gesture name can be sent as a command argument.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, ":,\r\n") {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidName, name)
	}
	return nil
}

// ValidateCommand checks that a raw command fits on a single line.
func ValidateCommand(line string) error {
	if strings.TrimSpace(line) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidCommand)
	}
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: %q spans more than one line", ErrInvalidCommand, line)
	}
	return nil
}

// GetGestures returns the command requesting the recognizer's gesture list.
func GetGestures() string { return CmdGetGestures }

// CalibrateStart returns the command entering calibration mode.
func CalibrateStart() string { return CmdCalibrateStart }

// StopCalibrate returns the command leaving calibration mode.
func StopCalibrate() string { return CmdStopCalibrate }

// StopRecord returns the command finishing a recording.
func StopRecord() string { return CmdStopRecord }

// Record returns the command starting a recording of the named gesture.
func Record(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return CmdRecordPrefix + strings.TrimSpace(name), nil
}

// DeleteGesture returns the command deleting the named gesture.
func DeleteGesture(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return CmdDeletePrefix + strings.TrimSpace(name), nil
}
