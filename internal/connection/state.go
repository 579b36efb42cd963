// Package connection opens the TCP connection to the recognizer with bounded,
// linearly spaced retries.
package connection

// State represents the state of the recognizer connection.
type State int

const (
	// StateDisconnected indicates no connection exists.
	StateDisconnected State = iota
	// StateConnecting indicates a connection cycle is dialing.
	StateConnecting
	// StateConnected indicates the socket is open.
	StateConnected
	// StateFailed indicates the last connection cycle exhausted its attempts.
	StateFailed
)

// String returns the string representation of the connection state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
