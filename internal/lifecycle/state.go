package lifecycle

// State is the lifecycle state of the Coordinator.
type State int

const (
	// StateIdle means no process and no connection.
	StateIdle State = iota
	// StateStarting means a connection cycle is launching the process or dialing.
	StateStarting
	// StateConnected means the recognizer is running and connected.
	StateConnected
	// StateStopping means a manual stop is tearing the session down.
	StateStopping
)

// AllStates lists every state in transition order.
var AllStates = []State{StateIdle, StateStarting, StateConnected, StateStopping}

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateConnected:
		return "Connected"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func stateNames() []string {
	names := make([]string, len(AllStates))
	for i, s := range AllStates {
		names[i] = s.String()
	}
	return names
}
