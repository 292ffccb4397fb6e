package telemetry

// State represents the connection lifecycle state.
type State uint8

const (
	// StateDisconnected indicates no connection and no pending attempt.
	StateDisconnected State = iota

	// StateConnecting indicates the transport handshake is in progress.
	StateConnecting

	// StateConnected indicates a live connection; streaming may occur.
	StateConnected

	// StateFailed indicates the last handshake failed. A fresh connect
	// request is required to retry.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Status is the published lifecycle snapshot.
type Status struct {
	// State is the current lifecycle state.
	State State

	// FailReason carries the handshake failure description while State is
	// StateFailed, empty otherwise.
	FailReason string
}
