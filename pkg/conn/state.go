package conn

// State represents the connection lifecycle state.
type State int32

const (
	// StateClosed is the initial state and the terminal state after an
	// explicit disconnect.
	StateClosed State = iota

	// StateConnecting means a dial is in progress.
	StateConnecting

	// StateOpen means the transport is established and frames flow.
	StateOpen

	// StateReconnecting means the transport dropped and a retry is
	// scheduled behind a backoff delay.
	StateReconnecting
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
