package db

// ConnectionState tracks where the database handle is in its lifecycle.
// Transitions are owned by Database and happen under its connection lock:
// Disconnected -> Connecting -> Connected on a successful connect,
// Connecting -> Error on a failed one, and any state -> Disconnected on
// an explicit disconnect or when a caller invalidates the connection
// after a transport failure.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
