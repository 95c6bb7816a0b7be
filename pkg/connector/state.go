package connector

import "fmt"

// State is the connection state of a Connector.
type State int32

const (
	// Disconnected: no session, no retry scheduled.
	Disconnected State = iota
	// Connecting: an acquisition attempt is in flight.
	Connecting
	// Connected: a session is live and delivering frames.
	Connected
	// RetryPending: the last attempt failed or the session was lost; the
	// retry timer is armed.
	RetryPending
)

var stateNames = [...]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
	RetryPending: "retry_pending",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
