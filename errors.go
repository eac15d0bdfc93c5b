package mudsmoke

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when sending or receiving without a live
// connection to the MUD server.
var ErrNotConnected = errors.New("not connected")

// NetworkError represents a failure talking to the MUD server.
type NetworkError struct {
	Op   string // "dial", "write", or "read"
	Addr string // host:port of the MUD server
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// LoginError reports that the login sequence stopped waiting for a prompt
// which never arrived.
type LoginError struct {
	State  LoginState
	Output string // what the server did send while we waited
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login stalled in state %s", e.State)
}

// ScenarioFileError wraps a failure to read or compile a scenario file.
type ScenarioFileError struct {
	Path string
	Err  error
}

func (e *ScenarioFileError) Error() string {
	return fmt.Sprintf("scenario file %s: %v", e.Path, e.Err)
}

func (e *ScenarioFileError) Unwrap() error { return e.Err }
