package serialport

import (
	"fmt"

	"go.bug.st/serial"
)

// ConnectionError reports a failure to open or enumerate; the connection
// stays closed and the caller may retry.
type ConnectionError struct {
	Port   string
	Reason string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("serial: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("serial %s: %s: %v", e.Port, e.Reason, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IoError reports a mid-session read or write failure. The session logs it
// once, tears the reader down, and does not reconnect on its own.
type IoError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("serial %s failed: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

func classifyOpenError(port string, err error) *ConnectionError {
	reason := "cannot open port"
	if portErr, ok := err.(*serial.PortError); ok {
		switch portErr.Code() {
		case serial.PortBusy:
			reason = "port is busy"
		case serial.PortNotFound:
			reason = "port not found"
		case serial.PermissionDenied:
			reason = "permission denied"
		case serial.InvalidSpeed:
			reason = "unsupported baud rate"
		}
	}
	return &ConnectionError{Port: port, Reason: reason, Err: err}
}
