package session

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect when a session is open.
	ErrAlreadyConnected = errors.New("a serial session is already open")

	// ErrConnectPending is returned by Connect while another attempt is
	// still opening the port.
	ErrConnectPending = errors.New("a connection attempt is already in progress")

	// ErrNotConnected is returned by operations that need an open session.
	ErrNotConnected = errors.New("no serial session is open")

	// ErrSessionClosed is returned by Send after the session has stopped.
	ErrSessionClosed = errors.New("serial session is closed")
)
