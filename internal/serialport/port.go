// Package serialport owns the physical link to the controller chain: opening
// and closing the OS serial handle, line writes, bounded-latency reads, and
// port enumeration.
package serialport

import (
	"io"
	"sort"
	"time"

	"go.bug.st/serial"

	"github.com/solar-control/backend/internal/models"
)

// Conn is the byte-level connection the session reads and writes. The real
// serial port satisfies it, as does the fake used in tests.
type Conn interface {
	io.ReadWriteCloser
}

// Config describes how to open a port. ReadTimeout bounds every Read call so
// the reader goroutine can observe shutdown without busy-spinning; a timed-out
// Read returns zero bytes and no error.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// Open reserves the OS serial handle in 8N1 framing. Failures come back as a
// *ConnectionError and leave nothing to release.
func Open(cfg Config) (Conn, error) {
	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, classifyOpenError(cfg.Port, err)
	}

	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, &ConnectionError{Port: cfg.Port, Reason: "cannot set read timeout", Err: err}
		}
	}

	return port, nil
}

// WriteLine writes text with a single newline terminator appended. The caller
// serializes writers; a failure maps to *IoError.
func WriteLine(c Conn, text string) error {
	if _, err := c.Write([]byte(text + "\n")); err != nil {
		return &IoError{Op: "write", Err: err}
	}
	return nil
}

// ListPorts enumerates the serial ports the OS currently exposes, sorted by
// name.
func ListPorts() ([]models.PortInfo, error) {
	names, err := serial.GetPortsList()
	if err != nil {
		return nil, &ConnectionError{Reason: "cannot enumerate serial ports", Err: err}
	}
	sort.Strings(names)

	ports := make([]models.PortInfo, 0, len(names))
	for _, name := range names {
		ports = append(ports, models.PortInfo{Name: name})
	}
	return ports, nil
}
