// Package testutil provides test doubles for the serial link.
package testutil

import (
	"errors"
	"sync"
	"time"

	"github.com/solar-control/backend/internal/serialport"
)

// FakePort is an in-memory serialport.Conn for tests. Reads are scripted as
// chunks so tests can exercise partial-line delivery; an empty script behaves
// like a timed-out read on a real port (0, nil).
type FakePort struct {
	mu      sync.Mutex
	chunks  [][]byte
	written []byte
	readErr error
	closed  bool
}

// Interface assertion
var _ serialport.Conn = (*FakePort)(nil)

// NewFakePort creates an empty fake port.
func NewFakePort() *FakePort {
	return &FakePort{}
}

// QueueRead appends a raw chunk to the read script. Each call to Read
// consumes at most one chunk, so consecutive chunks model data arriving
// across separate polls.
func (f *FakePort) QueueRead(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, append([]byte(nil), data...))
}

// QueueLine appends text plus a trailing newline to the read script.
func (f *FakePort) QueueLine(text string) {
	f.QueueRead([]byte(text + "\n"))
}

// FailNext makes the next Read return err after the script drains.
func (f *FakePort) FailNext(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *FakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if len(f.chunks) > 0 {
		chunk := f.chunks[0]
		n := copy(p, chunk)
		if n < len(chunk) {
			f.chunks[0] = chunk[n:]
		} else {
			f.chunks = f.chunks[1:]
		}
		f.mu.Unlock()
		return n, nil
	}
	if f.readErr != nil {
		err := f.readErr
		f.readErr = nil
		f.mu.Unlock()
		return 0, err
	}
	f.mu.Unlock()

	// Script drained: behave like a read timeout so the reader loop keeps
	// polling instead of spinning.
	time.Sleep(time.Millisecond)
	return 0, nil
}

func (f *FakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, errors.New("port closed")
	}
	f.written = append(f.written, p...)
	return len(p), nil
}

// Close marks the port closed. Subsequent reads and writes fail, which is
// how closing a real port unblocks a pending read.
func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Written returns everything written so far, split on newlines with the
// terminators removed.
func (f *FakePort) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []string
	start := 0
	for i, b := range f.written {
		if b == '\n' {
			lines = append(lines, string(f.written[start:i]))
			start = i + 1
		}
	}
	return lines
}

// Closed reports whether Close has been called.
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
