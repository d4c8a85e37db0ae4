// Package logbuf implements the retained traffic log of a serial session: an
// append-only buffer of classified entries with display-time filtering,
// plain-text export, and fan-out to live subscribers.
package logbuf

import (
	"bufio"
	"io"
	"sync"
	"time"

	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
)

// Buffer is the append-only log sink. Appends never mutate earlier entries;
// hiding debug chatter is a view-time predicate over the retained buffer, so
// toggling the filter replays history instead of losing it.
type Buffer struct {
	mu        sync.RWMutex
	entries   []models.LogEntry
	nextSeq   uint64
	retainMax int
	hideDebug bool

	nextSub uint64
	subs    map[uint64]chan models.LogEntry
}

// New creates a buffer retaining at most retainMax entries; zero means
// unbounded. Old entries are evicted past the cap but sequence numbers keep
// counting.
func New(retainMax int) *Buffer {
	return &Buffer{
		nextSeq:   1,
		retainMax: retainMax,
		subs:      make(map[uint64]chan models.LogEntry),
	}
}

// Append stamps and retains one entry, then fans it out to subscribers.
// Subscribers that cannot keep up miss entries rather than block the appender.
func (b *Buffer) Append(text string, tag models.LogTag) models.LogEntry {
	b.mu.Lock()
	entry := models.LogEntry{
		Seq:       b.nextSeq,
		Timestamp: time.Now(),
		Text:      text,
		Tag:       tag,
	}
	b.nextSeq++
	b.entries = append(b.entries, entry)
	if b.retainMax > 0 && len(b.entries) > b.retainMax {
		trimmed := make([]models.LogEntry, b.retainMax)
		copy(trimmed, b.entries[len(b.entries)-b.retainMax:])
		b.entries = trimmed
	}
	for _, ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	b.mu.Unlock()
	return entry
}

// SetHideDebug toggles suppression of DEBUG-marked lines from the visible view.
func (b *Buffer) SetHideDebug(hide bool) {
	b.mu.Lock()
	b.hideDebug = hide
	b.mu.Unlock()
}

// HideDebug reports the current filter flag.
func (b *Buffer) HideDebug() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hideDebug
}

// Visible recomputes the filtered view over the retained entries. A line is
// hidden only while the flag is on, it carries the DEBUG: marker, and it is
// not error-classified; error and emergency lines always show.
func (b *Buffer) Visible() []models.LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]models.LogEntry, 0, len(b.entries))
	for _, e := range b.entries {
		if b.hidden(e) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// IsVisible applies the current filter to a single entry. Live streams use it
// so their view matches Visible.
func (b *Buffer) IsVisible(e models.LogEntry) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.hidden(e)
}

// hidden is the filter predicate. Callers hold b.mu.
func (b *Buffer) hidden(e models.LogEntry) bool {
	return b.hideDebug && e.Tag != models.LogTagError && protocol.HasDebugMarker(e.Text)
}

// Snapshot returns every retained entry in append order.
func (b *Buffer) Snapshot() []models.LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.LogEntry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Len returns the retained entry count.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Clear drops all retained entries. Irreversible; sequence numbers keep
// counting so later entries stay ordered against any exported history.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// Export writes the full retained buffer as plain text, one timestamped line
// per entry, ignoring the debug filter. Returns the bytes written.
func (b *Buffer) Export(w io.Writer) (int64, error) {
	entries := b.Snapshot()

	bw := bufio.NewWriter(w)
	var written int64
	for _, e := range entries {
		n, err := bw.WriteString(e.FormatLine() + "\n")
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	if err := bw.Flush(); err != nil {
		return written, err
	}
	return written, nil
}

// Subscribe registers a live feed of appended entries. The returned cancel
// function must be called to release the subscription; buffer sets how many
// entries may queue before the subscriber starts missing them.
func (b *Buffer) Subscribe(buffer int) (<-chan models.LogEntry, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.LogEntry, buffer)

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}
