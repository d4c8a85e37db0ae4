// Package models contains domain types for the SOLAR control panel backend.
package models

import "time"

// LogTag classifies a log entry by direction and severity.
type LogTag string

const (
	LogTagOutgoing LogTag = "outgoing" // command written to the wire
	LogTagIncoming LogTag = "incoming" // raw device line
	LogTagSuccess  LogTag = "success"  // completion acknowledgment
	LogTagError    LogTag = "error"    // device error or I/O failure
	LogTagInfo     LogTag = "info"     // client-side note
)

// LogEntry represents one retained line of serial traffic or client activity.
// Entries are immutable once appended; Seq increases monotonically per session.
type LogEntry struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
	Tag       LogTag    `json:"tag"`
}

// FormatLine renders the entry the way the panel and the plain-text export
// show it: a [HH:MM:SS] prefix followed by the untouched line text.
func (e LogEntry) FormatLine() string {
	return "[" + e.Timestamp.Format("15:04:05") + "] " + e.Text
}
