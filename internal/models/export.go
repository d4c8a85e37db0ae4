package models

import "time"

// ExportInfo represents metadata about a saved log export.
type ExportInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"createdAt"`
}

// PortInfo is one row of the OS serial-port enumeration.
type PortInfo struct {
	Name string `json:"name"`
}
