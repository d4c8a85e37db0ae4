package models

// ConnectionStatus represents the lifecycle state of a serial session.
type ConnectionStatus string

const (
	ConnectionStatusConnecting   ConnectionStatus = "connecting"
	ConnectionStatusConnected    ConnectionStatus = "connected"
	ConnectionStatusDisconnected ConnectionStatus = "disconnected"
	ConnectionStatusFailed       ConnectionStatus = "failed" // reader died on an I/O error
)

// ConnectionSession describes one serial connection to the controller chain.
type ConnectionSession struct {
	ID       string           `json:"id"`
	Port     string           `json:"port"`
	Baud     int              `json:"baud"`
	Revision Revision         `json:"revision"`
	Status   ConnectionStatus `json:"status"`
	OpenedAt int64            `json:"openedAt,omitempty"` // Unix ms
	ClosedAt int64            `json:"closedAt,omitempty"` // Unix ms
	LastErr  string           `json:"lastError,omitempty"`
}

// Revision selects which firmware generation the encoder targets.
// The parser always accepts the union of both generations' tags.
type Revision string

const (
	// RevisionV1 speaks the original servo + constant-current firmware.
	RevisionV1 Revision = "v1"
	// RevisionV2 speaks the grouped exposure-programming firmware.
	RevisionV2 Revision = "v2"
)

// Valid reports whether r is a known firmware revision.
func (r Revision) Valid() bool {
	return r == RevisionV1 || r == RevisionV2
}

// NewConnectionSession creates a session in connecting status.
func NewConnectionSession(id, port string, baud int, rev Revision) *ConnectionSession {
	return &ConnectionSession{
		ID:       id,
		Port:     port,
		Baud:     baud,
		Revision: rev,
		Status:   ConnectionStatusConnecting,
	}
}
