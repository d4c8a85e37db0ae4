// Package protocol implements the line-oriented wire protocol spoken by the
// SOLAR controller chain: classification of inbound device lines into typed
// messages and encoding of validated command intents into outbound lines.
package protocol

import (
	"strings"

	"github.com/solar-control/backend/internal/models"
)

// Kind identifies the classified type of an inbound line.
type Kind string

const (
	KindVersion         Kind = "version"
	KindTotalDevices    Kind = "total_devices"
	KindSystemState     Kind = "system_state"
	KindINA226Status    Kind = "ina226_status"
	KindGroupTotal      Kind = "group_total"
	KindFrameCount      Kind = "frame_count"
	KindInterframeDelay Kind = "interframe_delay"
	KindEOT             Kind = "eot"
	KindProgramAck      Kind = "program_ack"
	KindFrameAck        Kind = "frame_ack"
	KindError           Kind = "error"
	KindEmergency       Kind = "emergency"
	KindTelemetry       Kind = "telemetry"
	KindText            Kind = "text"
)

// DebugMarker flags firmware debug chatter that the panel can hide.
const DebugMarker = "DEBUG:"

// Message is the typed form of one inbound line. Raw always holds the line
// exactly as received; Value holds the payload after the tag for tagged
// kinds. Num carries the parsed integer payload only when NumOK is set: a
// tagged line with a garbled number keeps its Kind but must not touch
// device state.
type Message struct {
	Kind  Kind
	Raw   string
	Value string
	Num   int
	NumOK bool
}

// LogTag maps the message kind to the log classification the panel shows.
func (m Message) LogTag() models.LogTag {
	switch m.Kind {
	case KindError, KindEmergency:
		return models.LogTagError
	case KindEOT, KindProgramAck, KindFrameAck:
		return models.LogTagSuccess
	default:
		return models.LogTagIncoming
	}
}

// HasDebugMarker reports whether the line carries the DEBUG: marker anywhere.
// Suppression applies to marker-at-start and marker-in-body alike; error and
// emergency lines are exempted by the caller regardless.
func HasDebugMarker(line string) bool {
	return strings.Contains(line, DebugMarker)
}
