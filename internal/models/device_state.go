package models

// StateUnknown is the placeholder for string fields no device message has
// populated since the connection opened.
const StateUnknown = "Unknown"

// CompletionKind names which acknowledgment finished the previous command.
type CompletionKind string

const (
	CompletionEOT     CompletionKind = "eot"
	CompletionProgram CompletionKind = "program"
	CompletionFrame   CompletionKind = "frame"
)

// Completion records the most recent command acknowledgment.
type Completion struct {
	Kind CompletionKind `json:"kind"`
	At   int64          `json:"at"` // Unix ms
}

// DeviceState is the last-known-value snapshot of the controller chain.
// Every field holds the most recently parsed value for its tag; fields no
// message has touched since connect carry their zero default. Only the
// session dispatch loop writes to it.
type DeviceState struct {
	TotalDevices    int    `json:"totalDevices"`
	SystemState     string `json:"systemState"`
	INA226Status    string `json:"ina226Status"`
	GroupTotal      int    `json:"groupTotal"`
	FrameCount      int    `json:"frameCount"`
	InterframeDelay int    `json:"interframeDelay"`
	FirmwareVersion string `json:"firmwareVersion,omitempty"`

	LastCompleted *Completion `json:"lastCompleted,omitempty"`
}

// NewDeviceState returns a state with all fields at their defaults.
func NewDeviceState() DeviceState {
	return DeviceState{
		SystemState:  StateUnknown,
		INA226Status: StateUnknown,
	}
}

// Reset returns every field to its connect-time default.
func (s *DeviceState) Reset() {
	*s = NewDeviceState()
}
