package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solar-control/backend/internal/models"
)

// Validation bounds enforced by the controller firmware.
const (
	AngleMin = 60
	AngleMax = 120

	CurrentMinMA = 0
	CurrentMaxMA = 1500

	ExposureMinMs = 10

	FrameCountMin = 1
	FrameCountMax = 1000
	FrameDelayMin = 5
)

// BroadcastDevice addresses every board in the chain.
const BroadcastDevice = "000"

// Command is a controller intent. Validate must pass for the revision the
// connection speaks before Encode output may be written to the wire.
type Command interface {
	// Validate checks field ranges and revision fit; it returns a
	// *ValidationError and guarantees nothing was sent.
	Validate(rev models.Revision) error
	// Encode renders the wire line without the trailing terminator.
	// Only meaningful after a successful Validate.
	Encode() string
}

// Status requests a status report from every device.
type Status struct{}

func (Status) Validate(models.Revision) error { return nil }
func (Status) Encode() string                 { return "status" }

// Reinit re-runs chain enumeration on the controller.
type Reinit struct{}

func (Reinit) Validate(models.Revision) error { return nil }
func (Reinit) Encode() string                 { return "reinit" }

// CurrentQuery asks every channel for its live current telemetry.
type CurrentQuery struct{}

func (CurrentQuery) Validate(rev models.Revision) error {
	if rev == models.RevisionV2 {
		return &ValidationError{Field: "command", Constraint: "current query is only spoken by v1 firmware"}
	}
	return nil
}
func (CurrentQuery) Encode() string { return "current" }

// Emergency shuts every channel down. Destructive: the caller must set
// Confirmed explicitly or validation refuses to encode it.
type Emergency struct {
	Confirmed bool
}

func (c Emergency) Validate(models.Revision) error {
	if !c.Confirmed {
		return &ValidationError{Field: "confirm", Constraint: "emergency stop requires explicit confirmation"}
	}
	return nil
}
func (Emergency) Encode() string { return "emergency" }

// Start begins the programmed exposure run.
type Start struct{}

func (Start) Validate(rev models.Revision) error {
	if rev == models.RevisionV1 {
		return &ValidationError{Field: "command", Constraint: "start is only spoken by v2 firmware"}
	}
	return nil
}
func (Start) Encode() string { return "start" }

// SetServo moves one device's servo (or all, via the broadcast address).
type SetServo struct {
	Device string
	Angle  int
}

func (c SetServo) Validate(models.Revision) error {
	if err := validateDevice(c.Device); err != nil {
		return err
	}
	if c.Angle < AngleMin || c.Angle > AngleMax {
		return &ValidationError{
			Field:      "angle",
			Constraint: fmt.Sprintf("must be between %d and %d degrees", AngleMin, AngleMax),
		}
	}
	return nil
}

func (c SetServo) Encode() string {
	return c.Device + ",servo," + strconv.Itoa(c.Angle)
}

// SetCurrent drives one device's LED channel at a constant current.
type SetCurrent struct {
	Device    string
	MilliAmps int
}

func (c SetCurrent) Validate(rev models.Revision) error {
	if rev == models.RevisionV2 {
		return &ValidationError{Field: "command", Constraint: "constant current is only spoken by v1 firmware"}
	}
	if err := validateDevice(c.Device); err != nil {
		return err
	}
	if c.MilliAmps < CurrentMinMA || c.MilliAmps > CurrentMaxMA {
		return &ValidationError{
			Field:      "ma",
			Constraint: fmt.Sprintf("must be between %d and %d mA", CurrentMinMA, CurrentMaxMA),
		}
	}
	return nil
}

func (c SetCurrent) Encode() string {
	return c.Device + ",current," + strconv.Itoa(c.MilliAmps)
}

// Program stores group exposure parameters on one device.
type Program struct {
	Device     string
	GroupID    int
	GroupTotal int
	MilliAmps  int
	ExposureMs int
}

func (c Program) Validate(rev models.Revision) error {
	if rev == models.RevisionV1 {
		return &ValidationError{Field: "command", Constraint: "program is only spoken by v2 firmware"}
	}
	if err := validateDevice(c.Device); err != nil {
		return err
	}
	if c.MilliAmps < CurrentMinMA || c.MilliAmps > CurrentMaxMA {
		return &ValidationError{
			Field:      "ma",
			Constraint: fmt.Sprintf("must be between %d and %d mA", CurrentMinMA, CurrentMaxMA),
		}
	}
	if c.ExposureMs < ExposureMinMs {
		return &ValidationError{
			Field:      "exposureMs",
			Constraint: fmt.Sprintf("must be at least %d ms", ExposureMinMs),
		}
	}
	if c.GroupTotal < 1 {
		return &ValidationError{Field: "groupTotal", Constraint: "must be at least 1"}
	}
	if c.GroupID < 1 || c.GroupID > c.GroupTotal {
		return &ValidationError{
			Field:      "groupId",
			Constraint: fmt.Sprintf("must be between 1 and groupTotal (%d)", c.GroupTotal),
		}
	}
	return nil
}

func (c Program) Encode() string {
	return fmt.Sprintf("%s,program,{%d,%d,%d,%d}", c.Device, c.GroupID, c.GroupTotal, c.MilliAmps, c.ExposureMs)
}

// SetFrame configures how many frames the run captures and the gap between them.
type SetFrame struct {
	FrameCount int
	DelayMs    int
}

func (c SetFrame) Validate(rev models.Revision) error {
	if rev == models.RevisionV1 {
		return &ValidationError{Field: "command", Constraint: "frame setup is only spoken by v2 firmware"}
	}
	if c.FrameCount < FrameCountMin || c.FrameCount > FrameCountMax {
		return &ValidationError{
			Field:      "frameCount",
			Constraint: fmt.Sprintf("must be between %d and %d", FrameCountMin, FrameCountMax),
		}
	}
	if c.DelayMs < FrameDelayMin {
		return &ValidationError{
			Field:      "delayMs",
			Constraint: fmt.Sprintf("must be at least %d ms", FrameDelayMin),
		}
	}
	return nil
}

func (c SetFrame) Encode() string {
	return "frame," + strconv.Itoa(c.FrameCount) + "," + strconv.Itoa(c.DelayMs)
}

// FormatDevice renders a chain index as the zero-padded wire address.
func FormatDevice(index int) string {
	return fmt.Sprintf("%03d", index)
}

func validateDevice(dev string) error {
	if len(dev) != 3 {
		return &ValidationError{Field: "device", Constraint: "must be a zero-padded 3-digit address"}
	}
	for i := 0; i < len(dev); i++ {
		if dev[i] < '0' || dev[i] > '9' {
			return &ValidationError{Field: "device", Constraint: "must be a zero-padded 3-digit address"}
		}
	}
	return nil
}

// ParseCommand maps wire text back to its intent. It is the inverse of
// Encode and is used to check sequence steps before they run. Syntax only:
// range checks still happen through Validate.
func ParseCommand(text string) (Command, error) {
	switch text {
	case "status":
		return Status{}, nil
	case "reinit":
		return Reinit{}, nil
	case "current":
		return CurrentQuery{}, nil
	case "emergency":
		return Emergency{}, nil
	case "start":
		return Start{}, nil
	}

	parts := strings.Split(text, ",")
	switch {
	case len(parts) == 3 && parts[0] == "frame":
		count, ok1 := parseNonNegInt(parts[1])
		delay, ok2 := parseNonNegInt(parts[2])
		if !ok1 || !ok2 {
			return nil, &ParseError{Text: text, Reason: "frame takes two integer arguments"}
		}
		return SetFrame{FrameCount: count, DelayMs: delay}, nil

	case len(parts) == 3 && parts[1] == "servo":
		angle, ok := parseNonNegInt(parts[2])
		if !ok {
			return nil, &ParseError{Text: text, Reason: "servo angle must be an integer"}
		}
		return SetServo{Device: parts[0], Angle: angle}, nil

	case len(parts) == 3 && parts[1] == "current":
		ma, ok := parseNonNegInt(parts[2])
		if !ok {
			return nil, &ParseError{Text: text, Reason: "current must be an integer"}
		}
		return SetCurrent{Device: parts[0], MilliAmps: ma}, nil

	case len(parts) == 6 && parts[1] == "program":
		inner := strings.Join(parts[2:], ",")
		if !strings.HasPrefix(inner, "{") || !strings.HasSuffix(inner, "}") {
			return nil, &ParseError{Text: text, Reason: "program arguments must be brace-wrapped"}
		}
		args := strings.Split(inner[1:len(inner)-1], ",")
		if len(args) != 4 {
			return nil, &ParseError{Text: text, Reason: "program takes four integer arguments"}
		}
		vals := make([]int, 4)
		for i, a := range args {
			v, ok := parseNonNegInt(a)
			if !ok {
				return nil, &ParseError{Text: text, Reason: "program takes four integer arguments"}
			}
			vals[i] = v
		}
		return Program{
			Device:     parts[0],
			GroupID:    vals[0],
			GroupTotal: vals[1],
			MilliAmps:  vals[2],
			ExposureMs: vals[3],
		}, nil
	}

	return nil, &ParseError{Text: text, Reason: "unrecognized command"}
}
