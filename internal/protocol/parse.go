package protocol

import "strings"

// telemetryLabels are the per-channel detail lines a device emits after a
// status query. They pass through to the log verbatim as one block.
var telemetryLabels = []string{
	"Target Current:",
	"Measured Current:",
	"Bus Voltage:",
	"Shunt Voltage:",
	"Power:",
	"DAC Value:",
	"DAC Voltage:",
	"Control State:",
}

// ParseLine classifies one inbound line by literal prefix, in fixed priority
// order, into a Message. It never fails: lines that match no tag come back as
// KindText, and tagged lines with malformed numeric payloads keep their kind
// with NumOK unset. The input is expected to be already trimmed by the reader.
func ParseLine(line string) Message {
	switch {
	case strings.HasPrefix(line, "VER:"):
		return Message{Kind: KindVersion, Raw: line, Value: strings.TrimSpace(line[len("VER:"):])}

	case strings.HasPrefix(line, "TOTAL:"):
		return numericMessage(KindTotalDevices, line, line[len("TOTAL:"):])

	case strings.HasPrefix(line, "STATE:"):
		return Message{Kind: KindSystemState, Raw: line, Value: strings.TrimSpace(line[len("STATE:"):])}

	case strings.HasPrefix(line, "INA226:"):
		return Message{Kind: KindINA226Status, Raw: line, Value: strings.TrimSpace(line[len("INA226:"):])}

	case strings.HasPrefix(line, "GROUP_TOTAL:"):
		return numericMessage(KindGroupTotal, line, line[len("GROUP_TOTAL:"):])

	case strings.HasPrefix(line, "FRAME_COUNT:"):
		return numericMessage(KindFrameCount, line, line[len("FRAME_COUNT:"):])

	case strings.HasPrefix(line, "INTERFRAME_DELAY:"):
		return numericMessage(KindInterframeDelay, line, line[len("INTERFRAME_DELAY:"):])

	case strings.HasPrefix(line, "EOT"):
		return Message{Kind: KindEOT, Raw: line}

	case strings.HasPrefix(line, "PROGRAM_ACK:"):
		return Message{Kind: KindProgramAck, Raw: line, Value: strings.TrimSpace(line[len("PROGRAM_ACK:"):])}

	case strings.HasPrefix(line, "FRAME_SET:"):
		return Message{Kind: KindFrameAck, Raw: line, Value: strings.TrimSpace(line[len("FRAME_SET:"):])}

	case strings.HasPrefix(line, "ERR:"):
		return Message{Kind: KindError, Raw: line, Value: strings.TrimSpace(line[len("ERR:"):])}

	case strings.HasPrefix(line, "ERROR:"):
		return Message{Kind: KindError, Raw: line, Value: strings.TrimSpace(line[len("ERROR:"):])}

	case strings.HasPrefix(line, "EMERGENCY:"):
		return Message{Kind: KindEmergency, Raw: line, Value: strings.TrimSpace(line[len("EMERGENCY:"):])}

	case isTelemetryLine(line):
		return Message{Kind: KindTelemetry, Raw: line, Value: line}

	default:
		return Message{Kind: KindText, Raw: line, Value: line}
	}
}

func numericMessage(kind Kind, raw, payload string) Message {
	m := Message{Kind: kind, Raw: raw, Value: strings.TrimSpace(payload)}
	m.Num, m.NumOK = parseNonNegInt(m.Value)
	return m
}

func isTelemetryLine(line string) bool {
	if strings.HasPrefix(line, "===") {
		return true
	}
	for _, label := range telemetryLabels {
		if strings.HasPrefix(line, label) {
			return true
		}
	}
	return false
}

// parseNonNegInt parses a plain decimal integer without regex or strconv
// error allocation on the hot path. Anything but pure digits (or a value
// overflowing int32) reports false.
func parseNonNegInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
		if n > 1<<31-1 {
			return 0, false
		}
	}
	return n, true
}
