package protocol

import (
	"fmt"
	"testing"

	"github.com/solar-control/backend/internal/models"
)

func TestParseLineClassification(t *testing.T) {
	cases := []struct {
		line string
		kind Kind
	}{
		{"VER:1.4.2", KindVersion},
		{"TOTAL:12", KindTotalDevices},
		{"STATE:RUNNING", KindSystemState},
		{"INA226:OK", KindINA226Status},
		{"GROUP_TOTAL:3", KindGroupTotal},
		{"FRAME_COUNT:100", KindFrameCount},
		{"INTERFRAME_DELAY:20", KindInterframeDelay},
		{"EOT", KindEOT},
		{"PROGRAM_ACK:001", KindProgramAck},
		{"FRAME_SET:100,20", KindFrameAck},
		{"ERR:servo out of range", KindError},
		{"ERROR: bad group id", KindError},
		{"EMERGENCY: shutdown all channels", KindEmergency},
		{"=== Device 001 ===", KindTelemetry},
		{"Target Current: 500 mA", KindTelemetry},
		{"Measured Current: 498.2 mA", KindTelemetry},
		{"Bus Voltage: 12.01 V", KindTelemetry},
		{"Shunt Voltage: 0.05 mV", KindTelemetry},
		{"Power: 6.0 W", KindTelemetry},
		{"DAC Value: 1024", KindTelemetry},
		{"DAC Voltage: 0.82 V", KindTelemetry},
		{"Control State: LOCKED", KindTelemetry},
		{"DEBUG: loop took 3ms", KindText},
		{"hello from the bench", KindText},
	}

	for _, tc := range cases {
		msg := ParseLine(tc.line)
		if msg.Kind != tc.kind {
			t.Errorf("ParseLine(%q): expected kind %s, got %s", tc.line, tc.kind, msg.Kind)
		}
		if msg.Raw != tc.line {
			t.Errorf("ParseLine(%q): raw text altered to %q", tc.line, msg.Raw)
		}
	}
}

func TestParseLineTotalDevices(t *testing.T) {
	t.Run("parses every non-negative count", func(t *testing.T) {
		for _, n := range []int{0, 1, 7, 12, 250, 4096} {
			msg := ParseLine(fmt.Sprintf("TOTAL:%d", n))
			if msg.Kind != KindTotalDevices {
				t.Fatalf("expected total_devices kind, got %s", msg.Kind)
			}
			if !msg.NumOK {
				t.Fatalf("TOTAL:%d: expected NumOK", n)
			}
			if msg.Num != n {
				t.Errorf("TOTAL:%d: expected Num %d, got %d", n, n, msg.Num)
			}
		}
	})

	t.Run("keeps kind but rejects malformed payloads", func(t *testing.T) {
		for _, payload := range []string{"abc", "-3", "12x", "1.5", ""} {
			msg := ParseLine("TOTAL:" + payload)
			if msg.Kind != KindTotalDevices {
				t.Errorf("TOTAL:%s: expected total_devices kind, got %s", payload, msg.Kind)
			}
			if msg.NumOK {
				t.Errorf("TOTAL:%s: expected NumOK false", payload)
			}
		}
	})
}

func TestParseLineEOTPrefix(t *testing.T) {
	// Some firmware builds append detail after the marker; any line leading
	// with EOT acknowledges completion.
	for _, line := range []string{"EOT", "EOT done", "EOT frame 12"} {
		if msg := ParseLine(line); msg.Kind != KindEOT {
			t.Errorf("ParseLine(%q): expected EOT kind, got %s", line, msg.Kind)
		}
	}
	for _, line := range []string{"xEOT", "EO", "eot"} {
		if msg := ParseLine(line); msg.Kind != KindText {
			t.Errorf("ParseLine(%q): expected text kind, got %s", line, msg.Kind)
		}
	}
}

func TestParseLinePayloads(t *testing.T) {
	msg := ParseLine("STATE:EXPOSING frame 3")
	if msg.Value != "EXPOSING frame 3" {
		t.Errorf("Expected raw trailing string, got %q", msg.Value)
	}

	msg = ParseLine("VER: 2.0.1 ")
	if msg.Value != "2.0.1" {
		t.Errorf("Expected trimmed version payload, got %q", msg.Value)
	}

	msg = ParseLine("INTERFRAME_DELAY:20")
	if !msg.NumOK || msg.Num != 20 {
		t.Errorf("Expected delay 20, got %d (ok=%v)", msg.Num, msg.NumOK)
	}
}

func TestMessageLogTag(t *testing.T) {
	cases := []struct {
		line string
		tag  models.LogTag
	}{
		{"ERR:bad angle", models.LogTagError},
		{"EMERGENCY: stop", models.LogTagError},
		{"EOT", models.LogTagSuccess},
		{"PROGRAM_ACK:001", models.LogTagSuccess},
		{"FRAME_SET:10,5", models.LogTagSuccess},
		{"TOTAL:4", models.LogTagIncoming},
		{"just text", models.LogTagIncoming},
	}
	for _, tc := range cases {
		if got := ParseLine(tc.line).LogTag(); got != tc.tag {
			t.Errorf("LogTag(%q): expected %s, got %s", tc.line, tc.tag, got)
		}
	}
}

func TestHasDebugMarker(t *testing.T) {
	if !HasDebugMarker("DEBUG: poll tick") {
		t.Error("Expected marker at line start to match")
	}
	if !HasDebugMarker("servo DEBUG: moved") {
		t.Error("Expected marker inside the line to match")
	}
	if HasDebugMarker("DEBUG without colon") {
		t.Error("Expected bare DEBUG word not to match")
	}
}

func TestParseNonNegInt(t *testing.T) {
	if n, ok := parseNonNegInt("0"); !ok || n != 0 {
		t.Errorf("Expected 0, got %d (ok=%v)", n, ok)
	}
	if n, ok := parseNonNegInt("1500"); !ok || n != 1500 {
		t.Errorf("Expected 1500, got %d (ok=%v)", n, ok)
	}
	if _, ok := parseNonNegInt("99999999999999999999"); ok {
		t.Error("Expected overflow to be rejected")
	}
	if _, ok := parseNonNegInt("+5"); ok {
		t.Error("Expected signed input to be rejected")
	}
}
