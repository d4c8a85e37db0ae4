package config

import (
	"testing"
	"time"
)

func TestDurationHelpers(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("poll interval clamps to the responsiveness bound", func(t *testing.T) {
		cfg.Serial.PollIntervalMs = 500
		if got := cfg.PollInterval(); got != 100*time.Millisecond {
			t.Errorf("PollInterval = %v, want 100ms", got)
		}
		cfg.Serial.PollIntervalMs = 0
		if got := cfg.PollInterval(); got != 10*time.Millisecond {
			t.Errorf("PollInterval = %v, want 10ms default", got)
		}
	})

	t.Run("read and join timeouts default when unset", func(t *testing.T) {
		cfg.Serial.ReadTimeoutMs = 0
		if got := cfg.ReadTimeout(); got != 100*time.Millisecond {
			t.Errorf("ReadTimeout = %v, want 100ms default", got)
		}
		cfg.Serial.JoinTimeoutMs = 0
		if got := cfg.JoinTimeout(); got != time.Second {
			t.Errorf("JoinTimeout = %v, want 1s default", got)
		}
	})

	t.Run("probe delay keeps the disable sign", func(t *testing.T) {
		cfg.Serial.ProbeDelayMs = -1
		if got := cfg.ProbeDelay(); got >= 0 {
			t.Errorf("ProbeDelay = %v, want a negative value to disable the probe", got)
		}
		cfg.Serial.ProbeDelayMs = 0
		if got := cfg.ProbeDelay(); got != 0 {
			t.Errorf("ProbeDelay = %v, want 0 to pick up the session default", got)
		}
		cfg.Serial.ProbeDelayMs = 250
		if got := cfg.ProbeDelay(); got != 250*time.Millisecond {
			t.Errorf("ProbeDelay = %v, want 250ms", got)
		}
	})
}
