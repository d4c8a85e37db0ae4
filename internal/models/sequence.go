package models

// Sequence defines a replayable command pattern for the controller chain.
// Built-in patterns mirror the bench demos; extra ones load from YAML files.
type Sequence struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Revision    Revision       `json:"revision,omitempty" yaml:"revision,omitempty"` // empty = any
	Cycles      int            `json:"cycles" yaml:"cycles"`
	Steps       []SequenceStep `json:"steps" yaml:"steps"`
}

// SequenceStep is one command followed by a pause before the next step.
type SequenceStep struct {
	Command string `json:"command" yaml:"command"`  // wire text, e.g. "000,servo,60"
	DelayMs int    `json:"delayMs" yaml:"delay_ms"` // pause after sending
}

// SequenceRun reports the live status of the sequence runner.
type SequenceRun struct {
	Name      string `json:"name"`
	Cycle     int    `json:"cycle"`
	Step      int    `json:"step"`
	StartedAt int64  `json:"startedAt"` // Unix ms
}
