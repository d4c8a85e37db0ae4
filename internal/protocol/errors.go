package protocol

import "fmt"

// ValidationError reports a command field that failed its range or format
// check. Nothing reaches the transport when validation fails.
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Constraint)
}

// ParseError reports command text that matches no known grammar, e.g. a bad
// sequence step.
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse command %q: %s", e.Text, e.Reason)
}
