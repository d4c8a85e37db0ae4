// Package sequence provides replayable command patterns: the builtin bench
// demos plus user-defined YAML sequences, and the runner that plays them over
// the live session.
package sequence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
)

// builtins mirror the bench demo buttons: broadcast to the whole chain, two
// cycles each. The current-flash patterns drive the LED rail, so they only
// run against v1 firmware.
func builtins() []models.Sequence {
	return []models.Sequence{
		{
			Name:        "dance",
			Description: "Servo sweep followed by a current flash",
			Revision:    models.RevisionV1,
			Cycles:      2,
			Steps: []models.SequenceStep{
				{Command: "000,servo,60", DelayMs: 1000},
				{Command: "000,servo,120", DelayMs: 1000},
				{Command: "000,servo,90", DelayMs: 1000},
				{Command: "000,current,50", DelayMs: 3000},
				{Command: "000,current,0", DelayMs: 1000},
			},
		},
		{
			Name:        "wave",
			Description: "Smooth servo wave across the chain",
			Cycles:      2,
			Steps: []models.SequenceStep{
				{Command: "000,servo,60", DelayMs: 500},
				{Command: "000,servo,75", DelayMs: 500},
				{Command: "000,servo,90", DelayMs: 500},
				{Command: "000,servo,105", DelayMs: 500},
				{Command: "000,servo,120", DelayMs: 500},
				{Command: "000,servo,105", DelayMs: 500},
				{Command: "000,servo,90", DelayMs: 500},
				{Command: "000,servo,75", DelayMs: 500},
			},
		},
		{
			Name:        "rainbow",
			Description: "Current ramp up and back down",
			Revision:    models.RevisionV1,
			Cycles:      2,
			Steps: []models.SequenceStep{
				{Command: "000,current,0", DelayMs: 5000},
				{Command: "000,current,250", DelayMs: 5000},
				{Command: "000,current,500", DelayMs: 5000},
				{Command: "000,current,650", DelayMs: 5000},
				{Command: "000,current,500", DelayMs: 5000},
				{Command: "000,current,250", DelayMs: 5000},
				{Command: "000,current,0", DelayMs: 5000},
			},
		},
	}
}

// Library is the catalog of available sequences, keyed by name. It starts
// with the builtins; LoadDir merges user files on top.
type Library struct {
	mu   sync.RWMutex
	seqs map[string]models.Sequence
}

// NewLibrary creates a library preloaded with the builtin demos.
func NewLibrary() *Library {
	l := &Library{seqs: make(map[string]models.Sequence)}
	for _, s := range builtins() {
		l.seqs[s.Name] = s
	}
	return l
}

// Add inserts or replaces a sequence by name.
func (l *Library) Add(seq models.Sequence) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seqs[seq.Name] = seq
}

// Get looks up a sequence by name.
func (l *Library) Get(name string) (models.Sequence, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	seq, ok := l.seqs[name]
	return seq, ok
}

// List returns every sequence sorted by name.
func (l *Library) List() []models.Sequence {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Sequence, 0, len(l.seqs))
	for _, s := range l.seqs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadDir merges every *.yaml/*.yml sequence file from dir into the library.
// A missing directory is fine; a file that fails to parse or validate stops
// the load so a broken definition is not silently skipped.
func (l *Library) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read sequence dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ext := filepath.Ext(e.Name()); ext != ".yaml" && ext != ".yml" {
			continue
		}
		seq, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		l.Add(seq)
	}
	return nil
}

// LoadFile parses and validates one YAML sequence definition. A missing name
// defaults to the file name; missing cycles default to 1.
func LoadFile(path string) (models.Sequence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Sequence{}, fmt.Errorf("read sequence file: %w", err)
	}

	var seq models.Sequence
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return models.Sequence{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	if seq.Name == "" {
		base := filepath.Base(path)
		seq.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if seq.Cycles <= 0 {
		seq.Cycles = 1
	}

	if err := Validate(seq); err != nil {
		return models.Sequence{}, fmt.Errorf("sequence %s: %w", seq.Name, err)
	}
	return seq, nil
}

// Validate checks that a sequence is structurally sound: at least one step,
// every step a parseable wire command with a non-negative delay. Revision
// compatibility against the live session is checked at start time.
func Validate(seq models.Sequence) error {
	if len(seq.Steps) == 0 {
		return &protocol.ValidationError{Field: "steps", Constraint: "must not be empty"}
	}
	if seq.Revision != "" && !seq.Revision.Valid() {
		return &protocol.ValidationError{Field: "revision", Constraint: `must be "v1" or "v2"`}
	}
	for i, step := range seq.Steps {
		if _, err := protocol.ParseCommand(step.Command); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.DelayMs < 0 {
			return &protocol.ValidationError{
				Field:      fmt.Sprintf("steps[%d].delay_ms", i+1),
				Constraint: "must be >= 0",
			}
		}
	}
	return nil
}
