package sequence

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/solar-control/backend/internal/logbuf"
	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
)

var (
	// ErrSequenceRunning is returned by Start while a run is in progress.
	ErrSequenceRunning = errors.New("a sequence is already running")

	// ErrUnknownSequence is returned by Start for a name not in the library.
	ErrUnknownSequence = errors.New("unknown sequence")
)

// Sender is the slice of the session manager the runner needs.
type Sender interface {
	Send(cmd protocol.Command) error
	Revision() (models.Revision, error)
}

// Runner plays one sequence at a time against the live session. Every step
// is validated against the session revision before the first send, so a run
// either starts clean or not at all. A stop request takes effect before the
// next send: pending step delays are cut short, the in-flight write is not.
type Runner struct {
	sender Sender
	lib    *Library
	log    *logbuf.Buffer
	logger *zap.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	run     models.SequenceRun
}

// NewRunner creates a runner playing sequences from lib through sender.
func NewRunner(sender Sender, lib *Library, log *logbuf.Buffer, logger *zap.Logger) *Runner {
	return &Runner{
		sender: sender,
		lib:    lib,
		log:    log,
		logger: logger,
	}
}

// Start begins playing the named sequence. Fails without sending anything
// when no session is open, when a run is already in progress, or when any
// step does not validate against the session's firmware revision.
func (r *Runner) Start(name string) (models.SequenceRun, error) {
	seq, ok := r.lib.Get(name)
	if !ok {
		return models.SequenceRun{}, fmt.Errorf("%w: %s", ErrUnknownSequence, name)
	}

	rev, err := r.sender.Revision()
	if err != nil {
		return models.SequenceRun{}, err
	}
	if seq.Revision != "" && seq.Revision != rev {
		return models.SequenceRun{}, &protocol.ValidationError{
			Field:      "revision",
			Constraint: fmt.Sprintf("sequence targets %s firmware, session is %s", seq.Revision, rev),
		}
	}

	cmds := make([]protocol.Command, len(seq.Steps))
	for i, step := range seq.Steps {
		cmd, err := protocol.ParseCommand(step.Command)
		if err != nil {
			return models.SequenceRun{}, fmt.Errorf("step %d: %w", i+1, err)
		}
		if err := cmd.Validate(rev); err != nil {
			return models.SequenceRun{}, fmt.Errorf("step %d: %w", i+1, err)
		}
		cmds[i] = cmd
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return models.SequenceRun{}, ErrSequenceRunning
	}
	// Each run owns its channel pair. The play goroutine never reads the
	// struct fields back, so a restart swapping them in cannot make a dying
	// run close the new run's channel.
	stop := make(chan struct{})
	done := make(chan struct{})
	r.running = true
	r.stop = stop
	r.done = done
	r.run = models.SequenceRun{Name: seq.Name, Cycle: 1, StartedAt: time.Now().UnixMilli()}
	run := r.run
	r.mu.Unlock()

	r.logger.Info("sequence started",
		zap.String("sequence", seq.Name),
		zap.Int("cycles", seq.Cycles),
		zap.Int("steps", len(seq.Steps)))

	go r.play(seq, cmds, stop, done)
	return run, nil
}

// Stop requests a halt and waits for the run goroutine to exit. Calling it
// while idle is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	done := r.done
	r.mu.Unlock()

	<-done
}

// Status returns the live run and whether one is in progress.
func (r *Runner) Status() (models.SequenceRun, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run, r.running
}

func (r *Runner) play(seq models.Sequence, cmds []protocol.Command, stop, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		close(done)
	}()

	r.log.Append(fmt.Sprintf("Sequence %s started (%d cycles)", seq.Name, seq.Cycles), models.LogTagInfo)

	for cycle := 1; cycle <= seq.Cycles; cycle++ {
		for i, cmd := range cmds {
			select {
			case <-stop:
				r.log.Append("Sequence "+seq.Name+" stopped", models.LogTagInfo)
				return
			default:
			}

			r.mu.Lock()
			r.run.Cycle = cycle
			r.run.Step = i + 1
			r.mu.Unlock()

			if err := r.sender.Send(cmd); err != nil {
				r.log.Append(fmt.Sprintf("Sequence %s halted: %v", seq.Name, err), models.LogTagError)
				r.logger.Warn("sequence halted",
					zap.String("sequence", seq.Name),
					zap.Int("cycle", cycle),
					zap.Int("step", i+1),
					zap.Error(err))
				return
			}

			if delay := time.Duration(seq.Steps[i].DelayMs) * time.Millisecond; delay > 0 {
				select {
				case <-stop:
					r.log.Append("Sequence "+seq.Name+" stopped", models.LogTagInfo)
					return
				case <-time.After(delay):
				}
			}
		}
	}

	r.log.Append("Sequence "+seq.Name+" finished", models.LogTagInfo)
}
