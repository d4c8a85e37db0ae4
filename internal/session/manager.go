// Package session manages the live serial connection to the controller
// chain: the single open session, the reader and dispatch goroutines behind
// it, command routing, and fan-out of state and lifecycle changes.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solar-control/backend/internal/logbuf"
	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
	"github.com/solar-control/backend/internal/serialport"
)

const defaultBaud = 115200

// Opener opens the serial port. Tests substitute an in-memory port.
type Opener func(serialport.Config) (serialport.Conn, error)

// Options tune manager timing. Zero values select the defaults; a negative
// ProbeDelay disables the automatic status request after connect.
type Options struct {
	PollInterval time.Duration // reader idle poll, default 10ms
	ReadTimeout  time.Duration // serial read timeout, default 100ms
	JoinTimeout  time.Duration // reader join bound on close, default 1s
	ProbeDelay   time.Duration // pause before the status probe, default 1s
	Opener       Opener        // default serialport.Open
}

// Manager enforces the single-session rule: at most one live connection, at
// most one connect attempt in flight. The traffic log spans the manager's
// whole lifetime, so reconnecting keeps the history.
type Manager struct {
	logger *zap.Logger
	log    *logbuf.Buffer
	opts   Options

	mu      sync.Mutex
	current *Session
	pending bool

	subMu       sync.Mutex
	nextSub     int
	stateSubs   map[int]chan models.DeviceState
	sessionSubs map[int]chan models.ConnectionSession
}

// NewManager creates a session manager writing traffic to log.
func NewManager(log *logbuf.Buffer, logger *zap.Logger, opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Millisecond
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 100 * time.Millisecond
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = time.Second
	}
	if opts.ProbeDelay == 0 {
		opts.ProbeDelay = time.Second
	}
	if opts.Opener == nil {
		opts.Opener = serialport.Open
	}
	return &Manager{
		logger:      logger,
		log:         log,
		opts:        opts,
		stateSubs:   make(map[int]chan models.DeviceState),
		sessionSubs: make(map[int]chan models.ConnectionSession),
	}
}

// Connect opens the port and starts a session. Rejected with
// ErrAlreadyConnected or ErrConnectPending when a session or attempt exists;
// the port open itself happens outside the manager lock because it can take
// a second on some adapters.
func (m *Manager) Connect(port string, baud int, rev models.Revision) (models.ConnectionSession, error) {
	if port == "" {
		return models.ConnectionSession{}, &protocol.ValidationError{Field: "port", Constraint: "must not be empty"}
	}
	if baud <= 0 {
		baud = defaultBaud
	}
	if rev == "" {
		rev = models.RevisionV2
	}
	if !rev.Valid() {
		return models.ConnectionSession{}, &protocol.ValidationError{Field: "revision", Constraint: `must be "v1" or "v2"`}
	}

	m.mu.Lock()
	if m.current != nil {
		m.mu.Unlock()
		return models.ConnectionSession{}, ErrAlreadyConnected
	}
	if m.pending {
		m.mu.Unlock()
		return models.ConnectionSession{}, ErrConnectPending
	}
	m.pending = true
	m.mu.Unlock()

	conn, err := m.opts.Opener(serialport.Config{
		Port:        port,
		Baud:        baud,
		ReadTimeout: m.opts.ReadTimeout,
	})
	if err != nil {
		m.mu.Lock()
		m.pending = false
		m.mu.Unlock()
		m.log.Append(fmt.Sprintf("Failed to connect to %s: %v", port, err), models.LogTagError)
		return models.ConnectionSession{}, err
	}

	info := *models.NewConnectionSession(uuid.New().String(), port, baud, rev)
	info.Status = models.ConnectionStatusConnected
	info.OpenedAt = time.Now().UnixMilli()

	s := newSession(info, conn, m.log, m.logger, m.opts.PollInterval, m.opts.JoinTimeout)
	s.onState = m.publishState
	s.onSession = m.publishSession

	m.mu.Lock()
	m.current = s
	m.pending = false
	m.mu.Unlock()

	s.start()

	m.log.Append(fmt.Sprintf("Connected to %s at %d baud (%s)", port, baud, rev), models.LogTagInfo)
	m.logger.Info("serial session opened",
		zap.String("id", info.ID),
		zap.String("port", port),
		zap.Int("baud", baud),
		zap.String("revision", string(rev)))

	// Let the firmware finish booting, then ask it to introduce itself.
	if m.opts.ProbeDelay >= 0 {
		go m.probe(s)
	}

	m.publishSession(info)
	return info, nil
}

func (m *Manager) probe(s *Session) {
	select {
	case <-s.stop:
		return
	case <-time.After(m.opts.ProbeDelay):
	}
	if err := s.Send(protocol.Status{}); err != nil {
		m.logger.Debug("status probe failed", zap.Error(err))
	}
}

// Disconnect closes the current session. Idempotent: no session is not an
// error.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return nil
	}

	err := s.Close()
	m.log.Append("Disconnected from "+s.Info().Port, models.LogTagInfo)
	m.logger.Info("serial session closed", zap.String("id", s.Info().ID))
	return err
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Connected reports whether a session exists.
func (m *Manager) Connected() bool {
	return m.Current() != nil
}

// Info returns the current session descriptor.
func (m *Manager) Info() (models.ConnectionSession, error) {
	s := m.Current()
	if s == nil {
		return models.ConnectionSession{}, ErrNotConnected
	}
	return s.Info(), nil
}

// State returns the current device state snapshot.
func (m *Manager) State() (models.DeviceState, error) {
	s := m.Current()
	if s == nil {
		return models.DeviceState{}, ErrNotConnected
	}
	return s.State(), nil
}

// Revision returns the current session's firmware revision.
func (m *Manager) Revision() (models.Revision, error) {
	s := m.Current()
	if s == nil {
		return "", ErrNotConnected
	}
	return s.Revision(), nil
}

// Send routes a command to the current session.
func (m *Manager) Send(cmd protocol.Command) error {
	s := m.Current()
	if s == nil {
		return ErrNotConnected
	}
	return s.Send(cmd)
}

// Log returns the traffic buffer shared across sessions.
func (m *Manager) Log() *logbuf.Buffer {
	return m.log
}

// SubscribeState registers a channel receiving device state snapshots after
// each change. Slow subscribers drop updates rather than blocking dispatch.
func (m *Manager) SubscribeState(buffer int) (<-chan models.DeviceState, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.DeviceState, buffer)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.stateSubs[id] = ch
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		delete(m.stateSubs, id)
		m.subMu.Unlock()
	}
	return ch, cancel
}

// SubscribeSession registers a channel receiving session lifecycle events:
// connect, failure, disconnect.
func (m *Manager) SubscribeSession(buffer int) (<-chan models.ConnectionSession, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan models.ConnectionSession, buffer)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.sessionSubs[id] = ch
	m.subMu.Unlock()

	cancel := func() {
		m.subMu.Lock()
		delete(m.sessionSubs, id)
		m.subMu.Unlock()
	}
	return ch, cancel
}

func (m *Manager) publishState(state models.DeviceState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.stateSubs {
		select {
		case ch <- state:
		default:
		}
	}
}

func (m *Manager) publishSession(info models.ConnectionSession) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.sessionSubs {
		select {
		case ch <- info:
		default:
		}
	}
}
