package session

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/solar-control/backend/internal/logbuf"
	"github.com/solar-control/backend/internal/models"
	"github.com/solar-control/backend/internal/protocol"
	"github.com/solar-control/backend/internal/serialport"
)

// lineQueueDepth bounds the reader-to-dispatcher channel. The chain emits a
// few lines per command, so the queue only fills if the dispatcher stalls.
const lineQueueDepth = 256

// maxLineBytes caps the reassembly buffer. A stream that never terminates a
// line (binary noise on the port) is dropped up to its next newline instead
// of growing the buffer without bound.
const maxLineBytes = 1024 * 1024 // 1MB

// Session owns one open serial connection: the reader goroutine that
// reassembles lines from raw chunks, the dispatch goroutine that classifies
// them and maintains the device state, and the write path for commands.
// Sessions are created by the Manager and live until Close or a read failure.
type Session struct {
	conn   serialport.Conn
	log    *logbuf.Buffer
	logger *zap.Logger

	pollInterval time.Duration
	joinTimeout  time.Duration

	mu    sync.RWMutex
	info  models.ConnectionSession
	state models.DeviceState

	writeMu sync.Mutex

	lines        chan string
	stop         chan struct{}
	stopOnce     sync.Once
	readerDone   chan struct{}
	dispatchDone chan struct{}

	// set by the Manager before start; fired outside the state lock
	onState   func(models.DeviceState)
	onSession func(models.ConnectionSession)
}

func newSession(info models.ConnectionSession, conn serialport.Conn, log *logbuf.Buffer, logger *zap.Logger, poll, join time.Duration) *Session {
	return &Session{
		conn:         conn,
		log:          log,
		logger:       logger,
		pollInterval: poll,
		joinTimeout:  join,
		info:         info,
		state:        models.NewDeviceState(),
		lines:        make(chan string, lineQueueDepth),
		stop:         make(chan struct{}),
		readerDone:   make(chan struct{}),
		dispatchDone: make(chan struct{}),
	}
}

func (s *Session) start() {
	go s.readLoop()
	go s.dispatchLoop()
}

// Info returns a snapshot of the session descriptor.
func (s *Session) Info() models.ConnectionSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// State returns a snapshot of the device state.
func (s *Session) State() models.DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Revision returns the firmware revision this session encodes for.
func (s *Session) Revision() models.Revision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Revision
}

// Send validates cmd against the session revision, writes its wire form, and
// logs the outgoing line. Validation failures and write failures leave the
// session running; a failed write is recorded as an error entry.
func (s *Session) Send(cmd protocol.Command) error {
	s.mu.RLock()
	status := s.info.Status
	rev := s.info.Revision
	s.mu.RUnlock()

	if status == models.ConnectionStatusDisconnected || status == models.ConnectionStatusFailed {
		return ErrSessionClosed
	}
	if err := cmd.Validate(rev); err != nil {
		return err
	}

	line := cmd.Encode()
	s.writeMu.Lock()
	err := serialport.WriteLine(s.conn, line)
	s.writeMu.Unlock()
	if err != nil {
		s.log.Append("Write failed: "+line, models.LogTagError)
		s.logger.Warn("serial write failed", zap.String("command", line), zap.Error(err))
		return err
	}

	s.log.Append(line, models.LogTagOutgoing)
	return nil
}

// Close stops both goroutines, closes the port, and resets the device state.
// The port close unblocks a read in progress; if the reader still does not
// exit within the join timeout it is abandoned. An abandoned reader only ever
// selects against this session's stop channel, so it can never deliver into
// a later session.
func (s *Session) Close() error {
	s.shutdown()
	joined := s.join(s.joinTimeout)

	s.mu.Lock()
	s.info.Status = models.ConnectionStatusDisconnected
	s.info.ClosedAt = time.Now().UnixMilli()
	s.state.Reset()
	info := s.info
	state := s.state
	s.mu.Unlock()

	if !joined {
		s.logger.Warn("reader did not exit before timeout, abandoning",
			zap.String("id", info.ID),
			zap.String("port", info.Port))
	}

	if s.onSession != nil {
		s.onSession(info)
	}
	if s.onState != nil {
		s.onState(state)
	}
	return nil
}

// shutdown signals stop and closes the port exactly once.
func (s *Session) shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug("port close", zap.Error(err))
		}
	})
}

// join waits for both goroutines up to timeout.
func (s *Session) join(timeout time.Duration) bool {
	t := time.NewTimer(timeout)
	defer t.Stop()
	for _, done := range []chan struct{}{s.readerDone, s.dispatchDone} {
		select {
		case <-done:
		case <-t.C:
			return false
		}
	}
	return true
}

// readLoop accumulates raw chunks, splits them on newline, and hands complete
// lines to the dispatcher in arrival order. Partial trailing data stays
// buffered until its terminator arrives, up to maxLineBytes: a line growing
// past the cap is dropped through to its terminator and logged once. A read
// error outside an orderly close marks the session failed.
func (s *Session) readLoop() {
	defer close(s.readerDone)

	buf := make([]byte, 512)
	var pending []byte
	discarding := false

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if discarding {
				i := bytes.IndexByte(chunk, '\n')
				if i < 0 {
					continue
				}
				chunk = chunk[i+1:]
				discarding = false
			}
			pending = append(pending, chunk...)
			for {
				i := bytes.IndexByte(pending, '\n')
				if i < 0 {
					break
				}
				line := decodeLine(pending[:i])
				pending = pending[i+1:]
				if line == "" {
					continue
				}
				select {
				case s.lines <- line:
				case <-s.stop:
					return
				}
			}
			if len(pending) > maxLineBytes {
				s.log.Append("Oversized line dropped", models.LogTagError)
				s.logger.Warn("dropping unterminated line", zap.Int("buffered", len(pending)))
				pending = nil
				discarding = true
			}
			continue
		}
		if err != nil {
			select {
			case <-s.stop:
				// orderly close pulled the port out from under us
			default:
				s.fail(err)
			}
			return
		}

		// timed-out read, idle poll
		select {
		case <-s.stop:
			return
		case <-time.After(s.pollInterval):
		}
	}
}

// decodeLine turns one raw line into text: invalid UTF-8 bytes are dropped
// rather than failing the line, and surrounding whitespace (including the CR
// of CRLF terminators) is trimmed.
func decodeLine(raw []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(raw), ""))
}

// fail records a mid-session I/O failure: status goes to failed, one error
// entry lands in the log, and the session shuts down. No automatic reconnect.
func (s *Session) fail(err error) {
	s.mu.Lock()
	s.info.Status = models.ConnectionStatusFailed
	s.info.LastErr = err.Error()
	s.info.ClosedAt = time.Now().UnixMilli()
	info := s.info
	s.mu.Unlock()

	s.log.Append("Serial error: "+err.Error(), models.LogTagError)
	s.logger.Warn("serial read failed",
		zap.String("id", info.ID),
		zap.String("port", info.Port),
		zap.Error(err))

	s.shutdown()

	if s.onSession != nil {
		s.onSession(info)
	}
}

// dispatchLoop is the sole device state writer. Each line is classified,
// appended to the log with its tag, and applied to the state snapshot.
func (s *Session) dispatchLoop() {
	defer close(s.dispatchDone)
	for {
		select {
		case <-s.stop:
			return
		case line := <-s.lines:
			s.handleLine(line)
		}
	}
}

func (s *Session) handleLine(line string) {
	msg := protocol.ParseLine(line)
	s.log.Append(line, msg.LogTag())

	s.mu.Lock()
	changed := applyMessage(&s.state, msg)
	state := s.state
	s.mu.Unlock()

	if changed && s.onState != nil {
		s.onState(state)
	}
}

// applyMessage folds one classified message into the state and reports
// whether anything changed. Tagged lines with garbled numeric payloads keep
// their classification but leave the state untouched.
func applyMessage(st *models.DeviceState, msg protocol.Message) bool {
	switch msg.Kind {
	case protocol.KindVersion:
		if msg.Value != "" && st.FirmwareVersion != msg.Value {
			st.FirmwareVersion = msg.Value
			return true
		}
	case protocol.KindTotalDevices:
		if msg.NumOK && st.TotalDevices != msg.Num {
			st.TotalDevices = msg.Num
			return true
		}
	case protocol.KindSystemState:
		if msg.Value != "" && st.SystemState != msg.Value {
			st.SystemState = msg.Value
			return true
		}
	case protocol.KindINA226Status:
		if msg.Value != "" && st.INA226Status != msg.Value {
			st.INA226Status = msg.Value
			return true
		}
	case protocol.KindGroupTotal:
		if msg.NumOK && st.GroupTotal != msg.Num {
			st.GroupTotal = msg.Num
			return true
		}
	case protocol.KindFrameCount:
		if msg.NumOK && st.FrameCount != msg.Num {
			st.FrameCount = msg.Num
			return true
		}
	case protocol.KindInterframeDelay:
		if msg.NumOK && st.InterframeDelay != msg.Num {
			st.InterframeDelay = msg.Num
			return true
		}
	case protocol.KindEOT:
		st.LastCompleted = &models.Completion{Kind: models.CompletionEOT, At: time.Now().UnixMilli()}
		return true
	case protocol.KindProgramAck:
		st.LastCompleted = &models.Completion{Kind: models.CompletionProgram, At: time.Now().UnixMilli()}
		return true
	case protocol.KindFrameAck:
		st.LastCompleted = &models.Completion{Kind: models.CompletionFrame, At: time.Now().UnixMilli()}
		return true
	}
	return false
}
