// websocket.go - Live panel stream
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/solar-control/backend/internal/logbuf"
)

// Frame types pushed to panel clients
const (
	MsgTypeLog     = "log"
	MsgTypeState   = "state"
	MsgTypeSession = "session"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second

	// Per-client queue depth. A panel that stalls longer than this misses
	// frames rather than backpressuring the serial session.
	wsLogBacklog   = 256
	wsStateBacklog = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Local desktop panel; origin checks add nothing here
		return true
	},
}

// WSMessage is the frame envelope pushed to panel clients
type WSMessage struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// StreamHandler pushes log entries, device state changes, and session
// transitions to panel clients, one WebSocket per client.
type StreamHandler struct {
	log    *logbuf.Buffer
	stream StateSource
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(log *logbuf.Buffer, stream StateSource) *StreamHandler {
	return &StreamHandler{
		log:    log,
		stream: stream,
	}
}

// HandleStream upgrades the connection and pumps frames until the client
// goes away. Each client gets its own subscriptions, so one slow panel tab
// cannot starve another.
func (h *StreamHandler) HandleStream(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	entries, cancelLog := h.log.Subscribe(wsLogBacklog)
	defer cancelLog()
	states, cancelStates := h.stream.SubscribeState(wsStateBacklog)
	defer cancelStates()
	sessions, cancelSessions := h.stream.SubscribeSession(wsStateBacklog)
	defer cancelSessions()

	// The client sends nothing we act on, but reading drives close and pong
	// handling and tells us when the peer is gone.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			if !h.log.IsVisible(e) {
				continue
			}
			if err := sendFrame(ws, MsgTypeLog, e); err != nil {
				return nil
			}
		case s, ok := <-states:
			if !ok {
				return nil
			}
			if err := sendFrame(ws, MsgTypeState, s); err != nil {
				return nil
			}
		case s, ok := <-sessions:
			if !ok {
				return nil
			}
			if err := sendFrame(ws, MsgTypeSession, s); err != nil {
				return nil
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-done:
			return nil
		}
	}
}

// sendFrame marshals one typed frame and writes it with a deadline
func sendFrame(ws *websocket.Conn, frameType string, payload interface{}) error {
	msg := WSMessage{
		Type:      frameType,
		Payload:   mustJSON(payload),
		Timestamp: time.Now().UnixMilli(),
	}
	ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return ws.WriteJSON(msg)
}

// mustJSON marshals payloads that cannot fail; domain models marshal cleanly
func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
