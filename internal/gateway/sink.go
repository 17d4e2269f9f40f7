package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// connSink adapts one websocket connection to the broadcast.Sink
// interface. Gorilla's Conn forbids concurrent writers, so every Send
// goes through writeMu even though the Hub already serializes broadcasts
// per auction — a direct INIT send (bypassing the Hub) can otherwise
// race with a broadcast fan-out write to the same connection.
type connSink struct {
	id   string
	conn *websocket.Conn

	writeMu sync.Mutex
}

func newConnSink(id string, conn *websocket.Conn) *connSink {
	return &connSink{id: id, conn: conn}
}

func (s *connSink) ID() string { return s.id }

func (s *connSink) Send(frame []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

func (s *connSink) closeWithCode(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadlineNow())
	_ = s.conn.Close()
}
