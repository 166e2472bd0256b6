package bridge

import (
	"sync"

	"github.com/gorilla/websocket"
)

// session is one content process connection. Writes go through a buffered
// channel so a slow content process never blocks coordinator code.
type session struct {
	windowID int
	conn     *websocket.Conn
	server   *Server

	outbound chan Message

	closeOnce sync.Once
	closed    chan struct{}
}

func newSession(windowID int, conn *websocket.Conn, server *Server) *session {
	return &session{
		windowID: windowID,
		conn:     conn,
		server:   server,
		outbound: make(chan Message, 64),
		closed:   make(chan struct{}),
	}
}

func (s *session) send(msg Message) {
	select {
	case s.outbound <- msg:
	case <-s.closed:
	default:
		// Outbound queue full: the content process stopped reading.
		s.server.log.Warn().Int("window", s.windowID).Msg("Content session backlogged, message dropped")
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close()
	})
}

func (s *session) readPump() {
	defer func() {
		s.close()
		s.server.dropSession(s)
		s.server.log.Debug().Int("window", s.windowID).Msg("Content process disconnected")
	}()

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		if s.server.inbound != nil {
			s.server.inbound(s.windowID, msg)
		}
	}
}

func (s *session) writePump() {
	for {
		select {
		case msg := <-s.outbound:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.close()
				return
			}
		case <-s.closed:
			return
		}
	}
}
