// Package bridge carries messages between each window's content process and
// the coordinating process. Each content process holds one websocket
// connection keyed by its window id; everything on top of it is asynchronous
// message passing.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/rs/zerolog"
)

// InboundFunc receives every message a content process sends. It is invoked
// on a connection goroutine; the coordinator posts the work to its run loop.
type InboundFunc func(windowID int, msg Message)

// EnvFunc produces the environment descriptor for one window.
type EnvFunc func(windowID int) Env

// Server is the coordinator-side bridge endpoint.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	httpSrv  *http.Server

	mu       sync.RWMutex
	sessions map[int]*session

	inbound InboundFunc
	envFn   EnvFunc
	log     *zerolog.Logger
}

// NewServer creates a bridge server. The inbound handler may be set later
// with SetInbound, but must be set before content processes connect.
func NewServer(envFn EnvFunc) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		sessions: make(map[int]*session),
		envFn:    envFn,
		log:      logger.WithComponent("bridge"),
		upgrader: websocket.Upgrader{
			// Content processes connect from their own origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// SetInbound installs the inbound message handler.
func (s *Server) SetInbound(fn InboundFunc) {
	s.inbound = fn
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/bridge/{id:[0-9]+}", s.handleBridge)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/env/{id:[0-9]+}", s.handleEnv).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler exposes the HTTP handler, used by tests to run the server under
// httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving on localhost. It returns once the listener is up;
// serving continues on a background goroutine.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	s.httpSrv = &http.Server{Addr: addr, Handler: s.router}

	s.log.Info().Str("addr", addr).Msg("Bridge server listening")
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Bridge server error")
		}
	}()
	return nil
}

// Shutdown stops the HTTP server and closes all sessions.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Bridge shutdown error")
		}
	}
}

// DropWindow closes the session of a destroyed window, if connected.
func (s *Server) DropWindow(id int) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok {
		sess.close()
	}
}

// Send delivers a notify-style message to one window's content process. An
// unconnected window is logged and dropped, never an error to the caller.
func (s *Server) Send(id int, channel string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("channel", channel).Msg("Failed to marshal payload")
		return
	}
	s.sendMessage(id, Message{Channel: channel, Payload: raw})
}

// Reply answers an invoke request from window id.
func (s *Server) Reply(id int, requestID uint64, result any, errMsg string) {
	msg := Message{ReplyTo: requestID, Error: errMsg}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			s.log.Error().Err(err).Uint64("request", requestID).Msg("Failed to marshal result")
			msg.Error = "internal marshal error"
		} else {
			msg.Payload = raw
		}
	}
	s.sendMessage(id, msg)
}

// Broadcast sends a message to every connected content process.
func (s *Server) Broadcast(channel string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("channel", channel).Msg("Failed to marshal payload")
		return
	}

	s.mu.RLock()
	ids := make([]int, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.sendMessage(id, Message{Channel: channel, Payload: raw})
	}
}

func (s *Server) sendMessage(id int, msg Message) {
	s.mu.RLock()
	sess := s.sessions[id]
	s.mu.RUnlock()

	if sess == nil {
		s.log.Debug().Int("window", id).Str("channel", msg.Channel).Msg("No content session, message dropped")
		return
	}
	sess.send(msg)
}

// HTTP handlers

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "invalid window id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	sess := newSession(id, conn, s)

	s.mu.Lock()
	if old := s.sessions[id]; old != nil {
		old.close()
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Debug().Int("window", id).Msg("Content process connected")
	go sess.writePump()
	go sess.readPump()
}

func (s *Server) handleEnv(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "invalid window id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.envFn(id))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	if s.sessions[sess.windowID] == sess {
		delete(s.sessions, sess.windowID)
	}
	s.mu.Unlock()
}
