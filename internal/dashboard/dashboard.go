// Package dashboard implements the live run-status broadcaster: a small
// HTTP+WebSocket server that pushes classify/acquire/screen run events to
// connected browser clients, and serves a JSON snapshot endpoint for
// polling clients that don't want a persistent connection.
package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/dataset-commons/dc-pipeline/internal/logging"
)

// Event is one broadcast message: a pipeline stage's run summary, or a
// per-target progress tick.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Server holds connected WebSocket clients and the last event of each
// type, so a freshly connecting client's snapshot endpoint returns
// something even between broadcasts.
type Server struct {
	upgrader websocket.Upgrader
	clients  map[*websocket.Conn]chan Event
	mu       sync.RWMutex

	lastMu sync.RWMutex
	last   map[string]Event

	Logger *logging.Logger
}

// NewServer returns a Server ready to Mount onto a router.
func NewServer(logger *logging.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan Event),
		last:    make(map[string]Event),
		Logger:  logger,
	}
}

// Mount registers the dashboard's routes onto router.
func (s *Server) Mount(router *mux.Router) {
	router.HandleFunc("/ws", s.handleWebSocket)
	router.HandleFunc("/api/snapshot", s.handleSnapshot).Methods("GET")
	router.HandleFunc("/api/event", s.handlePostEvent).Methods("POST")
}

// handlePostEvent lets the separately-running classify/acquire/screen
// processes push an event into this dashboard over HTTP, since they
// don't share memory with it.
func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var ev Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Broadcast(ev)
	w.WriteHeader(http.StatusAccepted)
}

// Broadcast records ev as the latest event of its type and pushes it to
// every connected client, dropping it for any client whose buffer is
// already full rather than blocking the caller's pipeline goroutine.
func (s *Server) Broadcast(ev Event) {
	s.lastMu.Lock()
	s.last[ev.Type] = ev
	s.lastMu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.Logger != nil {
			s.Logger.Warn("websocket upgrade failed: " + err.Error())
		}
		return
	}
	defer conn.Close()

	ch := make(chan Event, 16)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		close(ch)
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s.lastMu.RLock()
	defer s.lastMu.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.last)
}
