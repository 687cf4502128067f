// Package meterfeed serves live loudness levels of the audio routing graph
// over HTTP. GET /meters returns the latest level of every connection and
// GET /meters/ws streams loudness events over a websocket.
package meterfeed

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/thesyncim/studio"
)

// LoudnessSource is the part of the router the feed reads from.
type LoudnessSource interface {
	Levels() map[string]studio.LoudnessEvent
	Connections() []studio.Connection
	Subscribe(subscriberID string, bufferSize int) <-chan studio.LoudnessEvent
	Unsubscribe(subscriberID string)
}

// Config configures a Server.
type Config struct {
	Buffer       int           // Per-client event buffer (default: 32)
	WriteTimeout time.Duration // Websocket write deadline (default: 5s)
	PingInterval time.Duration // Websocket keepalive (default: 30s)
	Logger       *log.Logger
}

// Server exposes a LoudnessSource over HTTP.
type Server struct {
	source   LoudnessSource
	config   Config
	router   chi.Router
	upgrader websocket.Upgrader
	log      *log.Logger
}

// Snapshot is the body of GET /meters.
type Snapshot struct {
	Levels []studio.LoudnessEvent `json:"levels"`
	Time   time.Time              `json:"time"`
}

// New creates a server reading from source.
func New(source LoudnessSource, config Config) *Server {
	if config.Buffer <= 0 {
		config.Buffer = 32
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	if config.PingInterval <= 0 {
		config.PingInterval = 30 * time.Second
	}
	l := config.Logger
	if l == nil {
		l = studio.Logger()
	}

	s := &Server{
		source: source,
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: l.WithPrefix("meterfeed"),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Route("/meters", func(r chi.Router) {
		r.Get("/", s.handleLevels)
		r.Get("/ws", s.handleStream)
		r.Get("/{connectionID}", s.handleLevel)
	})
	r.Get("/connections", s.handleConnections)
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) snapshot() Snapshot {
	levels := s.source.Levels()
	out := Snapshot{Levels: make([]studio.LoudnessEvent, 0, len(levels)), Time: time.Now()}
	for _, ev := range levels {
		out.Levels = append(out.Levels, ev)
	}
	sort.Slice(out.Levels, func(i, j int) bool {
		return out.Levels[i].ConnectionID < out.Levels[j].ConnectionID
	})
	return out
}

func (s *Server) handleLevels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "connectionID")
	ev, ok := s.source.Levels()[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no level for connection " + id})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	conns := s.source.Connections()
	if conns == nil {
		conns = []studio.Connection{}
	}
	writeJSON(w, http.StatusOK, conns)
}

// handleStream sends the current snapshot, then every loudness event until
// the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	id := "ws-" + uuid.NewString()
	events := s.source.Subscribe(id, s.config.Buffer)
	defer s.source.Unsubscribe(id)
	s.log.Debug("client connected", "id", id, "remote", r.RemoteAddr)

	// The read loop only notices closes; clients send nothing.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := s.write(conn, s.snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(s.config.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			s.log.Debug("client disconnected", "id", id)
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "meters closed"),
					time.Now().Add(s.config.WriteTimeout))
				return
			}
			if err := s.write(conn, ev); err != nil {
				s.log.Debug("websocket write failed", "id", id, "err", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.config.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	return conn.WriteJSON(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
