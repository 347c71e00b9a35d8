// Package server exposes the session host over HTTP: a JSON API for
// listing sessions and a websocket endpoint that attaches a client to
// one session's terminal stream.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"pkt.systems/pslog"

	"github.com/agentpane/agentpane/internal/config"
	"github.com/agentpane/agentpane/internal/host"
	"github.com/agentpane/agentpane/internal/transport"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	// The desktop client connects from a file:// or app origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server serves the session API and websocket attachments.
type Server struct {
	registry *host.Registry
	cfg      config.Config
	log      pslog.Logger
}

// New creates a server over the given registry.
func New(ctx context.Context, registry *host.Registry, cfg config.Config) *Server {
	return &Server{
		registry: registry,
		cfg:      cfg,
		log:      pslog.Ctx(ctx),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /ws", s.handleAttach)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.List())
}

// handleAttach upgrades to a websocket and bridges it to a session
// streamer. Query parameters: session (required), cols and rows (the
// client's current dimensions, used for the pre-seed resize).
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("session")
	sess, err := s.registry.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	cols := queryInt(r, "cols")
	rows := queryInt(r, "rows")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	ctx := r.Context()
	client := transport.NewClient(conn)
	streamer := host.NewStreamer(ctx, sess, client)

	client.Subscribe(transport.TypeInput, func(env transport.Envelope) {
		streamer.HandleInput(env.Data)
	})
	client.Subscribe(transport.TypeResize, func(env transport.Envelope) {
		if env.Cols != nil && env.Rows != nil {
			streamer.HandleResize(*env.Cols, *env.Rows)
		}
	})
	client.Subscribe(transport.TypeRequestFullHistory, func(env transport.Envelope) {
		maxLines := env.MaxLines
		if maxLines <= 0 {
			maxLines = s.cfg.Terminal.ScrollbackLines
		}
		streamer.HandleHistoryRequest(maxLines)
	})

	if err := streamer.Attach(cols, rows); err != nil {
		s.log.Warn("attach failed", "session", id, "err", err)
		client.Publish(transport.Envelope{
			Type:      transport.TypeExit,
			SessionID: id,
			Data:      err.Error(),
		})
		client.Close()
		return
	}
	s.log.Info("client attached", "session", id, "cols", cols, "rows", rows)

	// Block on the read loop; the connection owns this handler's
	// lifetime.
	client.ReadLoop(ctx)
	streamer.Close()
	s.log.Info("client detached", "session", id)
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}
