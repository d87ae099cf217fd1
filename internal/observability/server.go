package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodbeats/internal/shared"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// StatusFunc returns a JSON-encodable snapshot of the running client.
type StatusFunc func() any

// StatusServer serves health, status, metrics and a websocket event feed on a
// local address.
type StatusServer struct {
	addr     string
	status   StatusFunc
	metrics  *Metrics
	hub      *Hub
	logger   *log.Logger
	upgrader websocket.Upgrader

	srv      *http.Server
	listener net.Listener
}

func NewStatusServer(addr string, status StatusFunc, metrics *Metrics, hub *Hub, logger *log.Logger) *StatusServer {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if hub == nil {
		hub = NewHub(0)
	}
	if status == nil {
		status = func() any { return map[string]string{} }
	}

	return &StatusServer{
		addr:    addr,
		status:  status,
		metrics: metrics,
		hub:     hub,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Bound to a loopback address; any local origin may watch.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routes.
func (s *StatusServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})
	r.Get("/events", s.handleEvents)
	return r
}

// Start listens on the configured address and serves in the background.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = ln
	s.srv = &http.Server{Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server stopped", "error", err)
		}
	}()

	s.logger.Info("status server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once started.
func (s *StatusServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Shutdown closes event streams and stops the server.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.status())
}

func (s *StatusServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// drain client frames so close and ping control messages are handled
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(time.Second))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("event stream closed", "error", err)
				return
			}
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
