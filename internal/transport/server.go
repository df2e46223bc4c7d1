// Package transport serves the chess WebSocket endpoints and pumps frames between sockets
// and sessions.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/cheese-arena/internal/identity"
	"github.com/park285/cheese-arena/internal/session"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type Config struct {
	AllowedOrigins []string
	SendBuffer     int
	PingInterval   time.Duration
	ReadLimit      int64
}

// Server routes:
//
//	GET /ws/chess/            lobby connection
//	GET /ws/chess/{game_id}/  room connection
//	GET /healthz
type Server struct {
	coord    *session.Coordinator
	resolver identity.Resolver
	cfg      Config
	logger   *zap.Logger
	mux      *http.ServeMux

	base   context.Context
	cancel context.CancelFunc

	// mu orders wg.Add against Shutdown's Wait.
	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
}

func NewServer(coord *session.Coordinator, resolver identity.Resolver, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 << 10
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Server{coord: coord, resolver: resolver, cfg: cfg, logger: logger, mux: http.NewServeMux(), base: base, cancel: cancel}
	s.mux.HandleFunc("GET /ws/chess/{$}", func(w http.ResponseWriter, r *http.Request) { s.serveWS(w, r, "") })
	s.mux.HandleFunc("GET /ws/chess/{game_id}/{$}", s.serveRoom)
	s.mux.HandleFunc("GET /ws/chess/{game_id}", s.serveRoom)
	s.mux.HandleFunc("GET /healthz", s.healthz)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// Shutdown closes every open connection and waits for their sessions to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *Server) serveRoom(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("game_id"))
	if id == "" {
		http.Error(w, "game id required", http.StatusBadRequest)
		return
	}
	s.serveWS(w, r, id)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, roomID string) {
	who, err := s.resolver.Resolve(r.Context(), r)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		s.logger.Error("ws_identity_error", zap.Error(err))
		http.Error(w, "identity service unavailable", http.StatusServiceUnavailable)
		return
	}
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.cfg.AllowedOrigins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	ws.SetReadLimit(s.cfg.ReadLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.base, cancel)
	defer stop()

	conn := newConn(uuid.NewString(), ws, s.cfg.SendBuffer, s.logger)
	defer conn.close(websocket.StatusNormalClosure, "")

	sess := s.coord.Open(ctx, conn, session.Binding{RoomID: roomID, Player: who.Player})
	go conn.writePump(ctx)
	go conn.pingLoop(ctx, s.cfg.PingInterval)

	conn.readLoop(ctx, sess.Handle)

	closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	sess.Close(closeCtx)
	closeCancel()
}

// track registers a connection handler unless Shutdown has started.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
