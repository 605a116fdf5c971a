package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Handler answers one request. The returned value is encoded as the
// response frame; a non-nil error is sent as {"error": "..."}.
type Handler func(ctx context.Context, req *Request) (any, error)

// Authorizer checks the credentials of an upgrade request. A non-nil error
// rejects the upgrade with 401.
type Authorizer func(authorization, db, schema string) error

// ServerConfig configures a Server. Authorize may be nil to accept every
// upgrade.
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
	Authorize       Authorizer
	Logger          *slog.Logger
}

// DefaultServerConfig returns 4 KiB buffers, any origin, no authorization
// and slog.Default().
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
		Logger:          slog.Default(),
	}
}

// StaticCredentials accepts exactly "{username}:{password}".
func StaticCredentials(username, password string) Authorizer {
	want := username + ":" + password

	return func(authorization, _, _ string) error {
		if authorization != want {
			return ErrUnauthorized
		}

		return nil
	}
}

// Server is a TDB-compatible websocket endpoint: it authenticates the
// upgrade and answers every request frame with exactly one response frame.
type Server struct {
	upgrader  websocket.Upgrader
	authorize Authorizer
	handlers  map[Action]Handler
	fallback  Handler
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewServer returns a Server without handlers; register them with Handle or
// HandleDefault before serving.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		authorize: cfg.Authorize,
		handlers:  make(map[Action]Handler),
		logger:    cfg.Logger,
	}
}

// Handle registers handler for action, replacing any previous one.
func (s *Server) Handle(action Action, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = handler
}

// HandleDefault sets the handler for actions without their own handler.
func (s *Server) HandleDefault(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = handler
}

func (s *Server) getHandler(action Action) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if h, ok := s.handlers[action]; ok {
		return h, true
	}

	return s.fallback, s.fallback != nil
}

// EchoHandler answers with the request envelope itself.
func EchoHandler(_ context.Context, req *Request) (any, error) {
	return req, nil
}

// ServeHTTP authorizes the upgrade from the authorization header and the db
// and schema query parameters, answers 401 on failure, and otherwise serves
// requests on the connection one at a time until the client goes away.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	db, schema := q.Get("db"), q.Get("schema")

	if s.authorize != nil {
		if err := s.authorize(r.Header.Get(HeaderAuthorization), db, schema); err != nil {
			s.logger.Warn("rejected upgrade", "remote_addr", r.RemoteAddr, "error", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("client connected", "remote_addr", conn.RemoteAddr(), "db", db)
	defer s.logger.Info("client disconnected", "remote_addr", conn.RemoteAddr())

	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
			) {
				s.logger.Error("read error", "error", err)
			}

			return
		}

		if err := conn.WriteMessage(websocket.TextMessage, s.processRequest(ctx, data)); err != nil {
			s.logger.Error("failed to write message", "error", err)
			return
		}
	}
}

func (s *Server) processRequest(ctx context.Context, data []byte) []byte {
	req, err := DecodeRequest(data)
	if err != nil {
		return encodeError(err)
	}

	handler, ok := s.getHandler(req.Action)
	if !ok {
		return encodeError(fmt.Errorf("unknown action: %s", req.Action))
	}

	result, err := handler(ctx, req)
	if err != nil {
		return encodeError(err)
	}

	resp, err := json.Marshal(result)
	if err != nil {
		return encodeError(err)
	}

	return resp
}
