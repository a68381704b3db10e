package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/protocol"
)

// AppFunc binds application state (usually a panel) to a new session. It
// runs after the handshake and before the session reads its first frame, so
// entity methods it registers are in place when native invokes them.
type AppFunc func(*Session)

// Server is the host endpoint native peers connect to.
type Server struct {
	config   *ServerConfig
	sessions *SessionManager
	upgrader websocket.Upgrader
	logger   *slog.Logger
	router   chi.Router
	app      AppFunc

	httpServer *http.Server
}

// New creates a new Server. A nil config uses DefaultServerConfig().
func New(config *ServerConfig) *Server {
	config = config.withDefaults()

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "server")

	opts := bridge.DefaultOptions()
	opts.Observer = config.Observer

	s := &Server{
		config:   config,
		sessions: NewSessionManager(config.SessionConfig, opts, config.MaxSessions, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(config.Path, s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	if config.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", config.MetricsHandler)
	}
	s.router = r

	return s
}

// SetApp sets the function that binds each new session to the application.
func (s *Server) SetApp(fn AppFunc) {
	s.app = fn
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the chi router so callers can mount extra routes.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// HandleWebSocket upgrades the connection, performs the handshake and starts
// a session.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(s.config.SessionConfig.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.config.SessionConfig.HandshakeTimeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		s.logger.Error("handshake read failed", "error", err)
		conn.Close()
		return
	}

	hello, status := s.readClientHello(msg)
	if status != protocol.HandshakeOK {
		s.logger.Warn("handshake rejected", "status", status, "remote_addr", conn.RemoteAddr().String())
		s.sendHandshakeError(conn, status)
		conn.Close()
		return
	}

	session, err := s.sessions.Create(conn, hello)
	if err != nil {
		status := protocol.HandshakeInternalError
		if errors.Is(err, ErrMaxSessionsReached) || errors.Is(err, ErrShuttingDown) {
			status = protocol.HandshakeServerBusy
		}
		s.logger.Warn("session rejected", "error", err)
		s.sendHandshakeError(conn, status)
		conn.Close()
		return
	}

	if s.app != nil {
		s.app(session)
	}

	if err := s.sendServerHello(conn, session); err != nil {
		s.logger.Error("handshake write failed", "error", err)
		session.Close()
		return
	}

	session.Start()
}

// readClientHello validates the handshake frame.
func (s *Server) readClientHello(msg []byte) (*protocol.ClientHello, protocol.HandshakeStatus) {
	frame, err := protocol.DecodeFrame(msg)
	if err != nil || frame.Type != protocol.FrameHandshake {
		return nil, protocol.HandshakeInvalidFormat
	}
	hello, err := protocol.DecodeClientHello(frame.Payload)
	if err != nil {
		return nil, protocol.HandshakeInvalidFormat
	}
	if !hello.Version.Compatible() {
		return nil, protocol.HandshakeVersionMismatch
	}
	if s.config.AuthToken != "" && hello.Token != s.config.AuthToken {
		return nil, protocol.HandshakeNotAuthorized
	}
	return hello, protocol.HandshakeOK
}

// sendHandshakeError sends a handshake error response.
func (s *Server) sendHandshakeError(conn *websocket.Conn, status protocol.HandshakeStatus) {
	hello := protocol.NewServerHelloError(status)
	payload := protocol.EncodeServerHello(hello)
	frame := protocol.NewFrame(protocol.FrameHandshake, payload)

	conn.SetWriteDeadline(time.Now().Add(s.config.SessionConfig.WriteTimeout))
	conn.WriteMessage(websocket.BinaryMessage, frame.Encode())
}

// sendServerHello sends a successful handshake response.
func (s *Server) sendServerHello(conn *websocket.Conn, session *Session) error {
	var flags uint16
	if s.config.SessionConfig.HeartbeatInterval > 0 {
		flags |= protocol.ServerFlagHeartbeat
	}
	if s.config.DevkitAvailable {
		flags |= protocol.ServerFlagDevkit
	}

	hello := protocol.NewServerHello(session.ID, uint64(time.Now().UnixMilli()), flags)
	return session.writeFrame(protocol.FrameHandshake, protocol.EncodeServerHello(hello))
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Address, "path", s.config.Path)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	case <-shutdown:
		s.logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes all sessions, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.sessions.Shutdown(ctx); err != nil {
		s.logger.Warn("session shutdown incomplete", "error", err)
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}
