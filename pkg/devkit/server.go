package devkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// initialContextID is reported to a debugger before any device has asked to
// debug.
const initialContextID = "0"

// device is one WebSocket peer of the devkit.
type device struct {
	id         int
	conn       *websocket.Conn
	remoteAddr string
	debugger   bool

	writeMu sync.Mutex
}

func (d *device) send(m Message) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return d.conn.WriteJSON(m)
}

// Server is the devkit endpoint devices and debuggers connect to.
type Server struct {
	config   *ServerConfig
	console  *Console
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   chi.Router

	mu         sync.Mutex
	nextDevice int
	devices    map[int]*device
	client     *device // the device that asked to debug
	debugger   *device
	contextID  string
	debugging  bool

	httpServer *http.Server
}

// NewServer creates a devkit server. A nil config uses DefaultServerConfig().
func NewServer(config *ServerConfig) *Server {
	config = config.withDefaults()
	s := &Server{
		config:  config,
		console: config.Console,
		logger:  config.Logger.With("component", "devkit"),
		upgrader: websocket.Upgrader{
			CheckOrigin: config.CheckOrigin,
		},
		devices:   make(map[int]*device),
		contextID: initialContextID,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.HandleWebSocket)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Debugging reports whether a device is in debugging mode.
func (s *Server) Debugging() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debugging
}

// ContextID returns the context id of the last device that asked to debug.
func (s *Server) ContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

// Devices returns the number of connected peers.
func (s *Server) Devices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// ContextFile returns the path the debugging context id is written to.
func (s *Server) ContextFile() string {
	return filepath.Join(s.config.ProjectHome, "build", "context")
}

// isDebuggerHost reports whether a connection comes from a local debugger.
func isDebuggerHost(host string) bool {
	return strings.HasPrefix(host, "localhost")
}

// HandleWebSocket upgrades r and serves one device until it disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	dev := s.attach(conn, r)
	defer s.detach(dev)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("device read ended", "device", dev.id, "error", err)
			}
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.logger.Warn("malformed devkit message", "device", dev.id, "error", err)
			continue
		}
		s.handle(dev, m)
	}
}

func (s *Server) attach(conn *websocket.Conn, r *http.Request) *device {
	s.mu.Lock()
	dev := &device{
		id:         s.nextDevice,
		conn:       conn,
		remoteAddr: r.RemoteAddr,
		debugger:   isDebuggerHost(r.Host),
	}
	s.nextDevice++
	s.devices[dev.id] = dev
	if dev.debugger {
		s.debugger = dev
	}
	s.mu.Unlock()

	s.logger.Info("device connected", "device", dev.id, "host", r.Host, "remote_addr", r.RemoteAddr)
	if dev.debugger {
		s.console.Event("Debugger %d attached to dev kit", dev.id)
		s.switchToDebug()
	} else {
		s.console.Event("Client %d attached to dev kit", dev.id)
	}
	return dev
}

func (s *Server) detach(dev *device) {
	dev.conn.Close()

	s.mu.Lock()
	delete(s.devices, dev.id)
	if s.client == dev {
		s.client = nil
	}
	if s.debugger == dev {
		s.debugger = nil
	}
	wasDebugging := s.debugging
	s.debugging = false
	s.mu.Unlock()

	s.logger.Info("device disconnected", "device", dev.id)
	if wasDebugging {
		s.console.Event("Quit debugging")
	}
}

// switchToDebug tells the debugging device that a debugger is attached.
func (s *Server) switchToDebug() {
	s.mu.Lock()
	client, contextID := s.client, s.contextID
	s.mu.Unlock()

	if client == nil {
		s.logger.Warn("debugger attached but no device is debugging")
		return
	}
	if err := client.send(NewSwitchToDebug(contextID)); err != nil {
		s.logger.Error("switch to debug failed", "device", client.id, "error", err)
	}
}

func (s *Server) handle(dev *device, m Message) {
	if s.config.Store != nil {
		err := s.config.Store.Append(&Entry{
			Time:   time.Now(),
			Device: dev.id,
			Cmd:    m.Cmd,
			Data:   m.Data,
		})
		if err != nil {
			s.logger.Error("store devkit message", "device", dev.id, "error", err)
		}
	}

	var err error
	switch m.Cmd {
	case CmdDebug:
		err = s.handleDebug(dev, m)
	case CmdException:
		err = s.handleException(dev, m)
	case CmdLog:
		var data LogData
		if err = m.Decode(&data); err == nil {
			s.console.Log(dev.id, data)
		}
	default:
		s.logger.Debug("ignoring devkit command", "device", dev.id, "cmd", m.Cmd)
	}
	if err != nil {
		s.logger.Error("devkit command failed", "device", dev.id, "cmd", m.Cmd, "error", err)
	}

	if s.config.OnMessage != nil {
		s.config.OnMessage(dev.id, m)
	}
}

func (s *Server) handleDebug(dev *device, m Message) error {
	var data DebugData
	if err := m.Decode(&data); err != nil {
		return err
	}

	s.mu.Lock()
	s.client = dev
	s.debugging = true
	s.contextID = data.ContextID
	debuggerAttached := s.debugger != nil
	s.mu.Unlock()

	s.console.Event("Enter debugging")
	s.console.Event("Device %d request debug, project home: %s", dev.id, s.config.ProjectHome)

	if err := s.writeContextFile(data.ContextID); err != nil {
		return err
	}
	if debuggerAttached {
		s.switchToDebug()
	}
	return nil
}

func (s *Server) writeContextFile(contextID string) error {
	path := s.ContextFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("devkit: create build dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(contextID), 0o644); err != nil {
		return fmt.Errorf("devkit: write context file: %w", err)
	}
	return nil
}

func (s *Server) handleException(dev *device, m Message) error {
	var data ExceptionData
	if err := m.Decode(&data); err != nil {
		return err
	}
	s.console.Exception(dev.id, data)

	if s.config.Archive == nil {
		return nil
	}
	s.mu.Lock()
	contextID := s.contextID
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ArchiveTimeout)
	defer cancel()
	key, err := s.config.Archive.Store(ctx, &ExceptionReport{
		Device:     dev.id,
		RemoteAddr: dev.remoteAddr,
		ContextID:  contextID,
		Time:       time.Now(),
		Exception:  data,
	})
	if err != nil {
		return err
	}
	s.logger.Info("exception archived", "device", dev.id, "key", key)
	return nil
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.config.Address,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("devkit listening", "address", s.config.Address, "project_home", s.config.ProjectHome)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.closeDevices()
	return s.httpServer.Shutdown(shutdownCtx)
}

func (s *Server) closeDevices() {
	s.mu.Lock()
	devices := make([]*device, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	s.mu.Unlock()

	for _, d := range devices {
		d.writeMu.Lock()
		d.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "devkit shutting down"),
			time.Now().Add(time.Second))
		d.writeMu.Unlock()
		d.conn.Close()
	}
}
