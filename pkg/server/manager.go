package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/protocol"
)

// SessionManager tracks the live sessions of a server.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	config      *SessionConfig
	opts        *bridge.Options
	maxSessions int
	logger      *slog.Logger
	metrics     *MetricsCollector

	shuttingDown atomic.Bool
	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64
	peakSessions int

	onSessionCreate func(*Session)
	onSessionClose  func(*Session)
}

// NewSessionManager creates a new SessionManager. opts is cloned into every
// session's bridge context.
func NewSessionManager(config *SessionConfig, opts *bridge.Options, maxSessions int, logger *slog.Logger) *SessionManager {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		sessions:    make(map[string]*Session),
		config:      config,
		opts:        opts,
		maxSessions: maxSessions,
		logger:      logger.With("component", "session_manager"),
		metrics:     NewMetricsCollector(),
	}
}

// Create creates a session for a handshaken connection. The session is
// registered but not started.
func (sm *SessionManager) Create(conn *websocket.Conn, hello *protocol.ClientHello) (*Session, error) {
	if sm.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}

	sm.mu.Lock()
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		sm.mu.Unlock()
		return nil, ErrMaxSessionsReached
	}

	s := newSession(conn, hello, sm.config, sm.opts, sm.logger, sm.metrics)
	s.onClose = sm.sessionClosed
	sm.sessions[s.ID] = s
	sm.totalCreated.Add(1)
	if len(sm.sessions) > sm.peakSessions {
		sm.peakSessions = len(sm.sessions)
	}
	sm.mu.Unlock()

	if sm.onSessionCreate != nil {
		sm.onSessionCreate(s)
	}
	s.logger.Info("session created", "remote_addr", s.RemoteAddr)
	return s, nil
}

// sessionClosed unregisters a session once it has closed.
func (sm *SessionManager) sessionClosed(s *Session) {
	sm.mu.Lock()
	_, ok := sm.sessions[s.ID]
	delete(sm.sessions, s.ID)
	sm.mu.Unlock()

	if !ok {
		return
	}
	sm.totalClosed.Add(1)
	if sm.onSessionClose != nil {
		sm.onSessionClose(s)
	}
}

// Get returns the session with the given id, or nil.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[id]
}

// Close closes and unregisters a session.
func (sm *SessionManager) Close(id string) {
	if s := sm.Get(id); s != nil {
		s.Close()
	}
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Collector returns the frame counters shared by all sessions.
func (sm *SessionManager) Collector() *MetricsCollector {
	return sm.metrics
}

// Shutdown tells every native peer the server is going away and closes all
// sessions. It stops waiting when ctx is done.
func (sm *SessionManager) Shutdown(ctx context.Context) error {
	sm.shuttingDown.Store(true)

	sm.mu.RLock()
	sessions := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		sessions = append(sessions, s)
	}
	sm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.SendClose(protocol.CloseServerShutdown, "server shutting down")
			s.Close()
		}(session)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	sm.logger.Info("session manager shutdown",
		"closed_sessions", len(sessions))
	return nil
}

// Stats returns aggregated session statistics.
func (sm *SessionManager) Stats() ManagerStats {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return ManagerStats{
		Active:       len(sm.sessions),
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
		Peak:         sm.peakSessions,
	}
}

// ManagerStats contains aggregated session manager statistics.
type ManagerStats struct {
	Active       int
	TotalCreated uint64
	TotalClosed  uint64
	Peak         int
}

// ForEach iterates over all sessions.
// The callback should not perform long-running operations as it holds the read lock.
func (sm *SessionManager) ForEach(fn func(*Session) bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, session := range sm.sessions {
		if !fn(session) {
			break
		}
	}
}

// SetOnSessionCreate sets the callback for session creation. It runs before
// the session starts reading frames.
func (sm *SessionManager) SetOnSessionCreate(fn func(*Session)) {
	sm.onSessionCreate = fn
}

// SetOnSessionClose sets the callback for session close.
func (sm *SessionManager) SetOnSessionClose(fn func(*Session)) {
	sm.onSessionClose = fn
}
