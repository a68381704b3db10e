package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/protocol"
)

// Session is one connected native peer. It owns the peer's bridge context
// and is the context's transport: outbound calls are written as Call frames,
// Reply frames resolve them, and Invoke frames run entity methods.
type Session struct {
	// Identity
	ID         string
	Platform   string
	Width      uint16
	Height     uint16
	RemoteAddr string
	CreatedAt  time.Time

	conn    *websocket.Conn
	bc      *bridge.Context
	config  *SessionConfig
	logger  *slog.Logger
	metrics *MetricsCollector

	// Serializes writes on conn. gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	closed     atomic.Bool
	done       chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	lastActive atomic.Int64
	inflight   sync.WaitGroup

	onClose func(*Session)
}

func newSession(conn *websocket.Conn, hello *protocol.ClientHello, config *SessionConfig, opts *bridge.Options, logger *slog.Logger, metrics *MetricsCollector) *Session {
	now := time.Now()
	id := uuid.NewString()
	if metrics == nil {
		metrics = NewMetricsCollector()
	}

	s := &Session{
		ID:        id,
		Platform:  hello.Platform,
		Width:     hello.Width,
		Height:    hello.Height,
		CreatedAt: now,
		conn:      conn,
		config:    config,
		logger:    logger.With("session_id", id, "platform", hello.Platform),
		metrics:   metrics,
		done:      make(chan struct{}),
	}
	if conn != nil {
		s.RemoteAddr = conn.RemoteAddr().String()
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.lastActive.Store(now.UnixNano())

	bopts := opts.Clone()
	if bopts == nil {
		bopts = bridge.DefaultOptions()
	}
	bopts.Logger = s.logger
	s.bc = bridge.NewContext(id, s, bopts)
	return s
}

// Bridge returns the session's bridge context.
func (s *Session) Bridge() *bridge.Context {
	return s.bc
}

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger {
	return s.logger
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// IsClosed returns whether the session is closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// LastActive returns the time the last frame arrived.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// Send implements bridge.Transport.
func (s *Session) Send(_ context.Context, req *protocol.Request) error {
	if s.closed.Load() {
		return bridge.ErrTransportClosed
	}
	return s.writeFrame(protocol.FrameCall, protocol.EncodeRequest(req))
}

// writeFrame writes one frame under the write lock.
func (s *Session) writeFrame(ft protocol.FrameType, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.conn == nil {
		return bridge.ErrTransportClosed
	}
	data := protocol.NewFrame(ft, payload).Encode()
	s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.metrics.RecordWriteError()
		return NewSessionError(s.ID, "write "+ft.String(), err)
	}
	s.metrics.RecordFrameSent(len(data))
	return nil
}

// sendError reports a non-fatal protocol problem to native.
func (s *Session) sendError(code protocol.ErrorCode, message string) {
	payload := protocol.EncodeErrorMessage(protocol.NewError(code, message))
	if err := s.writeFrame(protocol.FrameError, payload); err != nil {
		s.logger.Debug("error frame not sent", "error", err)
	}
}

// sendPing sends a heartbeat ping to native.
func (s *Session) sendPing() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	ct, pp := protocol.NewPing(uint64(time.Now().UnixMilli()))
	return s.writeFrame(protocol.FrameControl, protocol.EncodeControl(ct, pp))
}

// SendClose tells native the context is going away. It does not close the
// session.
func (s *Session) SendClose(reason protocol.CloseReason, message string) {
	ct, cm := protocol.NewClose(reason, message)
	if err := s.writeFrame(protocol.FrameControl, protocol.EncodeControl(ct, cm)); err != nil {
		s.logger.Debug("close frame not sent", "error", err)
	}
}

// Close disposes the bridge context, rejecting pending calls, and closes the
// connection. It is idempotent.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)
	s.cancel()
	s.bc.Dispose()

	s.writeMu.Lock()
	if s.conn != nil {
		s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		s.conn.Close()
	}
	s.writeMu.Unlock()

	if s.onClose != nil {
		s.onClose(s)
	}

	s.logger.Info("session closed",
		"lifetime", time.Since(s.CreatedAt).Round(time.Millisecond))
	return nil
}

// Wait blocks until in-flight entity method invocations have answered.
func (s *Session) Wait() {
	s.inflight.Wait()
}
