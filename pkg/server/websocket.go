package server

import (
	"runtime/debug"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vnative/pkg/protocol"
)

// ReadLoop continuously reads frames from the WebSocket connection.
// Replies resolve pending bridge calls on this goroutine; each invocation
// runs in its own goroutine so a slow entity method never stalls replies.
// This method blocks until the connection is closed or an error occurs.
func (s *Session) ReadLoop() {
	defer s.Close()

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.metrics.RecordReadError()
				s.logger.Error("read error", "error", err)
			}
			return
		}

		s.touch()
		s.metrics.RecordFrameReceived(len(msg))

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.metrics.RecordProtocolError()
			s.logger.Error("frame decode error", "error", err)
			s.sendError(protocol.ErrInvalidFrame, err.Error())
			continue
		}

		switch frame.Type {
		case protocol.FrameReply:
			s.handleReply(frame.Payload)

		case protocol.FrameInvoke:
			s.handleInvoke(frame.Payload)

		case protocol.FrameControl:
			if !s.handleControl(frame.Payload) {
				return
			}

		case protocol.FrameError:
			if !s.handleError(frame.Payload) {
				return
			}

		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type)
			s.sendError(protocol.ErrInvalidFrame, "unexpected frame type "+frame.Type.String())
		}
	}
}

func (s *Session) handleReply(payload []byte) {
	resp, err := protocol.DecodeResponse(payload)
	if err != nil {
		s.metrics.RecordProtocolError()
		s.logger.Error("reply decode error", "error", &ProtocolError{SessionID: s.ID, Op: "reply", Err: err})
		s.sendError(protocol.ErrInvalidRequest, err.Error())
		return
	}
	if !s.bc.Resolve(resp) {
		s.sendError(protocol.ErrUnknownCall, "no pending call")
	}
}

func (s *Session) handleInvoke(payload []byte) {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		s.metrics.RecordProtocolError()
		s.logger.Error("invoke decode error", "error", &ProtocolError{SessionID: s.ID, Op: "invoke", Err: err})
		s.sendError(protocol.ErrInvalidRequest, err.Error())
		return
	}
	s.metrics.RecordInvoke()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				s.metrics.RecordHandlerPanic()
				s.logger.Error("invoke panic", "panic", r, "stack", string(debug.Stack()))
			}
		}()

		resp := s.bc.Serve(s.ctx, req)
		if !resp.OK() && resp.Code == uint16(protocol.ErrHandlerPanic) {
			s.metrics.RecordHandlerPanic()
		}
		if err := s.writeFrame(protocol.FrameResult, protocol.EncodeResponse(resp)); err != nil {
			s.logger.Debug("result not sent", "method", req.Method, "error", err)
		}
	}()
}

// handleControl reports false when native closed the context.
func (s *Session) handleControl(payload []byte) bool {
	ct, data, err := protocol.DecodeControl(payload)
	if err != nil {
		s.metrics.RecordProtocolError()
		s.logger.Error("control decode error", "error", err)
		return true
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := data.(*protocol.PingPong); ok {
			ct, pong := protocol.NewPong(pp.Timestamp)
			if err := s.writeFrame(protocol.FrameControl, protocol.EncodeControl(ct, pong)); err != nil {
				s.logger.Error("pong error", "error", err)
			}
		}

	case protocol.ControlPong:
		s.logger.Debug("received pong")

	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			s.logger.Info("native closing", "reason", cm.Reason, "message", cm.Message)
		}
		return false
	}
	return true
}

// handleError reports false for fatal errors.
func (s *Session) handleError(payload []byte) bool {
	em, err := protocol.DecodeErrorMessage(payload)
	if err != nil {
		s.metrics.RecordProtocolError()
		s.logger.Error("error frame decode error", "error", err)
		return true
	}
	s.logger.Warn("native reported error", "code", em.Code, "message", em.Message, "fatal", em.Fatal)
	return !em.Fatal
}

// HeartbeatLoop sends periodic pings until the session closes.
func (s *Session) HeartbeatLoop() {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.sendPing(); err != nil {
				s.logger.Debug("heartbeat stopped", "error", err)
				return
			}

		case <-s.done:
			return
		}
	}
}

// Start starts the session loops.
// This should be called after the handshake is complete.
func (s *Session) Start() {
	go s.ReadLoop()
	if s.config.HeartbeatInterval > 0 {
		go s.HeartbeatLoop()
	}
}
