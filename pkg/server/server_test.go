package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/protocol"
)

func wsURL(t *testing.T, baseURL, path string) string {
	t.Helper()
	if !strings.HasPrefix(baseURL, "http") {
		t.Fatalf("unexpected base URL: %q", baseURL)
	}
	return "ws" + strings.TrimPrefix(baseURL, "http") + path
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%q) failed: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, ft protocol.FrameType, payload []byte) {
	t.Helper()
	frame := protocol.NewFrame(ft, payload)
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		t.Fatalf("write %v frame failed: %v", ft, err)
	}
}

func writeHandshake(t *testing.T, conn *websocket.Conn, hello *protocol.ClientHello) {
	t.Helper()
	writeFrame(t, conn, protocol.FrameHandshake, protocol.EncodeClientHello(hello))
}

func readFrame(t *testing.T, conn *websocket.Conn) *protocol.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame failed: %v", err)
	}
	frame, err := protocol.DecodeFrame(msg)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	return frame
}

// readFrameOfType skips heartbeat pings and returns the next frame of type ft.
func readFrameOfType(t *testing.T, conn *websocket.Conn, ft protocol.FrameType) *protocol.Frame {
	t.Helper()
	for {
		frame := readFrame(t, conn)
		if frame.Type == ft {
			return frame
		}
		if frame.Type != protocol.FrameControl {
			t.Fatalf("frame type = %v, want %v", frame.Type, ft)
		}
	}
}

func readServerHello(t *testing.T, conn *websocket.Conn) *protocol.ServerHello {
	t.Helper()
	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameHandshake {
		t.Fatalf("frame type = %v, want %v", frame.Type, protocol.FrameHandshake)
	}
	hello, err := protocol.DecodeServerHello(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeServerHello failed: %v", err)
	}
	return hello
}

type testServer struct {
	srv      *Server
	http     *httptest.Server
	sessions chan *Session
}

func newTestServer(t *testing.T, config *ServerConfig) *testServer {
	t.Helper()
	if config == nil {
		config = DefaultServerConfig()
	}
	srv := New(config)
	ts := &testServer{srv: srv, sessions: make(chan *Session, 4)}
	srv.SetApp(func(s *Session) {
		s.Bridge().Handle("add", func(_ context.Context, args []json.RawMessage) (any, error) {
			var a, b int
			if len(args) != 2 {
				return nil, errors.New("want two args")
			}
			if err := json.Unmarshal(args[0], &a); err != nil {
				return nil, err
			}
			if err := json.Unmarshal(args[1], &b); err != nil {
				return nil, err
			}
			return a + b, nil
		})
		ts.sessions <- s
	})
	ts.http = httptest.NewServer(srv.Handler())
	t.Cleanup(ts.http.Close)
	return ts
}

// connect completes a handshake and returns the client conn and the server
// session.
func (ts *testServer) connect(t *testing.T) (*websocket.Conn, *Session) {
	t.Helper()
	conn := dialWS(t, wsURL(t, ts.http.URL, "/ws"))
	writeHandshake(t, conn, protocol.NewClientHello("", "iOS", 390, 844))
	hello := readServerHello(t, conn)
	if hello.Status != protocol.HandshakeOK {
		t.Fatalf("handshake status = %v, want OK", hello.Status)
	}

	select {
	case s := <-ts.sessions:
		if s.ID != hello.ContextID {
			t.Fatalf("ContextID = %q, want session id %q", hello.ContextID, s.ID)
		}
		return conn, s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session")
		return nil, nil
	}
}

func TestServer_HandshakeOK(t *testing.T) {
	ts := newTestServer(t, nil)
	_, s := ts.connect(t)

	if s.Platform != "iOS" || s.Width != 390 || s.Height != 844 {
		t.Fatalf("session = %s %dx%d, want iOS 390x844", s.Platform, s.Width, s.Height)
	}
	if s.Bridge().ID() != s.ID {
		t.Fatalf("bridge id = %q, want %q", s.Bridge().ID(), s.ID)
	}
	if got := ts.srv.Sessions().Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestServer_HandshakeFlags(t *testing.T) {
	config := DefaultServerConfig()
	config.DevkitAvailable = true
	ts := newTestServer(t, config)

	conn := dialWS(t, wsURL(t, ts.http.URL, "/ws"))
	writeHandshake(t, conn, protocol.NewClientHello("", "Android", 0, 0))
	hello := readServerHello(t, conn)

	want := protocol.ServerFlagHeartbeat | protocol.ServerFlagDevkit
	if hello.Flags != want {
		t.Fatalf("Flags = %#x, want %#x", hello.Flags, want)
	}
	if hello.ServerTime == 0 {
		t.Fatal("ServerTime not set")
	}
}

func TestServer_HandshakeRejections(t *testing.T) {
	tests := []struct {
		name   string
		hello  *protocol.ClientHello
		raw    []byte
		want   protocol.HandshakeStatus
		config func(*ServerConfig)
	}{
		{
			name: "version mismatch",
			hello: &protocol.ClientHello{
				Version:  protocol.ProtocolVersion{Major: protocol.CurrentVersion.Major + 1},
				Platform: "iOS",
			},
			want: protocol.HandshakeVersionMismatch,
		},
		{
			name:   "wrong token",
			hello:  protocol.NewClientHello("nope", "iOS", 0, 0),
			want:   protocol.HandshakeNotAuthorized,
			config: func(c *ServerConfig) { c.WithAuthToken("secret") },
		},
		{
			name: "not a handshake frame",
			raw:  protocol.NewFrame(protocol.FrameCall, []byte{0x01}).Encode(),
			want: protocol.HandshakeInvalidFormat,
		},
		{
			name: "garbage",
			raw:  []byte{0xff},
			want: protocol.HandshakeInvalidFormat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultServerConfig()
			if tc.config != nil {
				tc.config(config)
			}
			ts := newTestServer(t, config)
			conn := dialWS(t, wsURL(t, ts.http.URL, "/ws"))

			if tc.raw != nil {
				if err := conn.WriteMessage(websocket.BinaryMessage, tc.raw); err != nil {
					t.Fatalf("write failed: %v", err)
				}
			} else {
				writeHandshake(t, conn, tc.hello)
			}

			hello := readServerHello(t, conn)
			if hello.Status != tc.want {
				t.Fatalf("status = %v, want %v", hello.Status, tc.want)
			}
			if got := ts.srv.Sessions().Count(); got != 0 {
				t.Fatalf("Count() = %d, want 0", got)
			}
		})
	}
}

func TestServer_HandshakeTokenAccepted(t *testing.T) {
	ts := newTestServer(t, DefaultServerConfig().WithAuthToken("secret"))
	conn := dialWS(t, wsURL(t, ts.http.URL, "/ws"))
	writeHandshake(t, conn, protocol.NewClientHello("secret", "iOS", 0, 0))

	if hello := readServerHello(t, conn); hello.Status != protocol.HandshakeOK {
		t.Fatalf("status = %v, want OK", hello.Status)
	}
}

func TestServer_MaxSessions(t *testing.T) {
	ts := newTestServer(t, DefaultServerConfig().WithMaxSessions(1))
	ts.connect(t)

	conn := dialWS(t, wsURL(t, ts.http.URL, "/ws"))
	writeHandshake(t, conn, protocol.NewClientHello("", "iOS", 0, 0))
	if hello := readServerHello(t, conn); hello.Status != protocol.HandshakeServerBusy {
		t.Fatalf("status = %v, want ServerBusy", hello.Status)
	}
}

func TestSession_CallNativeRoundTrip(t *testing.T) {
	ts := newTestServer(t, nil)
	conn, s := ts.connect(t)

	call := s.Bridge().CallNative(context.Background(), "shader", "render", map[string]int{"n": 1})

	frame := readFrameOfType(t, conn, protocol.FrameCall)
	req, err := protocol.DecodeRequest(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}
	if req.Module != "shader" || req.Method != "render" {
		t.Fatalf("request = %s, want shader.render", req)
	}
	if string(req.Args) != `[{"n":1}]` {
		t.Fatalf("args = %s, want [{\"n\":1}]", req.Args)
	}

	writeFrame(t, conn, protocol.FrameReply,
		protocol.EncodeResponse(protocol.NewResult(req.ID, json.RawMessage(`"done"`))))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got, err := bridge.Decode[string](ctx, call)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got != "done" {
		t.Fatalf("result = %q, want %q", got, "done")
	}
}

func TestSession_CallNativeFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	conn, s := ts.connect(t)

	call := s.Bridge().CallNative(context.Background(), "imageDecoder", "loadResource", "missing.png")
	req, err := protocol.DecodeRequest(readFrameOfType(t, conn, protocol.FrameCall).Payload)
	if err != nil {
		t.Fatalf("DecodeRequest failed: %v", err)
	}
	writeFrame(t, conn, protocol.FrameReply,
		protocol.EncodeResponse(protocol.NewFailure(req.ID, 404, "no such resource")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = call.Await(ctx)

	var nerr *bridge.NativeError
	if !errors.As(err, &nerr) {
		t.Fatalf("Await error = %v, want *bridge.NativeError", err)
	}
	if nerr.Code != 404 || nerr.Message != "no such resource" {
		t.Fatalf("NativeError = %+v", nerr)
	}
}

func TestSession_InvokeEntityMethod(t *testing.T) {
	ts := newTestServer(t, nil)
	conn, _ := ts.connect(t)

	tests := []struct {
		name     string
		method   string
		args     string
		wantOK   bool
		want     string
		wantCode uint16
	}{
		{name: "ok", method: "add", args: `[2,3]`, wantOK: true, want: `5`},
		{name: "unknown", method: "nope", args: `[]`, wantCode: uint16(protocol.ErrMethodNotFound)},
		{name: "handler error", method: "add", args: `[1]`, wantCode: uint16(protocol.ErrServerError)},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id := uint64(i + 1)
			writeFrame(t, conn, protocol.FrameInvoke, protocol.EncodeRequest(&protocol.Request{
				ID:     id,
				Method: tc.method,
				Args:   json.RawMessage(tc.args),
			}))

			resp, err := protocol.DecodeResponse(readFrameOfType(t, conn, protocol.FrameResult).Payload)
			if err != nil {
				t.Fatalf("DecodeResponse failed: %v", err)
			}
			if resp.ID != id {
				t.Fatalf("ID = %d, want %d", resp.ID, id)
			}
			if resp.OK() != tc.wantOK {
				t.Fatalf("OK() = %v, want %v (%s)", resp.OK(), tc.wantOK, resp.Message)
			}
			if tc.wantOK && string(resp.Result) != tc.want {
				t.Fatalf("Result = %s, want %s", resp.Result, tc.want)
			}
			if !tc.wantOK && resp.Code != tc.wantCode {
				t.Fatalf("Code = %d, want %d", resp.Code, tc.wantCode)
			}
		})
	}

	if got := ts.srv.Metrics().Invokes; got != int64(len(tests)) {
		t.Fatalf("Invokes = %d, want %d", got, len(tests))
	}
}

func TestSession_PingPong(t *testing.T) {
	ts := newTestServer(t, nil)
	conn, _ := ts.connect(t)

	ct, ping := protocol.NewPing(42)
	writeFrame(t, conn, protocol.FrameControl, protocol.EncodeControl(ct, ping))

	frame := readFrameOfType(t, conn, protocol.FrameControl)
	got, data, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeControl failed: %v", err)
	}
	if got != protocol.ControlPong {
		t.Fatalf("control = %v, want Pong", got)
	}
	if pp := data.(*protocol.PingPong); pp.Timestamp != 42 {
		t.Fatalf("Timestamp = %d, want 42", pp.Timestamp)
	}
}

func TestSession_HeartbeatPing(t *testing.T) {
	config := DefaultServerConfig()
	config.SessionConfig.HeartbeatInterval = 20 * time.Millisecond
	ts := newTestServer(t, config)
	conn, _ := ts.connect(t)

	frame := readFrame(t, conn)
	if frame.Type != protocol.FrameControl {
		t.Fatalf("frame type = %v, want Control", frame.Type)
	}
	if ct, _, _ := protocol.DecodeControl(frame.Payload); ct != protocol.ControlPing {
		t.Fatalf("control = %v, want Ping", ct)
	}
}

func TestSession_UnknownReply(t *testing.T) {
	ts := newTestServer(t, nil)
	conn, _ := ts.connect(t)

	writeFrame(t, conn, protocol.FrameReply,
		protocol.EncodeResponse(protocol.NewResult(999, json.RawMessage(`null`))))

	em, err := protocol.DecodeErrorMessage(readFrameOfType(t, conn, protocol.FrameError).Payload)
	if err != nil {
		t.Fatalf("DecodeErrorMessage failed: %v", err)
	}
	if em.Code != protocol.ErrUnknownCall || em.Fatal {
		t.Fatalf("error = %v, want non-fatal UnknownCall", em)
	}
}

func TestSession_CloseRejectsPending(t *testing.T) {
	ts := newTestServer(t, nil)
	closed := make(chan *Session, 1)
	ts.srv.Sessions().SetOnSessionClose(func(s *Session) { closed <- s })
	conn, s := ts.connect(t)

	call := s.Bridge().CallNative(context.Background(), "shader", "render", nil)
	readFrameOfType(t, conn, protocol.FrameCall)

	ct, cm := protocol.NewClose(protocol.CloseNormal, "bye")
	writeFrame(t, conn, protocol.FrameControl, protocol.EncodeControl(ct, cm))

	select {
	case got := <-closed:
		if got != s {
			t.Fatal("closed a different session")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := call.Await(ctx); !errors.Is(err, bridge.ErrContextDisposed) {
		t.Fatalf("Await error = %v, want ErrContextDisposed", err)
	}
	if !s.Bridge().Disposed() {
		t.Fatal("bridge context not disposed")
	}
	if got := ts.srv.Sessions().Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}
	if err := s.Send(context.Background(), &protocol.Request{Method: "x"}); !errors.Is(err, bridge.ErrTransportClosed) {
		t.Fatalf("Send after close = %v, want ErrTransportClosed", err)
	}
}

func TestServer_ShutdownSendsClose(t *testing.T) {
	ts := newTestServer(t, nil)
	conn, s := ts.connect(t)

	if err := ts.srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	frame := readFrameOfType(t, conn, protocol.FrameControl)
	ct, data, err := protocol.DecodeControl(frame.Payload)
	if err != nil {
		t.Fatalf("DecodeControl failed: %v", err)
	}
	if ct != protocol.ControlClose {
		t.Fatalf("control = %v, want Close", ct)
	}
	if cm := data.(*protocol.CloseMessage); cm.Reason != protocol.CloseServerShutdown {
		t.Fatalf("reason = %v, want ServerShutdown", cm.Reason)
	}
	if !s.IsClosed() {
		t.Fatal("session still open after Shutdown")
	}

	// New sessions are refused once shutdown has begun.
	late := dialWS(t, wsURL(t, ts.http.URL, "/ws"))
	writeHandshake(t, late, protocol.NewClientHello("", "iOS", 0, 0))
	if hello := readServerHello(t, late); hello.Status != protocol.HandshakeServerBusy {
		t.Fatalf("status = %v, want ServerBusy", hello.Status)
	}
}

func TestServer_Routes(t *testing.T) {
	config := DefaultServerConfig()
	config.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "metrics\n")
	})
	ts := newTestServer(t, config)

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/healthz", http.StatusOK, "ok\n"},
		{"/metrics", http.StatusOK, "metrics\n"},
		{"/missing", http.StatusNotFound, ""},
	}
	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, err := http.Get(ts.http.URL + tc.path)
			if err != nil {
				t.Fatalf("GET failed: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.code {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.code)
			}
			if tc.body != "" {
				b, _ := io.ReadAll(resp.Body)
				if string(b) != tc.body {
					t.Fatalf("body = %q, want %q", b, tc.body)
				}
			}
		})
	}
}

func TestServerMetrics_Sessions(t *testing.T) {
	ts := newTestServer(t, nil)
	_, s := ts.connect(t)
	ts.connect(t)
	s.Close()

	m := ts.srv.Metrics()
	if m.ActiveSessions != 1 || m.TotalSessions != 2 || m.SessionCloses != 1 || m.PeakSessions != 2 {
		t.Fatalf("metrics = %+v", m)
	}
	if m.FramesSent < 2 {
		t.Fatalf("FramesSent = %d, want at least the two ServerHellos", m.FramesSent)
	}
}

func TestMetricsCollector_OnError(t *testing.T) {
	m := NewMetricsCollector()
	var kinds []string
	m.SetOnError(func(kind string) { kinds = append(kinds, kind) })

	m.RecordReadError()
	m.RecordProtocolError()
	m.RecordWriteError()
	m.SetOnError(nil)
	m.RecordReadError()

	if got := strings.Join(kinds, ","); got != "read,protocol,write" {
		t.Fatalf("reported kinds = %q", got)
	}
	if snap := m.Snapshot(); snap.ReadErrors != 2 || snap.ProtocolErrors != 1 || snap.WriteErrors != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}
