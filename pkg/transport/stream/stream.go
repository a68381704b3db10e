// Package stream carries a bridge context over any byte stream using
// JSON-RPC 2.0 with VSCode-style Content-Length framing.
//
// It serves native hosts that embed the Go runtime as a child process and
// talk over its stdin and stdout instead of a WebSocket. Go → native calls are
// JSON-RPC requests to the method "callNative"; native → Go invocations are
// JSON-RPC requests whose method is the entity method name and whose params
// are the argument array.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/protocol"
)

// MethodCallNative is the JSON-RPC method Go → native calls use.
const MethodCallNative = "callNative"

// CallParams are the params of a callNative request.
type CallParams struct {
	ID     uint64          `json:"id"`
	Module string          `json:"module"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args"`
}

// Config configures a Transport.
type Config struct {
	// ContextID names the bridge context. Default: "stdio".
	ContextID string

	// Observer is attached to the bridge context.
	Observer bridge.Observer

	// LogMessages logs every JSON-RPC message at debug level.
	LogMessages bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Transport is a bridge.Transport over a JSON-RPC connection.
type Transport struct {
	conn   *jsonrpc2.Conn
	bc     *bridge.Context
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New starts a JSON-RPC connection on rwc and binds a new bridge context to
// it. The context is disposed when the stream ends.
func New(rwc io.ReadWriteCloser, cfg Config) *Transport {
	if cfg.ContextID == "" {
		cfg.ContextID = "stdio"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "stream", "context_id", cfg.ContextID)

	t := &Transport{logger: logger}
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.bc = bridge.NewContext(cfg.ContextID, t, &bridge.Options{
		Logger:   logger,
		Observer: cfg.Observer,
	})

	var opts []jsonrpc2.ConnOpt
	if cfg.LogMessages {
		opts = append(opts, jsonrpc2.LogMessages(slog.NewLogLogger(logger.Handler(), slog.LevelDebug)))
	}
	t.conn = jsonrpc2.NewConn(t.ctx,
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(t.handle).SuppressErrClosed()),
		opts...)

	go func() {
		<-t.conn.DisconnectNotify()
		t.logger.Info("stream disconnected")
		t.cancel()
		t.bc.Dispose()
	}()
	return t
}

// Bridge returns the bridge context bound to the stream.
func (t *Transport) Bridge() *bridge.Context {
	return t.bc
}

// Done is closed when the stream ends.
func (t *Transport) Done() <-chan struct{} {
	return t.conn.DisconnectNotify()
}

// Send implements bridge.Transport. It writes the request and resolves the
// call from a separate goroutine when native answers.
func (t *Transport) Send(_ context.Context, req *protocol.Request) error {
	params := CallParams{
		ID:     req.ID,
		Module: req.Module,
		Method: req.Method,
		Args:   req.Args,
	}
	w, err := t.conn.DispatchCall(t.ctx, MethodCallNative, params)
	if err != nil {
		if errors.Is(err, jsonrpc2.ErrClosed) {
			return bridge.ErrTransportClosed
		}
		return err
	}

	go func() {
		var result json.RawMessage
		err := w.Wait(t.ctx, &result)
		switch {
		case err == nil:
			t.bc.Resolve(protocol.NewResult(req.ID, result))
		case isRPCError(err):
			rerr := err.(*jsonrpc2.Error)
			t.bc.Resolve(protocol.NewFailure(req.ID, nativeCode(rerr.Code), rerr.Message))
		default:
			// The stream is gone; disposal rejects the call.
			t.logger.Debug("call abandoned", "call", req.String(), "error", err)
		}
	}()
	return nil
}

// Close implements bridge.Transport.
func (t *Transport) Close() error {
	err := t.conn.Close()
	if errors.Is(err, jsonrpc2.ErrClosed) {
		return nil
	}
	return err
}

// handle serves native → Go requests.
func (t *Transport) handle(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	var args json.RawMessage
	if req.Params != nil {
		args = *req.Params
	}

	resp := t.bc.Serve(ctx, &protocol.Request{Method: req.Method, Args: args})
	if !resp.OK() {
		return nil, &jsonrpc2.Error{Code: rpcCode(resp.Code), Message: resp.Message}
	}
	if len(resp.Result) == 0 {
		return nil, nil
	}
	return resp.Result, nil
}

func isRPCError(err error) bool {
	_, ok := err.(*jsonrpc2.Error)
	return ok
}

// rpcCode maps a protocol error code to a JSON-RPC error code.
func rpcCode(code uint16) int64 {
	switch protocol.ErrorCode(code) {
	case protocol.ErrMethodNotFound:
		return jsonrpc2.CodeMethodNotFound
	case protocol.ErrInvalidRequest:
		return jsonrpc2.CodeInvalidParams
	default:
		return int64(code)
	}
}

// nativeCode maps a JSON-RPC error code from native to a bridge failure code.
// Codes outside the uint16 range are reported as server errors.
func nativeCode(code int64) uint16 {
	switch {
	case code == jsonrpc2.CodeMethodNotFound:
		return uint16(protocol.ErrMethodNotFound)
	case code == jsonrpc2.CodeInvalidParams, code == jsonrpc2.CodeInvalidRequest:
		return uint16(protocol.ErrInvalidRequest)
	case code < 0 || code > 0xFFFF:
		return uint16(protocol.ErrServerError)
	default:
		return uint16(code)
	}
}

// Stdio is the process's standard input and output as one stream.
type Stdio struct{}

func (Stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (Stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func (Stdio) Close() error {
	if err := os.Stdin.Close(); err != nil {
		os.Stdout.Close()
		return err
	}
	return os.Stdout.Close()
}
