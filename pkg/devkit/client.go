package devkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClientClosed is returned when sending on a closed Client.
var ErrClientClosed = errors.New("devkit: client closed")

// Client reports to a devkit server from a device.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	done    chan struct{}

	switchMu sync.Mutex
	onSwitch func(contextID string)
}

// Dial connects to the devkit server at url, e.g. "ws://192.168.1.20:7777/".
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("devkit: dial %s: %w", url, err)
	}
	c := &Client{
		conn:   conn,
		logger: slog.Default().With("component", "devkit-client"),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// OnSwitchToDebug sets the callback run when a debugger attaches.
func (c *Client) OnSwitchToDebug(fn func(contextID string)) {
	c.switchMu.Lock()
	c.onSwitch = fn
	c.switchMu.Unlock()
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Send writes one message.
func (c *Client) Send(m Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteJSON(m); err != nil {
		return fmt.Errorf("devkit: send %s: %w", m.Cmd, err)
	}
	return nil
}

func (c *Client) send(cmd Command, data any) error {
	m, err := NewMessage(cmd, data)
	if err != nil {
		return err
	}
	return c.Send(m)
}

// Debug asks the devkit to debug contextID.
func (c *Client) Debug(contextID, source string) error {
	return c.send(CmdDebug, DebugData{ContextID: contextID, Source: source})
}

// Exception reports an exception raised in source.
func (c *Client) Exception(source, exception string) error {
	return c.send(CmdException, ExceptionData{Source: source, Exception: exception})
}

// Log sends one log line.
func (c *Client) Log(t LogType, message string) error {
	return c.send(CmdLog, LogData{Type: t, Message: message})
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			c.logger.Warn("malformed devkit message", "error", err)
			continue
		}
		if m.Cmd != CmdSwitchToDebug {
			continue
		}
		c.switchMu.Lock()
		fn := c.onSwitch
		c.switchMu.Unlock()
		if fn != nil {
			fn(m.ContextID)
		}
	}
}
