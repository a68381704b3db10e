package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/vnative/pkg/bridge"
)

// SessionConfig holds configuration for individual sessions.
type SessionConfig struct {
	// Timeouts

	// ReadTimeout is the maximum time to wait for a frame from native.
	// Heartbeat pongs keep an idle connection alive.
	// Default: 90 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HandshakeTimeout is the maximum time for the initial handshake.
	// Default: 5 seconds.
	HandshakeTimeout time.Duration

	// HeartbeatInterval is the time between heartbeat pings. Zero disables
	// heartbeats.
	// Default: 30 seconds.
	HeartbeatInterval time.Duration

	// Limits

	// MaxMessageSize is the maximum size of an incoming WebSocket message.
	// Default: 16MB, the largest frame the protocol allows.
	MaxMessageSize int64
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() *SessionConfig {
	return &SessionConfig{
		ReadTimeout:       90 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  5 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    16 * 1024 * 1024,
	}
}

// Clone returns a copy of the SessionConfig.
func (c *SessionConfig) Clone() *SessionConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ServerConfig holds configuration for the HTTP/WebSocket server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":7070" or "localhost:7070").
	// Default: ":7070".
	Address string

	// Path is the WebSocket endpoint native peers connect to.
	// Default: "/ws".
	Path string

	// WebSocket buffer sizes

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin. Native peers
	// rarely send an Origin header.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool

	// SessionConfig is the configuration for individual sessions.
	// Default: DefaultSessionConfig().
	SessionConfig *SessionConfig

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// MaxSessions is the maximum number of concurrent sessions.
	// 0 means no limit.
	MaxSessions int

	// AuthToken, when set, must match the token in ClientHello.
	AuthToken string

	// DevkitAvailable advertises ServerFlagDevkit in ServerHello.
	DevkitAvailable bool

	// Observer is attached to every session's bridge context.
	Observer bridge.Observer

	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:         ":7070",
		Path:            "/ws",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
		SessionConfig:   DefaultSessionConfig(),
		ShutdownTimeout: 10 * time.Second,
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.SessionConfig != nil {
		clone.SessionConfig = c.SessionConfig.Clone()
	}
	return &clone
}

// WithAddress sets the server address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithSessionConfig sets the session configuration and returns the config for chaining.
func (c *ServerConfig) WithSessionConfig(sc *SessionConfig) *ServerConfig {
	c.SessionConfig = sc
	return c
}

// WithMaxSessions sets the maximum sessions and returns the config for chaining.
func (c *ServerConfig) WithMaxSessions(max int) *ServerConfig {
	c.MaxSessions = max
	return c
}

// WithAuthToken sets the handshake token and returns the config for chaining.
func (c *ServerConfig) WithAuthToken(token string) *ServerConfig {
	c.AuthToken = token
	return c
}

// withDefaults fills unset fields from DefaultServerConfig.
func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		return defaults
	}
	out := c.Clone()
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.Path == "" {
		out.Path = defaults.Path
	}
	if out.ReadBufferSize == 0 {
		out.ReadBufferSize = defaults.ReadBufferSize
	}
	if out.WriteBufferSize == 0 {
		out.WriteBufferSize = defaults.WriteBufferSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.SessionConfig == nil {
		out.SessionConfig = defaults.SessionConfig
	}
	sc := out.SessionConfig
	ds := defaults.SessionConfig
	if sc.ReadTimeout == 0 {
		sc.ReadTimeout = ds.ReadTimeout
	}
	if sc.WriteTimeout == 0 {
		sc.WriteTimeout = ds.WriteTimeout
	}
	if sc.HandshakeTimeout == 0 {
		sc.HandshakeTimeout = ds.HandshakeTimeout
	}
	if sc.MaxMessageSize == 0 {
		sc.MaxMessageSize = ds.MaxMessageSize
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = defaults.ShutdownTimeout
	}
	return out
}
