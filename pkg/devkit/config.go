package devkit

import (
	"log/slog"
	"net/http"
	"os"
	"time"
)

// ServerConfig holds configuration for the devkit server.
type ServerConfig struct {
	// Address is the address to listen on.
	// Default: ":7777".
	Address string

	// ProjectHome is the project root; the debugging context id is written to
	// <ProjectHome>/build/context.
	// Default: ".".
	ProjectHome string

	// Store receives every message. Nil disables persistence.
	Store *LogStore

	// Archive receives every exception report. Nil disables archiving.
	Archive Archive

	// ArchiveTimeout bounds a single archive upload.
	// Default: 10 seconds.
	ArchiveTimeout time.Duration

	// Console prints traffic for the developer.
	// Default: NewConsole(os.Stdout).
	Console *Console

	// CheckOrigin validates the request origin.
	// Default: allows all origins.
	CheckOrigin func(r *http.Request) bool

	// OnMessage, when set, is called after each message has been handled.
	OnMessage func(device int, m Message)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:        ":7777",
		ProjectHome:    ".",
		ArchiveTimeout: 10 * time.Second,
		CheckOrigin:    func(*http.Request) bool { return true },
	}
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

func (c *ServerConfig) withDefaults() *ServerConfig {
	defaults := DefaultServerConfig()
	if c == nil {
		c = defaults
	}
	out := c.Clone()
	if out.Address == "" {
		out.Address = defaults.Address
	}
	if out.ProjectHome == "" {
		out.ProjectHome = defaults.ProjectHome
	}
	if out.ArchiveTimeout == 0 {
		out.ArchiveTimeout = defaults.ArchiveTimeout
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = defaults.CheckOrigin
	}
	if out.Console == nil {
		out.Console = NewConsole(os.Stdout)
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}
