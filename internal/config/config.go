package config

import (
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vnative/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "vnative.yaml"

	// DefaultAddress is the default listen address of the host server.
	DefaultAddress = ":7070"

	// DefaultPath is the default WebSocket endpoint path.
	DefaultPath = "/ws"

	// DefaultDevkitAddress is the default listen address of the devkit server.
	DefaultDevkitAddress = ":7777"

	// DefaultLogStore is the default devkit log database, relative to the project.
	DefaultLogStore = "build/devkit.db"
)

// Config represents the complete vnative.yaml configuration.
type Config struct {
	// Name is the project name.
	Name string `yaml:"name,omitempty"`

	// Server configures the host server native peers connect to.
	Server ServerConfig `yaml:"server"`

	// Devkit configures the development side channel.
	Devkit DevkitConfig `yaml:"devkit"`

	// Log configures process logging.
	Log LogConfig `yaml:"log"`

	// Archive configures the exception archive bucket.
	Archive ArchiveConfig `yaml:"archive"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains host server settings.
type ServerConfig struct {
	// Address is the listen address (e.g. ":7070").
	Address string `yaml:"address,omitempty"`

	// Path is the WebSocket endpoint path.
	Path string `yaml:"path,omitempty"`

	// HandshakeTimeout bounds the wait for the ClientHello.
	HandshakeTimeout time.Duration `yaml:"handshakeTimeout,omitempty"`

	// HeartbeatInterval is the ping interval. Zero disables heartbeats.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval,omitempty"`

	// MaxSessions limits concurrent native contexts. Zero means unlimited.
	MaxSessions int `yaml:"maxSessions,omitempty"`

	// AuthToken, when set, must match the token sent in the ClientHello.
	AuthToken string `yaml:"authToken,omitempty"`
}

// DevkitConfig contains devkit settings.
type DevkitConfig struct {
	// Address is the devkit listen address.
	Address string `yaml:"address,omitempty"`

	// ProjectHome is the project directory; DEBUG writes build/context below it.
	ProjectHome string `yaml:"projectHome,omitempty"`

	// LogStore is the bbolt database that persists device logs.
	LogStore string `yaml:"logStore,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format is either text or json.
	Format string `yaml:"format,omitempty"`
}

// ArchiveConfig contains exception archive settings.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:           DefaultAddress,
			Path:              DefaultPath,
			HandshakeTimeout:  5 * time.Second,
			HeartbeatInterval: 30 * time.Second,
		},
		Devkit: DevkitConfig{
			Address:     DefaultDevkitAddress,
			ProjectHome: ".",
			LogStore:    DefaultLogStore,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Archive: ArchiveConfig{
			Region: "us-east-1",
			Prefix: "exceptions/",
		},
	}
}

// Load reads configuration from the specified file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.New("E162").
				WithDetail("No " + ConfigFileName + " found at " + path).
				WithSuggestion("Create " + ConfigFileName + " or omit --config to use defaults")
		}
		return nil, errors.New("E162").Wrap(err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E160").
			WithLocationFromError(path, err).
			Wrap(err).
			WithSuggestion("Check that " + ConfigFileName + " is valid YAML and durations look like 30s")
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromWorkingDir looks for vnative.yaml in the working directory and its
// parents. Defaults are returned when none is found.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, ok := FindProjectRoot(wd)
	if !ok {
		return Default(), nil
	}
	return Load(filepath.Join(root, ConfigFileName))
}

// FindProjectRoot walks up from startDir to the first directory containing
// vnative.yaml.
func FindProjectRoot(startDir string) (string, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// applyDefaults fills in default values for fields the file left empty.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.Address == "" {
		c.Server.Address = d.Server.Address
	}
	if c.Server.Path == "" {
		c.Server.Path = d.Server.Path
	}
	if c.Devkit.Address == "" {
		c.Devkit.Address = d.Devkit.Address
	}
	if c.Devkit.ProjectHome == "" {
		c.Devkit.ProjectHome = d.Devkit.ProjectHome
	}
	if c.Devkit.LogStore == "" {
		c.Devkit.LogStore = d.Devkit.LogStore
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Archive.Prefix == "" {
		c.Archive.Prefix = d.Archive.Prefix
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Server.Path, "/") {
		return c.invalid("server.path must start with /")
	}
	if c.Server.HandshakeTimeout < 0 || c.Server.HeartbeatInterval < 0 {
		return c.invalid("server durations must not be negative")
	}
	if c.Server.MaxSessions < 0 {
		return c.invalid("server.maxSessions must not be negative")
	}
	if _, ok := levels[strings.ToLower(c.Log.Level)]; !ok {
		return c.invalid("log.level must be one of debug, info, warn, error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return c.invalid("log.format must be text or json")
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return c.invalid("archive.bucket is required when the archive is enabled")
	}
	return nil
}

func (c *Config) invalid(detail string) error {
	err := errors.New("E161").WithDetail(detail)
	if c.configPath != "" {
		err.Location = &errors.Location{File: c.configPath}
	}
	return err
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	return levels[strings.ToLower(c.Log.Level)]
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file, or "." for defaults.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

// ProjectHome returns the devkit project home resolved against Dir.
func (c *Config) ProjectHome() string {
	return c.resolve(c.Devkit.ProjectHome)
}

// LogStorePath returns the devkit log database path resolved against Dir.
func (c *Config) LogStorePath() string {
	return c.resolve(c.Devkit.LogStore)
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}
