package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vnative/internal/config"
	"github.com/vango-dev/vnative/internal/demo"
	"github.com/vango-dev/vnative/internal/errors"
	"github.com/vango-dev/vnative/pkg/bridge"
	"github.com/vango-dev/vnative/pkg/devkit"
	"github.com/vango-dev/vnative/pkg/middleware"
	"github.com/vango-dev/vnative/pkg/server"
)

// observability selects the bridge observers a command attaches.
type observability struct {
	metrics bool
	tracing bool
}

func (o *observability) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.metrics, "metrics", true, "Collect Prometheus metrics")
	cmd.Flags().BoolVar(&o.tracing, "tracing", false, "Emit OpenTelemetry spans through the global tracer provider")
}

// observers builds the configured observers. m is nil when metrics are off.
func (o *observability) observers() (bridge.Observer, *middleware.Metrics) {
	var (
		obs []bridge.Observer
		m   *middleware.Metrics
	)
	if o.metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = middleware.Prometheus(middleware.WithRegistry(reg))
		obs = append(obs, m)
	}
	if o.tracing {
		obs = append(obs, middleware.OpenTelemetry(middleware.WithTracerName("vnative")))
	}
	if len(obs) == 0 {
		return nil, nil
	}
	return bridge.Observers(obs...), m
}

// devkitLogger adds a devkit relay to logger when url is set. The returned
// client is nil without a relay.
func devkitLogger(ctx context.Context, logger *slog.Logger, url string) (*slog.Logger, *devkit.Client, error) {
	if url == "" {
		return logger, nil, nil
	}
	dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client, err := devkit.Dial(dctx, url)
	if err != nil {
		return nil, nil, err
	}
	relay := devkit.NewHandler(client, &devkit.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(teeHandler{logger.Handler(), relay}), client, nil
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var (
		address   string
		path      string
		token     string
		maxSess   int
		devkitURL string
		obs       observability
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo app to native hosts over WebSocket",
		Long: `Start the host server native peers connect to.

Each connection performs the vnative handshake and gets its own
session running the demo app: a 50-item list rendered in windows
of 15 with a load-more row.

Routes:
  /ws        native WebSocket endpoint (server.path)
  /healthz   liveness probe
  /metrics   Prometheus metrics (unless --metrics=false)

Examples:
  vnative serve
  vnative serve --addr=:9000 --token=secret
  vnative serve --devkit=ws://localhost:7777/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if path != "" {
				cfg.Server.Path = path
			}
			if token != "" {
				cfg.Server.AuthToken = token
			}
			if maxSess > 0 {
				cfg.Server.MaxSessions = maxSess
			}
			return runServe(cmd.Context(), cfg, devkitURL, obs)
		},
	}

	cmd.Flags().StringVarP(&address, "addr", "a", "", "Address to listen on (default from "+config.ConfigFileName+")")
	cmd.Flags().StringVar(&path, "path", "", "WebSocket path (default from "+config.ConfigFileName+")")
	cmd.Flags().StringVar(&token, "token", "", "Token native peers must present in the handshake")
	cmd.Flags().IntVar(&maxSess, "max-sessions", 0, "Maximum concurrent sessions (0 = unlimited)")
	cmd.Flags().StringVar(&devkitURL, "devkit", "", "Relay logs to the devkit at this WebSocket URL")
	obs.register(cmd)

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, devkitURL string, obs observability) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, client, err := devkitLogger(ctx, newLogger(cfg, os.Stderr), devkitURL)
	if err != nil {
		return errors.New("E182").Wrap(err).
			WithSuggestion("Start the devkit with `vnative dev` or drop --devkit")
	}
	if client != nil {
		defer client.Close()
	}

	observer, metrics := obs.observers()

	sc := server.DefaultServerConfig()
	sc.Address = cfg.Server.Address
	sc.Path = cfg.Server.Path
	sc.AuthToken = cfg.Server.AuthToken
	sc.MaxSessions = cfg.Server.MaxSessions
	sc.SessionConfig.HandshakeTimeout = cfg.Server.HandshakeTimeout
	sc.SessionConfig.HeartbeatInterval = cfg.Server.HeartbeatInterval
	sc.DevkitAvailable = client != nil
	sc.Observer = observer
	sc.Logger = logger
	if metrics != nil {
		sc.MetricsHandler = metrics.Handler()
	}

	srv := server.New(sc)
	if metrics != nil {
		srv.Sessions().SetOnSessionCreate(func(*server.Session) { metrics.SessionOpened() })
		srv.Sessions().SetOnSessionClose(func(*server.Session) { metrics.SessionClosed() })
		srv.Sessions().Collector().SetOnError(metrics.RecordWebSocketError)
	}

	app := demo.New(demo.Config{Logger: logger})
	srv.SetApp(func(s *server.Session) {
		app.Attach(s.Bridge())
	})

	success("Serving on %s%s", sc.Address, sc.Path)
	if client != nil {
		info("Relaying logs to %s", devkitURL)
	}
	fmt.Println()

	if err := srv.Run(); err != nil {
		if stderrors.Is(err, syscall.EADDRINUSE) {
			return errors.New("E200").WithDetail(sc.Address + " is already in use").
				Wrap(err).WithSuggestion("Pick another address with --addr")
		}
		return err
	}
	return nil
}
