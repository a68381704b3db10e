package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vnative/internal/demo"
	"github.com/vango-dev/vnative/pkg/transport/stream"
)

func stdioCmd(flags *globalFlags) *cobra.Command {
	var (
		logMessages bool
		metricsAddr string
		obs         observability
	)

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve the demo app over stdin/stdout",
		Long: `Run one bridge context over standard input and output.

Native hosts that embed vnative as a child process speak JSON-RPC 2.0
with Content-Length framing on the child's stdin and stdout. Logs go
to stderr so they never mix with protocol traffic.

Examples:
  vnative stdio
  vnative stdio --log-messages --log-level=debug
  vnative stdio --metrics-addr=localhost:9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, os.Stderr)
			obs.metrics = metricsAddr != ""
			observer, metrics := obs.observers()
			if metrics != nil {
				go func() {
					logger.Info("serving metrics", "address", metricsAddr)
					if err := http.ListenAndServe(metricsAddr, metrics.Handler()); err != nil {
						logger.Error("metrics server stopped", "error", err)
					}
				}()
			}

			tr := stream.New(stream.Stdio{}, stream.Config{
				Observer:    observer,
				LogMessages: logMessages,
				Logger:      logger,
			})
			demo.New(demo.Config{Logger: logger}).Attach(tr.Bridge())

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sig)

			select {
			case <-tr.Done():
			case <-sig:
				logger.Info("interrupted")
			}
			return tr.Close()
		},
	}

	cmd.Flags().BoolVar(&logMessages, "log-messages", false, "Log every JSON-RPC message at debug level")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&obs.tracing, "tracing", false, "Emit OpenTelemetry spans through the global tracer provider")

	return cmd
}
