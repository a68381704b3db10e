package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vnative/internal/config"
	"github.com/vango-dev/vnative/internal/errors"
	"github.com/vango-dev/vnative/pkg/devkit"
)

func devCmd(flags *globalFlags) *cobra.Command {
	var (
		address     string
		projectHome string
		noStore     bool
		archive     bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the devkit server",
		Long: `Start the devkit devices report to during development.

Devices connect over WebSocket and send log lines and exceptions,
which are printed here and saved to the devkit log store. A device
that enters debugging has its context id written to
<projectHome>/build/context; a debugger connecting from localhost
switches that device into debug mode.

Exceptions are uploaded to S3 when the archive is enabled in
` + config.ConfigFileName + ` or with --archive.

Examples:
  vnative dev
  vnative dev --addr=:7778 --project-home=./app
  vnative dev --archive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Devkit.Address = address
			}
			if projectHome != "" {
				cfg.Devkit.ProjectHome = projectHome
			}
			if archive {
				cfg.Archive.Enabled = true
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runDev(cmd.Context(), cfg, !noStore)
		},
	}

	cmd.Flags().StringVarP(&address, "addr", "a", "", "Address to listen on (default from "+config.ConfigFileName+")")
	cmd.Flags().StringVar(&projectHome, "project-home", "", "Project root the context file is written under")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not save messages to the log store")
	cmd.Flags().BoolVar(&archive, "archive", false, "Upload exceptions to the configured S3 bucket")

	return cmd
}

func runDev(ctx context.Context, cfg *config.Config, persist bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg, os.Stderr)
	sc := &devkit.ServerConfig{
		Address:     cfg.Devkit.Address,
		ProjectHome: cfg.ProjectHome(),
		Logger:      logger,
	}

	if persist {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		sc.Store = store
	}

	if cfg.Archive.Enabled {
		client := devkit.NewS3Client(cfg.Archive.Region, cfg.Archive.Endpoint)
		sc.Archive = devkit.NewS3Archive(client, cfg.Archive.Bucket, cfg.Archive.Prefix)
	}

	success("Devkit listening on %s", sc.Address)
	info("Project home: %s", sc.ProjectHome)
	if sc.Store != nil {
		info("Log store:    %s", sc.Store.Path())
	}
	if sc.Archive != nil {
		info("Archive:      s3://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)
	}
	fmt.Println()

	if err := devkit.NewServer(sc).ListenAndServe(ctx); err != nil {
		if stderrors.Is(err, syscall.EADDRINUSE) {
			return errors.New("E200").WithDetail(sc.Address + " is already in use").
				Wrap(err).WithSuggestion("Pick another address with --addr")
		}
		return err
	}
	return nil
}

// openStore opens the devkit log store, explaining the usual lock conflict.
func openStore(cfg *config.Config) (*devkit.LogStore, error) {
	store, err := devkit.OpenLogStore(cfg.LogStorePath())
	if err != nil {
		return nil, errors.New("E180").Wrap(err).
			WithDetail("Could not open " + cfg.LogStorePath()).
			WithSuggestion("Another vnative process may hold the store; stop it or pass --no-store")
	}
	return store, nil
}
