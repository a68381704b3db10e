package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vnative/internal/config"
	"github.com/vango-dev/vnative/internal/errors"
	"github.com/vango-dev/vnative/pkg/devkit"
)

func logsCmd(flags *globalFlags) *cobra.Command {
	var (
		tail       int
		clearStore bool
		archived   bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show messages recorded by the devkit",
		Long: `Replay devkit messages from the log store.

The store is written by ` + "`vnative dev`" + `; stop the devkit first, since
the store can only be opened by one process at a time.

Examples:
  vnative logs
  vnative logs -n 200
  vnative logs --clear
  vnative logs --archived`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if archived {
				return listArchived(cmd.Context(), cfg)
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if clearStore {
				if err := store.Clear(); err != nil {
					return err
				}
				success("Cleared %s", store.Path())
				return nil
			}

			entries, err := store.Tail(tail)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				warn("No messages recorded in %s", store.Path())
				return nil
			}
			console := devkit.NewConsole(cmd.OutOrStdout())
			for _, e := range entries {
				printEntry(console, e)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "Number of most recent messages to show")
	cmd.Flags().BoolVar(&clearStore, "clear", false, "Delete all recorded messages")
	cmd.Flags().BoolVar(&archived, "archived", false, "List exception reports in the S3 archive instead")

	return cmd
}

// printEntry renders a stored message the way the devkit printed it live.
func printEntry(c *devkit.Console, e devkit.Entry) {
	m := e.Message()
	switch m.Cmd {
	case devkit.CmdLog:
		var d devkit.LogData
		if m.Decode(&d) == nil {
			c.LogAt(e.Time, e.Device, d)
		}
	case devkit.CmdException:
		var d devkit.ExceptionData
		if m.Decode(&d) == nil {
			c.Event("%s Device %d exception", e.Time.Format(devkit.TimeLayout), e.Device)
			c.Exception(e.Device, d)
		}
	case devkit.CmdDebug:
		var d devkit.DebugData
		if m.Decode(&d) == nil {
			c.Event("%s Device %d request debug, context %s", e.Time.Format(devkit.TimeLayout), e.Device, d.ContextID)
		}
	default:
		c.Event("%s Device %d %s", e.Time.Format(devkit.TimeLayout), e.Device, m.Cmd)
	}
}

func listArchived(ctx context.Context, cfg *config.Config) error {
	if !cfg.Archive.Enabled || cfg.Archive.Bucket == "" {
		return errors.New("E181").WithDetail("The exception archive is not configured.").
			WithSuggestion("Set archive.enabled and archive.bucket in " + config.ConfigFileName)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	a := devkit.NewS3Archive(devkit.NewS3Client(cfg.Archive.Region, cfg.Archive.Endpoint), cfg.Archive.Bucket, cfg.Archive.Prefix)
	keys, err := a.List(ctx)
	if err != nil {
		return errors.New("E181").Wrap(err)
	}
	for _, k := range keys {
		fmt.Fprintln(os.Stdout, k)
	}
	info("%d reports in s3://%s/%s", len(keys), cfg.Archive.Bucket, cfg.Archive.Prefix)
	return nil
}
