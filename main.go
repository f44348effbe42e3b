// main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"grants/dataloader/appcontext"
	"grants/dataloader/config"
	"grants/dataloader/ingest"
	"grants/dataloader/synthetic"
)

const defaultStatusLimit = 10

var errSyncFailed = errors.New("grants sync failed")

// app holds what the subcommands share once the root command has run.
type app struct {
	cfg  *config.Config
	sink *ingest.Sink
	out  io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Results go to out and logs to logOut.
func newRootCmd(out, logOut io.Writer) *cobra.Command {
	a := &app{out: out}
	var envFiles []string

	root := &cobra.Command{
		Use:   "dataloader",
		Short: "Load grants.gov opportunity extracts into the grants store",
		Long: `dataloader downloads the newest grants.gov XML extract, keeps the
opportunities open to nonprofits and upserts them into the configured store.

Configuration is read from the environment and from .env files.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return err
			}

			bootstrap := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
			a.cfg = config.LoadConfig(cmd.Context(), bootstrap)

			logger := appcontext.NewLogger(logOut, a.cfg.LogLevel, a.cfg.LogFormat)
			cmd.SetContext(appcontext.WithLogger(cmd.Context(), logger))
			a.sink = ingest.NewSink(ingest.SinkDependencies{Config: a.cfg})
			return nil
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Env files to load (default: .env when present)")

	root.AddCommand(a.syncCmd())
	root.AddCommand(a.cleanupCmd())
	root.AddCommand(a.filesCmd())
	root.AddCommand(a.statusCmd())
	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.generateCmd())

	return root
}

// syncCmd runs one sync and prints its result.
func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Ingest the newest unprocessed extract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := a.sink.Sync(cmd.Context())
			if err := a.printJSON(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("%w: %s", errSyncFailed, result.ErrorMessage)
			}
			return nil
		},
	}
}

func (a *app) cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete grants whose close date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.sink.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(map[string]int64{"recordsDeleted": deleted})
		},
	}
}

func (a *app) filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List the available extracts and whether each was ingested",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := a.sink.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(files)
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the grant count and recent syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := a.sink.Status(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.printJSON(status)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", defaultStatusLimit, "Number of recent syncs to show (0 for all)")
	return cmd
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the store tables and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sink.Migrate(cmd.Context()); err != nil {
				return err
			}
			appcontext.LoggerFromContext(cmd.Context()).InfoContext(cmd.Context(), "Store schema is up to date",
				"driver", a.cfg.StoreDriver)
			return nil
		},
	}
}

// generateCmd writes a synthetic extract and listing page. Flags left unset
// fall back to the configured values.
func (a *app) generateCmd() *cobra.Command {
	var (
		rows int
		dir  string
	)
	cmd := &cobra.Command{
		Use:   "generate-synthetic-data",
		Short: "Write a synthetic extract archive and listing page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("rows") {
				rows = a.cfg.SyntheticDataRows
			}
			if !cmd.Flags().Changed("dir") {
				dir = a.cfg.SyntheticDataDir
			}

			logger := appcontext.LoggerFromContext(cmd.Context())
			logger.InfoContext(cmd.Context(), "Generating synthetic data", "rows", rows, "dir", dir)
			if err := synthetic.GenerateSyntheticData(rows, dir); err != nil {
				return fmt.Errorf("failed to generate synthetic data: %w", err)
			}
			logger.InfoContext(cmd.Context(), "Synthetic data generated successfully")
			return nil
		},
	}
	cmd.Flags().IntVar(&rows, "rows", 0, "Number of opportunities to generate (default: SYNTHETIC_DATA_ROWS)")
	cmd.Flags().StringVar(&dir, "dir", "", "Directory to write synthetic data to (default: SYNTHETIC_DATA_DIR)")
	return cmd
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
