// Command quotesync manages a local quote collection that synchronises with a
// remote posts authority.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/quotesync/config"
	"github.com/c0deZ3R0/quotesync/internal/app"
)

// cli carries the flags shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "quotesync",
		Short:         "Local-first quote collection with server sync",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if c.logLevel != "" {
				cfg.Logging.Level = c.logLevel
			}
			if cfg.Logging.File.Path == "" {
				cfg.Logging.Output = cmd.ErrOrStderr()
			}
			c.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML or JSON config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddGroup(
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "sync", Title: "Synchronisation:"},
	)
	root.AddCommand(
		newAddCmd(c),
		newListCmd(c),
		newRandomCmd(c),
		newImportCmd(c),
		newExportCmd(c),
		newSyncCmd(c),
		newRunCmd(c),
		newAutoSyncCmd(c),
		newConflictsCmd(c),
	)
	return root
}

// open builds the app for one command invocation.
func (c *cli) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, c.cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
