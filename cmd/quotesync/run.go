package main

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/quotesync/config"
)

func newRunCmd(c *cli) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "sync",
		Short:   "Run the sync engine with its control API until interrupted",
		Long: `Run the sync engine in the foreground.

The control API serves records, conflicts, auto sync settings, metrics and an
event stream. When --config is given the file is watched and log level and
auto sync changes are applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if listen == "" {
				listen = c.cfg.API.Listen
			}
			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return err
			}

			if c.configPath != "" {
				w, err := config.NewWatcher(c.configPath, c.cfg, 0, a.Logger.Logger)
				if err != nil {
					ln.Close()
					return err
				}
				defer w.Close()
				w.OnChange(func(old, next *config.Config) {
					a.ApplyConfig(ctx, old, next)
				})
			}

			return a.Serve(ctx, ln)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "control API address (default: api.listen)")
	return cmd
}
