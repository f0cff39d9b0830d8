package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newAutoSyncCmd(c *cli) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:       "autosync [on|off]",
		GroupID:   "sync",
		Short:     "Show or change the stored auto sync flag",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if interval == 0 {
				interval = c.cfg.Sync.Interval.Std()
			}
			if len(args) == 1 {
				if err := a.Library.SetAutoSync(ctx, args[0] == "on", interval); err != nil {
					return err
				}
			}
			enabled, err := a.Library.AutoSync(ctx)
			if err != nil {
				return err
			}
			state := "off"
			if enabled {
				state = "on"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Auto sync is %s (interval %s)\n", state, interval)
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "sync interval (default: sync.interval)")
	return cmd
}
