package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/quotesync/synckit"
)

func newSyncCmd(c *cli) *cobra.Command {
	var keep string
	cmd := &cobra.Command{
		Use:     "sync",
		GroupID: "sync",
		Short:   "Fetch the server snapshot and merge it (server wins)",
		Long: `Fetch the server snapshot and merge it into the local collection.

On conflict the server copy is stored and the local copy is reported.
Pass --keep local to restore every local copy right away, or --keep server
to accept the server copies and clear the report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var choice *synckit.Choice
			if keep != "" {
				ch, err := synckit.ParseChoice(keep)
				if err != nil {
					return err
				}
				choice = &ch
			}

			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Library.Synchronize(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message())
			for _, cf := range res.Conflicts {
				fmt.Fprintf(out, "  conflict %s\n    local:  %q (%s)\n    server: %q (%s)\n",
					cf.ID, cf.Local.Text, cf.Local.Category, cf.Server.Text, cf.Server.Category)
			}
			if choice != nil && len(res.Conflicts) > 0 {
				n, err := a.Library.ResolveAll(ctx, *choice)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Resolved %d conflict(s): %s\n", n, choice)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keep, "keep", "", "resolve all conflicts after syncing: local or server")
	return cmd
}
