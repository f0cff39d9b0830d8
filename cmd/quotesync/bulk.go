package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/quotesync/bulk"
)

func newImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "import FILE",
		GroupID: "records",
		Short:   "Import quotes from a JSON array file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := bulk.Decode(f, time.Now().UTC())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Library.Import(ctx, records)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d quotes\n", n)
			return nil
		},
	}
}

func newExportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "export [FILE]",
		GroupID: "records",
		Short:   "Export quotes as a JSON array (stdout when FILE is omitted)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				return bulk.Encode(cmd.OutOrStdout(), a.Library.Export())
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := bulk.Encode(f, a.Library.Export()); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
}
