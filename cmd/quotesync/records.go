package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/quotesync/quote"
)

func newAddCmd(c *cli) *cobra.Command {
	var category string
	var publish bool
	cmd := &cobra.Command{
		Use:     "add TEXT",
		GroupID: "records",
		Short:   "Add a local quote",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Library.Add(ctx, args[0], category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", r.ID)
			if publish {
				sent, err := a.Library.Publish(ctx, r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Published as %s\n", sent.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "quote category (required)")
	cmd.Flags().BoolVar(&publish, "publish", false, "also post the quote to the server")
	cmd.MarkFlagRequired("category")
	return cmd
}

func newListCmd(c *cli) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:     "list",
		GroupID: "records",
		Short:   "List quotes, optionally filtered by category",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			records := a.Library.ByCategory(category)
			printRecords(cmd.OutOrStdout(), records)
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No quotes.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", `category filter ("all" or empty lists everything)`)
	return cmd
}

func newRandomCmd(c *cli) *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:     "random",
		GroupID: "records",
		Short:   "Show a random quote",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.Library.Random(cmd.Context(), category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%q - %s\n", r.Text, r.Category)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	return cmd
}

func printRecords(w io.Writer, records []quote.Record) {
	for _, r := range records {
		fmt.Fprintf(w, "%-40s %-8s %-14s %s\n", r.ID, r.Source, r.Category, r.Text)
	}
}
