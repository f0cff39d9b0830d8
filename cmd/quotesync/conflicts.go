package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/c0deZ3R0/quotesync/synckit"
)

// Conflicts only exist inside a running engine, so this command talks to the
// control API of "quotesync run".
func newConflictsCmd(c *cli) *cobra.Command {
	var apiURL, resolve, id string
	cmd := &cobra.Command{
		Use:     "conflicts",
		GroupID: "sync",
		Short:   "List or resolve conflicts held by a running engine",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := apiURL
			if base == "" {
				base = "http://" + c.cfg.API.Listen
			}
			base = strings.TrimRight(base, "/")
			client := &http.Client{Timeout: 30 * time.Second}
			out := cmd.OutOrStdout()

			if resolve == "" {
				var conflicts []synckit.Conflict
				if err := callAPI(cmd, client, http.MethodGet, base+"/conflicts", &conflicts); err != nil {
					return err
				}
				if len(conflicts) == 0 {
					fmt.Fprintln(out, "No conflicts.")
				}
				for _, cf := range conflicts {
					fmt.Fprintf(out, "%s\n  local:  %q (%s)\n  server: %q (%s)\n",
						cf.ID, cf.Local.Text, cf.Local.Category, cf.Server.Text, cf.Server.Category)
				}
				return nil
			}

			choice, err := synckit.ParseChoice(resolve)
			if err != nil {
				return err
			}
			target := base + "/conflicts/resolve"
			if id != "" {
				target = base + "/conflicts/" + url.PathEscape(id) + "/resolve"
			}
			target += "?choice=" + url.QueryEscape(choice.String())

			var res struct {
				Resolved int `json:"resolved"`
			}
			if err := callAPI(cmd, client, http.MethodPost, target, &res); err != nil {
				return err
			}
			fmt.Fprintf(out, "Resolved %d conflict(s): %s\n", res.Resolved, choice)
			return nil
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "", "control API base URL (default: http://<api.listen>)")
	cmd.Flags().StringVar(&resolve, "resolve", "", "resolve with keep_local or keep_server")
	cmd.Flags().StringVar(&id, "id", "", "resolve only this conflict")
	return cmd
}

func callAPI(cmd *cobra.Command, client *http.Client, method, target string, v interface{}) error {
	req, err := http.NewRequestWithContext(cmd.Context(), method, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("control API unreachable (is \"quotesync run\" running?): %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			return fmt.Errorf("%s (status %d)", e.Message, resp.StatusCode)
		}
		return fmt.Errorf("control API returned status %d", resp.StatusCode)
	}
	return json.Unmarshal(body, v)
}
