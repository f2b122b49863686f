package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

func invalidateCmd() *cobra.Command {
	var (
		server string
		key    string
		tag    string
	)

	cmd := &cobra.Command{
		Use:   "invalidate",
		Short: "Evict cached entries on a running server",
		Long: `Send an invalidation signal to a running server. Entries can be
evicted by exact key or by tag; dependents of evicted entries are
evicted transitively.

Examples:
  strata invalidate --tag products
  strata invalidate --key "catalog.page:00000000deadbeef" --server http://prod:4400`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if key == "" && tag == "" {
				return fmt.Errorf("either --key or --tag is required")
			}

			body, err := json.Marshal(map[string]string{"key": key, "tag": tag})
			if err != nil {
				return err
			}
			client := &http.Client{Timeout: 10 * time.Second}
			resp, err := client.Post(server+"/invalidate", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("contacting server: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				msg, _ := io.ReadAll(resp.Body)
				return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
			}
			var out struct {
				Removed int `json:"removed"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			success("evicted %d entries", out.Removed)
			return nil
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:4400", "Server base URL")
	cmd.Flags().StringVar(&key, "key", "", "Exact cache key to evict")
	cmd.Flags().StringVar(&tag, "tag", "", "Evict every entry carrying this tag")

	return cmd
}
