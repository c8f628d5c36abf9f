package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listOwner string

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List known tasks, newest first",
	Example: `  analysis-service list
  analysis-service list --owner user-7`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listOwner, "owner", "", "Only list tasks with this owner reference")
}

func runList(cmd *cobra.Command, args []string) error {
	endpoint := serverURL + "/tasks"
	if listOwner != "" {
		endpoint += "?owner_ref=" + url.QueryEscape(listOwner)
	}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("list request rejected (%d): %s", resp.StatusCode, string(payload))
	}

	var result struct {
		Count int `json:"count"`
		Tasks []struct {
			TaskID    string `json:"task_id"`
			Status    string `json:"status"`
			OwnerRef  string `json:"owner_ref,omitempty"`
			CreatedAt string `json:"created_at,omitempty"`
			UpdatedAt string `json:"updated_at,omitempty"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("unexpected response: %s", string(payload))
	}

	if result.Count == 0 {
		logger.Info().Msg("No tasks found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK ID\tSTATUS\tOWNER\tCREATED\tUPDATED")
	for _, t := range result.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.TaskID, t.Status, t.OwnerRef, t.CreatedAt, t.UpdatedAt)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d task(s)\n", result.Count)
	return nil
}
