package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var statusPollInterval time.Duration

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the current state of a task",
	Example: `  analysis-service status session-42
  analysis-service status session-42 --watch 2s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().DurationVar(&statusPollInterval, "watch", 0, "Poll at this interval until the task is terminal")
}

func runStatus(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	if statusPollInterval > 0 {
		return waitForTerminal(taskID)
	}

	st, err := fetchStatus(taskID)
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

type taskStatus struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func fetchStatus(taskID string) (*taskStatus, error) {
	url := fmt.Sprintf("%s/tasks/%s/status", serverURL, taskID)
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("task %s not found", taskID)
	default:
		return nil, fmt.Errorf("status request rejected (%d): %s", resp.StatusCode, string(payload))
	}

	var st taskStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("unexpected response: %s", string(payload))
	}
	return &st, nil
}

func printStatus(st *taskStatus) {
	evt := logger.Info().Str("task_id", st.TaskID).Str("status", st.Status)
	if st.Error != "" {
		evt = evt.Str("error", st.Error)
	}
	evt.Msg("Task status")
}

// waitForTerminal polls the status endpoint until the task completes or fails.
func waitForTerminal(taskID string) error {
	interval := statusPollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	for {
		st, err := fetchStatus(taskID)
		if err != nil {
			return err
		}
		printStatus(st)

		if st.Status == "completed" || st.Status == "failed" {
			if st.Status == "failed" {
				return fmt.Errorf("task %s failed: %s", taskID, st.Error)
			}
			return nil
		}
		time.Sleep(interval)
	}
}
