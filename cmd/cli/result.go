package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

var resultOutput string

// resultCmd represents the result command
var resultCmd = &cobra.Command{
	Use:   "result <task-id>",
	Short: "Fetch the analysis result of a completed task",
	Example: `  analysis-service result session-42
  analysis-service result session-42 --output result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runResult,
}

func init() {
	rootCmd.AddCommand(resultCmd)

	resultCmd.Flags().StringVarP(&resultOutput, "output", "o", "", "Write the result JSON to a file instead of stdout")
}

func runResult(cmd *cobra.Command, args []string) error {
	taskID := args[0]

	url := fmt.Sprintf("%s/tasks/%s/result", serverURL, taskID)
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("result request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusAccepted:
		var st taskStatus
		if err := json.Unmarshal(payload, &st); err == nil {
			return fmt.Errorf("task %s is not finished yet (status: %s)", taskID, st.Status)
		}
		return fmt.Errorf("task %s is not finished yet", taskID)
	case http.StatusNotFound:
		return fmt.Errorf("no results available for task %s", taskID)
	default:
		return fmt.Errorf("result request rejected (%d): %s", resp.StatusCode, string(payload))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		pretty.Write(payload)
	}

	if resultOutput != "" {
		if err := os.WriteFile(resultOutput, pretty.Bytes(), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", resultOutput, err)
		}
		logger.Info().Str("task_id", taskID).Str("file", resultOutput).Msg("Result written")
		return nil
	}

	fmt.Println(pretty.String())
	return nil
}
