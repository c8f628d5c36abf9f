package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	submitOwner string
	submitWait  bool
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit <task-id> <file>",
	Short: "Submit a recording for analysis",
	Long: `Upload an audio or video file under the given task identifier. The
service normalizes video uploads to mono 16kHz WAV before analysis runs.
Submitting an identifier that already exists does not restart the stored
task.`,
	Example: `  analysis-service submit session-42 recording.wav
  analysis-service submit session-42 clip.mp4 --owner user-7
  analysis-service submit session-42 recording.wav --wait`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVar(&submitOwner, "owner", "", "Owner reference to attach to the task")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Poll until the task reaches a terminal state")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	taskID, path := args[0], args[1]

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if submitOwner != "" {
		if err := writer.WriteField("owner_ref", submitOwner); err != nil {
			return fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to build upload: %w", err)
	}

	url := fmt.Sprintf("%s/tasks/%s", serverURL, taskID)
	req, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("submit request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("submit rejected (%d): %s", resp.StatusCode, string(payload))
	}

	var result struct {
		TaskID  string `json:"task_id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("unexpected response: %s", string(payload))
	}

	logger.Info().Str("task_id", result.TaskID).Msg(result.Message)

	if submitWait {
		return waitForTerminal(taskID)
	}
	return nil
}
