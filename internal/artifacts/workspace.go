// Package artifacts manages task-scoped transient storage: the scratch
// directory a task's upload and extracted waveform live in while the task is
// processing. Each task owns exactly one directory under the workspace root;
// cleanup removes that directory and nothing else.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitize reduces a caller-supplied name to a safe path component.
func sanitize(name string) string {
	name = filepath.Base(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "_"
	}
	return name
}

// Workspace is the filesystem root for transient task artifacts.
type Workspace struct {
	root string
}

// NewWorkspace creates the workspace root if needed.
func NewWorkspace(root string) (*Workspace, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory %s: %w", root, err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string {
	return w.root
}

// TaskDir returns the scratch directory for a task. The task id is part of
// the path, so artifacts of different tasks can never collide.
func (w *Workspace) TaskDir(taskID string) string {
	return filepath.Join(w.root, "tasks", sanitize(taskID))
}

// SaveUpload writes an uploaded file into the task's scratch directory and
// returns its path.
func (w *Workspace) SaveUpload(taskID, filename string, src io.Reader) (string, error) {
	dir := w.TaskDir(taskID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create task directory: %w", err)
	}

	path := filepath.Join(dir, sanitize(filename))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	return path, nil
}

// Size returns the byte size of an artifact, or an error if it does not
// exist or is not a regular file.
func (w *Workspace) Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("artifact %s is a directory", filepath.Base(path))
	}
	return info.Size(), nil
}

// Exists reports whether an artifact exists at path.
func (w *Workspace) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Cleanup removes the task's entire scratch directory. Calling it for a task
// with no scratch directory is a no-op, not an error. It refuses paths that
// would escape the workspace root.
func (w *Workspace) Cleanup(taskID string) error {
	dir := w.TaskDir(taskID)
	if !strings.HasPrefix(dir, filepath.Join(w.root, "tasks")) {
		return fmt.Errorf("refusing to remove path outside workspace: %s", dir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove task directory: %w", err)
	}
	return nil
}

// TaskIDs lists the task ids that currently have scratch directories.
func (w *Workspace) TaskIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(w.root, "tasks"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list task directories: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
