package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalArchive implements Archive on the local filesystem.
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a new local filesystem archive rooted at basePath.
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", basePath, err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

func (a *LocalArchive) Put(ctx context.Context, key string, content []byte, contentType string) error {
	fullPath := a.keyToPath(key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}
	return nil
}

func (a *LocalArchive) Get(ctx context.Context, key string) ([]byte, error) {
	content, err := os.ReadFile(a.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", key)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

func (a *LocalArchive) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(a.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

func (a *LocalArchive) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.Walk(a.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		key := a.pathToKey(path)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return keys, nil
}

// keyToPath converts a storage key to a filesystem path, preventing path
// traversal.
func (a *LocalArchive) keyToPath(key string) string {
	cleanKey := filepath.Clean(key)
	cleanKey = strings.TrimPrefix(cleanKey, "/")
	return filepath.Join(a.basePath, cleanKey)
}

func (a *LocalArchive) pathToKey(path string) string {
	relPath, err := filepath.Rel(a.basePath, path)
	if err != nil {
		return path
	}
	return strings.ReplaceAll(relPath, "\\", "/")
}
