package kv

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one file per namespace inside a data directory.
// Writes go to a temporary file that is renamed over the target, so a crash
// mid-write leaves the previous value intact.
type FileStore struct {
	dir             string
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// NewFileStore creates a FileStore rooted at dir.
// If dir is empty, uses an OS-appropriate tmp directory.
func NewFileStore(dir string, filePermissions, dirPermissions os.FileMode) (*FileStore, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "mandinetra")
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Clean up any stale temp files from previous crashes
	stale, _ := filepath.Glob(filepath.Join(dir, "*.json.tmp"))
	for _, p := range stale {
		_ = os.Remove(p)
	}

	return &FileStore{
		dir:             dir,
		filePermissions: filePermissions,
		dirPermissions:  dirPermissions,
	}, nil
}

// Dir returns the data directory.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) path(namespace string) string {
	return filepath.Join(f.dir, sanitize(namespace)+".json")
}

// sanitize keeps namespaces from escaping the data directory.
func sanitize(namespace string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, namespace)
}

// Get implements Store.
func (f *FileStore) Get(ctx context.Context, namespace string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(f.path(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), true, nil
}

// Set implements Store.
func (f *FileStore) Set(ctx context.Context, namespace, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := f.path(namespace)

	// Write to temporary file first (atomic write)
	tempPath := target + ".tmp"
	if err := os.WriteFile(tempPath, []byte(value), f.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	// Rename temp file to actual file
	if err := os.Rename(tempPath, target); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

// Close implements Backend.
func (f *FileStore) Close() error {
	return nil
}
