package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps blobs on the local filesystem under a base directory.
type Storage struct {
	basePath string
}

// NewStorage creates a Storage rooted at basePath.
func NewStorage(basePath string) *Storage {
	return &Storage{basePath: basePath}
}

// Save writes src to subdir/filename and returns the path relative to the base.
func (s *Storage) Save(ctx context.Context, subdir, filename string, src io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := filepath.Join(subdir, filepath.Base(filename))
	dstPath, err := s.resolve(rel)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dstPath), err)
	}

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file %s: %w", dstPath, err)
	}

	return rel, nil
}

// Delete removes the blob at path and any directory left empty by it.
func (s *Storage) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	// best effort: only succeeds when empty
	_ = os.Remove(filepath.Dir(full))

	return nil
}

// resolve joins path onto the base directory and refuses to escape it.
func (s *Storage) resolve(path string) (string, error) {
	full := filepath.Join(s.basePath, path)
	base := filepath.Clean(s.basePath)
	if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}
