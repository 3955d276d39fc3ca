package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store persists artifacts under a public static root, addressed by slash-separated relative paths.
type Store interface {
	Put(ctx context.Context, relPath string, r io.Reader) (int64, error)
	RemoveAll(ctx context.Context, relDir string) error
	Root() string
}

// ErrUnsafePath rejects relative paths that would escape the store root.
var ErrUnsafePath = errors.New("path escapes storage root")

// LocalStore writes files beneath a directory on the local filesystem.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o775); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Root returns the absolute root directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Put writes r to relPath atomically: the data lands in a temp file in the target
// directory, is synced, then renamed into place.
func (s *LocalStore) Put(ctx context.Context, relPath string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	full, err := s.resolve(relPath)
	if err != nil {
		return 0, err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, fmt.Errorf("chmod file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return 0, fmt.Errorf("rename file: %w", err)
	}
	committed = true
	return n, nil
}

// RemoveAll deletes relDir and everything under it. Missing directories are not an error.
func (s *LocalStore) RemoveAll(_ context.Context, relDir string) error {
	full, err := s.resolve(relDir)
	if err != nil {
		return err
	}
	if full == s.root {
		return ErrUnsafePath
	}
	return os.RemoveAll(full)
}

func (s *LocalStore) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(relPath, "/")))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", ErrUnsafePath
	}
	return filepath.Join(s.root, cleaned), nil
}
