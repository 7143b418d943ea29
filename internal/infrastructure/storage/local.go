package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
)

// LocalStore writes receipts under a directory on disk.
type LocalStore struct {
	dir string
}

var _ receipt.Store = (*LocalStore)(nil)

// NewLocalStore creates the directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve receipt dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create receipt dir: %w", err)
	}
	return &LocalStore{dir: abs}, nil
}

// Put writes the file atomically and returns a file:// location.
func (s *LocalStore) Put(ctx context.Context, key string, pdf []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(target, s.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid receipt key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", fmt.Errorf("create receipt dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".receipt-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(pdf); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close receipt: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("rename receipt: %w", err)
	}

	return "file://" + filepath.ToSlash(target), nil
}
