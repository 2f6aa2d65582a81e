package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Blobs stores files by key. Keys are slash separated and relative to the
// storage root, "<user id>/<relative path>".
type Blobs interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, key string) error
}

var _ Blobs = (*LocalBlobs)(nil)

// LocalBlobs writes blobs under a directory on disk.
type LocalBlobs struct {
	root string
}

func NewLocalBlobs(root string) *LocalBlobs {
	return &LocalBlobs{root: filepath.Clean(root)}
}

func (l *LocalBlobs) path(key string) (string, error) {
	cleaned, err := CleanRelative(key)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidPath)
	}
	return filepath.Join(l.root, filepath.FromSlash(cleaned)), nil
}

func (l *LocalBlobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".blob-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}

func (l *LocalBlobs) Remove(ctx context.Context, key string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
