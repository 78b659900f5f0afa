package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore keeps blobs under a local directory that the router also serves
// as static assets.
type DiskStore struct {
	baseDir string
	baseURL string
}

func NewDiskStore(baseDir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, keyPrefix), 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", baseDir, err)
	}

	return &DiskStore{baseDir: baseDir, baseURL: baseURL}, nil
}

func (s *DiskStore) Store(ctx context.Context, r io.Reader, ext string) (string, error) {
	key, err := NewKey(ext)

	if err != nil {
		return "", err
	}

	full := filepath.Join(s.baseDir, filepath.FromSlash(key))

	f, err := os.Create(full)

	if err != nil {
		return "", fmt.Errorf("create %s: %w", key, err)
	}

	_, err = io.Copy(f, r)

	if err != nil {
		f.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("write %s: %w", key, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("close %s: %w", key, err)
	}

	return key, nil
}

func (s *DiskStore) Delete(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	// stored paths are always relative keys; refuse anything that escapes
	clean := filepath.Clean(filepath.FromSlash(path))

	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return fmt.Errorf("refusing to delete path outside store: %s", path)
	}

	err := os.Remove(filepath.Join(s.baseDir, clean))

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

func (s *DiskStore) PublicURL(path string) string {
	return joinURL(s.baseURL, path)
}
