package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// BlobStorage persists uploaded media under a relative name and returns the
// public location where it can be fetched afterwards.
type BlobStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// LocalStorage writes media beneath a root directory on the local filesystem.
// Subdirectories are created lazily; creation is idempotent so it is safe to
// call on every startup and on every save.
type LocalStorage struct {
	root      string
	urlPrefix string
}

// NewLocalStorage constructs a filesystem store rooted at root. Saved files
// are reported under urlPrefix, which is where the HTTP layer serves them.
func NewLocalStorage(root, urlPrefix string) *LocalStorage {
	return &LocalStorage{root: root, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}
}

// Root returns the directory media is written beneath.
func (s *LocalStorage) Root() string {
	return s.root
}

// Save streams the content to disk and returns its public URL path.
func (s *LocalStorage) Save(_ context.Context, name string, r io.Reader) (string, error) {
	rel := filepath.FromSlash(strings.TrimLeft(name, "/"))
	if rel == "" {
		return "", fmt.Errorf("local storage: empty name")
	}

	dest := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create media directory: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create media file %s: %w", rel, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("write media file %s: %w", rel, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("close media file %s: %w", rel, err)
	}

	return path.Join(s.urlPrefix, filepath.ToSlash(rel)), nil
}

// Remove deletes a previously saved file. Missing files are not an error.
func (s *LocalStorage) Remove(name string) error {
	rel := filepath.FromSlash(strings.TrimLeft(name, "/"))
	if rel == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.root, rel)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove media file %s: %w", rel, err)
	}
	return nil
}

// Open reads back a previously saved file, for offloading to an object store.
func (s *LocalStorage) Open(name string) (io.ReadCloser, error) {
	rel := filepath.FromSlash(strings.TrimLeft(name, "/"))
	if rel == "" {
		return nil, fmt.Errorf("local storage: empty name")
	}
	f, err := os.Open(filepath.Join(s.root, rel))
	if err != nil {
		return nil, fmt.Errorf("open media file %s: %w", rel, err)
	}
	return f, nil
}

var _ BlobStorage = (*LocalStorage)(nil)
