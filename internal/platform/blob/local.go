package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes objects below a directory, for development and tests.
type LocalStore struct {
	root       string
	publicBase string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root, publicBase string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: BLOB_LOCAL_DIR is required", ErrNotConfigured)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("platform/blob: create %s: %w", root, err)
	}
	if publicBase == "" {
		publicBase = "/uploads"
	}
	return &LocalStore{root: root, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Put writes data to root/ref.
func (s *LocalStore) Put(ctx context.Context, ref string, data []byte, contentType string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("platform/blob: mkdir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("platform/blob: write %s: %w", ref, err)
	}
	return nil
}

// Delete removes root/ref.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("platform/blob: delete %s: %w", ref, err)
	}
	return nil
}

// URL returns the address the router serves ref under.
func (s *LocalStore) URL(ref string) string {
	return s.publicBase + "/" + ref
}

// Root exposes the directory served for public URLs.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) path(ref string) (string, error) {
	clean := filepath.Clean("/" + ref)
	if clean == "/" {
		return "", fmt.Errorf("platform/blob: invalid reference %q", ref)
	}
	return filepath.Join(s.root, clean), nil
}
