// Package blob stores opaque file bodies on the local filesystem.
package blob

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrTooLarge is returned by Put when the body exceeds the size limit.
var ErrTooLarge = errors.New("blob exceeds size limit")

// FSStore keeps one file per key under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) (string, error) {
	if key == "" || filepath.Base(key) != key {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// Put writes r under key and returns the number of bytes written. A body
// larger than maxBytes is rejected with ErrTooLarge and nothing is kept.
func (s *FSStore) Put(key string, r io.Reader, maxBytes int64) (int64, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, err
	}
	out, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(r, maxBytes+1))
	closeErr := out.Close()
	switch {
	case err != nil:
		_ = os.Remove(p)
		return 0, fmt.Errorf("write blob: %w", err)
	case closeErr != nil:
		_ = os.Remove(p)
		return 0, fmt.Errorf("close blob: %w", closeErr)
	case n > maxBytes:
		_ = os.Remove(p)
		return 0, ErrTooLarge
	}
	return n, nil
}

// Open returns a reader for key. A missing blob yields os.ErrNotExist.
func (s *FSStore) Open(key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete removes key. Deleting a missing blob is not an error.
func (s *FSStore) Delete(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
