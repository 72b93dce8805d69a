// Package storage abstracts the file store consumed by document and
// final-deposit uploads. The services only ever persist the returned URL.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore stores an uploaded file and returns its public URL.
type FileStore interface {
	Store(name string, r io.Reader) (string, error)
}

// LocalStore writes files under Dir and serves them under BaseURL. Stored
// names are prefixed with a uuid to avoid collisions between uploads.
type LocalStore struct {
	Dir     string
	BaseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalStore) Store(name string, r io.Reader) (string, error) {
	stored := uuid.NewString() + "-" + filepath.Base(name)
	f, err := os.Create(filepath.Join(s.Dir, stored))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return s.BaseURL + "/" + stored, nil
}
