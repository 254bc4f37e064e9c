package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps assets on local disk and serves them from the API's
// /assets route. Meant for development and single-node deployments where a
// cloud bucket is overkill.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocal(root, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset dir: %w", err)
	}
	return &LocalStore{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Root returns the directory assets are stored under.
func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) Upload(_ context.Context, objectPath string, data []byte, _ string) error {
	full := filepath.Join(s.root, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}

	// Write-then-rename so a crashed upload never leaves a partial object.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize object: %w", err)
	}
	return nil
}

func (s *LocalStore) Download(_ context.Context, objectPath string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(objectPath)))
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", objectPath, err)
	}
	return data, nil
}

func (s *LocalStore) PublicURL(objectPath string) string {
	return s.baseURL + "/assets/" + objectPath
}
