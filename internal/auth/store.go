package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"tabcap/internal/domain"
)

// FileStore persists the token session in a single JSON file. It
// implements ports.TokenStore.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted session, or a zero session when none exists.
func (s *FileStore) Load() (domain.AuthSession, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.AuthSession{}, nil
		}
		return domain.AuthSession{}, err
	}

	var session domain.AuthSession
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.AuthSession{}, err
	}
	return session, nil
}

// Save writes the session with owner-only permissions.
func (s *FileStore) Save(session domain.AuthSession) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the persisted session. Missing files are fine.
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
