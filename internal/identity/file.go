package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"chat-client/internal/models"
)

// FileStore keeps the identity in a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(ctx context.Context) (models.Identity, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.Identity{}, ErrNotFound
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("read identity: %w", err)
	}

	var id models.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return models.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if id.Username == "" {
		return models.Identity{}, ErrNotFound
	}
	return id, nil
}

func (s *FileStore) Save(ctx context.Context, id models.Identity) error {
	raw, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileStore) Clear(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove identity: %w", err)
	}
	return nil
}
