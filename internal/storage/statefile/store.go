package statefile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"notion_sync/internal/domain"
	"notion_sync/internal/storage/filesystem"
)

// Store keeps the sync checkpoint in a small JSON file.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the zero state when the file does not exist yet.
func (s *Store) Load(ctx context.Context) (*domain.SyncState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &domain.SyncState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state domain.SyncState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", s.path, err)
	}
	return &state, nil
}

// Save overwrites the file wholesale.
func (s *Store) Save(ctx context.Context, state *domain.SyncState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	return filesystem.WriteFileAtomic(s.path, data, 0o644)
}
