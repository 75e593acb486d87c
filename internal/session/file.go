package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/driftloom/loomcore/pkg/models"
)

// FileStore persists one JSON file per session under Dir.
type FileStore struct {
	Dir string
}

// NewFileStore builds a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session/file: create dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.Dir, id+".json")
}

func (f *FileStore) Create(_ context.Context, s *models.SessionState) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	return f.write(s)
}

func (f *FileStore) Get(_ context.Context, id string) (*models.SessionState, error) {
	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session/file: read: %w", err)
	}
	var s models.SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session/file: decode: %w", err)
	}
	return &s, nil
}

func (f *FileStore) Update(_ context.Context, s *models.SessionState) error {
	if _, err := os.Stat(f.path(s.ID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("session/file: stat: %w", err)
	}
	s.UpdatedAt = time.Now()
	return f.write(s)
}

func (f *FileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(f.path(id))
	if err != nil && os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

func (f *FileStore) List(_ context.Context) ([]*models.SessionState, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, fmt.Errorf("session/file: read dir: %w", err)
	}

	var out []*models.SessionState
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.Dir, e.Name()))
		if err != nil {
			continue
		}
		var s models.SessionState
		if err := json.Unmarshal(data, &s); err != nil {
			continue
		}
		out = append(out, &s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *FileStore) write(s *models.SessionState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("session/file: encode: %w", err)
	}
	return os.WriteFile(f.path(s.ID), data, 0o644)
}
