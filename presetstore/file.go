package presetstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/thesyncim/studio"
)

// FileStore keeps presets in one JSON document. Writes replace the file
// atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a store backed by path. If path is empty, it
// defaults to ~/.config/studio/presets.json. The directory is created.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		path = filepath.Join(home, ".config", "studio", "presets.json")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create preset dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the preset file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) (map[string]studio.PresetData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Save(ctx context.Context, name string, data studio.PresetData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets, err := s.read()
	if err != nil {
		return err
	}
	presets[name] = data
	return s.write(presets)
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	presets, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := presets[name]; !ok {
		return nil
	}
	delete(presets, name)
	return s.write(presets)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (map[string]studio.PresetData, error) {
	presets := make(map[string]studio.PresetData)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return presets, nil
		}
		return nil, fmt.Errorf("read preset file: %w", err)
	}
	if err := json.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parse preset file: %w", err)
	}
	return presets, nil
}

func (s *FileStore) write(presets map[string]studio.PresetData) error {
	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal presets: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write preset file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace preset file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
