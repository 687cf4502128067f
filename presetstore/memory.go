package presetstore

import (
	"context"
	"sync"

	"github.com/thesyncim/studio"
)

// MemoryStore keeps presets in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	presets map[string]studio.PresetData
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{presets: make(map[string]studio.PresetData)}
}

func (s *MemoryStore) Load(ctx context.Context) (map[string]studio.PresetData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]studio.PresetData, len(s.presets))
	for name, d := range s.presets {
		out[name] = clonePreset(d)
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, name string, data studio.PresetData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presets[name] = clonePreset(data)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.presets, name)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
