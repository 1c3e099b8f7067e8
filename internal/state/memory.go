package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gridline/bot-engine/internal/model"
)

// MemoryRepository implements Repository with an in-memory map. Used for
// testing and development; nothing survives a restart.
type MemoryRepository struct {
	mu    sync.RWMutex
	snaps map[string][]byte
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{snaps: make(map[string][]byte)}
}

func (r *MemoryRepository) Load(_ context.Context, botID string) (*model.Snapshot, error) {
	r.mu.RLock()
	data, ok := r.snaps[botID]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return DecodeSnapshot(data)
}

func (r *MemoryRepository) Save(_ context.Context, botID string, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.snaps[botID] = data
	r.mu.Unlock()
	return nil
}
