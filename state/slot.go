package state

import (
	"context"
	"sync"

	"github.com/use-agent/harvester/models"
)

// Slot holds exactly one RunState, overwritten wholesale on every Save.
type Slot interface {
	Save(ctx context.Context, st models.RunState) error
	Load(ctx context.Context) (models.RunState, bool, error)
}

// MemorySlot is a process-local Slot. It is safe for concurrent use.
type MemorySlot struct {
	mu sync.RWMutex
	st models.RunState
	ok bool
}

// NewMemorySlot creates an empty MemorySlot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

// Save replaces the stored state with a copy of st.
func (m *MemorySlot) Save(_ context.Context, st models.RunState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st.Clone()
	m.ok = true
	return nil
}

// Load returns a copy of the stored state and whether one exists.
func (m *MemorySlot) Load(_ context.Context) (models.RunState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.ok {
		return models.RunState{}, false, nil
	}
	return m.st.Clone(), true, nil
}
