package memory

import (
	"context"
	"sync"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
)

type MemoryCapabilityRepository struct {
	grants map[domain.RoomID]map[domain.BrowserID]struct{}
	mu     sync.RWMutex
}

func NewMemoryCapabilityRepository() ports.CapabilityRepository {
	return &MemoryCapabilityRepository{
		grants: make(map[domain.RoomID]map[domain.BrowserID]struct{}),
	}
}

func (r *MemoryCapabilityRepository) Grant(ctx context.Context, roomID domain.RoomID, browserID domain.BrowserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, exists := r.grants[roomID]
	if !exists {
		set = make(map[domain.BrowserID]struct{})
		r.grants[roomID] = set
	}
	set[browserID] = struct{}{}
	return nil
}

func (r *MemoryCapabilityRepository) Has(ctx context.Context, roomID domain.RoomID, browserID domain.BrowserID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, exists := r.grants[roomID]
	if !exists {
		return false, nil
	}
	_, has := set[browserID]
	return has, nil
}

func (r *MemoryCapabilityRepository) IsEmpty(ctx context.Context, roomID domain.RoomID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.grants[roomID]) == 0, nil
}
