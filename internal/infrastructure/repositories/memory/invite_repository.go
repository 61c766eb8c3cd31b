package memory

import (
	"context"
	"fmt"
	"sync"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
)

type MemoryInviteRepository struct {
	invites map[string]*domain.InviteToken
	mu      sync.RWMutex
}

func NewMemoryInviteRepository() ports.InviteRepository {
	return &MemoryInviteRepository{
		invites: make(map[string]*domain.InviteToken),
	}
}

func (r *MemoryInviteRepository) Add(ctx context.Context, invite *domain.InviteToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.invites[invite.Token]; exists {
		return fmt.Errorf("invite token already exists: %s", invite.Token)
	}

	r.invites[invite.Token] = invite
	return nil
}

func (r *MemoryInviteRepository) GetByToken(ctx context.Context, token string) (*domain.InviteToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	invite, exists := r.invites[token]
	if !exists {
		return nil, domain.ErrInviteNotFound
	}

	return invite, nil
}
