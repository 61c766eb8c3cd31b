package memory

import (
	"context"
	"fmt"
	"sync"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
)

type MemorySessionRepository struct {
	sessions map[domain.SessionToken]*domain.Session
	// rooms indexes rooms that have at least one issued session. Sessions
	// are never deleted, so entries only accumulate.
	rooms map[domain.RoomID]struct{}
	mu    sync.RWMutex
}

func NewMemorySessionRepository() ports.SessionRepository {
	return &MemorySessionRepository{
		sessions: make(map[domain.SessionToken]*domain.Session),
		rooms:    make(map[domain.RoomID]struct{}),
	}
}

func (r *MemorySessionRepository) Add(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[session.Token]; exists {
		return fmt.Errorf("session already exists: %s", session.Token)
	}

	r.sessions[session.Token] = session
	r.rooms[session.RoomID] = struct{}{}
	return nil
}

func (r *MemorySessionRepository) GetByToken(ctx context.Context, token domain.SessionToken) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[token]
	if !exists {
		return nil, domain.ErrSessionNotFound
	}

	return session, nil
}

func (r *MemorySessionRepository) RoomHasSessions(ctx context.Context, roomID domain.RoomID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, has := r.rooms[roomID]
	return has, nil
}
