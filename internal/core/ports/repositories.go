package ports

import (
	"context"

	"synccode/internal/core/domain"
)

type SessionRepository interface {
	Add(ctx context.Context, session *domain.Session) error
	GetByToken(ctx context.Context, token domain.SessionToken) (*domain.Session, error)
	// RoomHasSessions reports whether any session has ever been issued for
	// the room. Sessions are never deleted, so this is monotonic.
	RoomHasSessions(ctx context.Context, roomID domain.RoomID) (bool, error)
}

type InviteRepository interface {
	Add(ctx context.Context, invite *domain.InviteToken) error
	GetByToken(ctx context.Context, token string) (*domain.InviteToken, error)
}

// CapabilityRepository tracks, per room, the browser identities that hold
// the interviewer capability. The set only grows.
type CapabilityRepository interface {
	Grant(ctx context.Context, roomID domain.RoomID, browserID domain.BrowserID) error
	Has(ctx context.Context, roomID domain.RoomID, browserID domain.BrowserID) (bool, error)
	IsEmpty(ctx context.Context, roomID domain.RoomID) (bool, error)
}
