package ports

import (
	"context"

	"synccode/internal/core/domain"
)

type JoinRequest struct {
	RoomID        domain.RoomID
	Username      string
	BrowserID     domain.BrowserID
	RequestedRole domain.Role
	InviteToken   string
}

type SessionService interface {
	// Join resolves the role for a join request and issues a session
	// credential bound to (room, role).
	Join(ctx context.Context, req JoinRequest) (*domain.Session, error)
	// Authenticate resolves a bearer credential to its session.
	Authenticate(ctx context.Context, token domain.SessionToken) (*domain.Session, error)
	// IssueInvite creates a reusable interviewer invite token for the
	// caller's room.
	IssueInvite(ctx context.Context, caller *domain.Session, roomID domain.RoomID, role domain.Role) (string, error)
}

type ExecutionService interface {
	Execute(ctx context.Context, language, code string) (*domain.ExecutionResult, error)
}

// Sandbox runs untrusted code in an isolated one-shot process. Failures of
// the sandbox itself are reported inside the result, never as an error.
type Sandbox interface {
	Run(ctx context.Context, language, code string) *domain.ExecutionResult
}
