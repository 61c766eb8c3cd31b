package services

import (
	"context"
	"time"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
	"synccode/pkg/utils"

	"go.uber.org/zap"
)

type sessionService struct {
	sessions ports.SessionRepository
	invites  ports.InviteRepository
	caps     ports.CapabilityRepository
	logger   *zap.SugaredLogger
}

func NewSessionService(
	sessions ports.SessionRepository,
	invites ports.InviteRepository,
	caps ports.CapabilityRepository,
	logger *zap.SugaredLogger,
) ports.SessionService {
	return &sessionService{
		sessions: sessions,
		invites:  invites,
		caps:     caps,
		logger:   logger,
	}
}

// grantRule is one branch of the role decision. Rules are evaluated in
// priority order; the first rule that matches decides the role and no later
// rule is consulted, even when the matching rule resolves to candidate.
type grantRule struct {
	name    string
	matches func(ctx context.Context, req ports.JoinRequest) (bool, error)
	grant   func(ctx context.Context, req ports.JoinRequest) (domain.Role, error)
}

func (s *sessionService) rules() []grantRule {
	return []grantRule{
		{
			// An explicit interviewer claim backed by an invite token. An
			// unknown or mismatched token demotes this call to candidate
			// outright: the later rules are not consulted, so even a browser
			// id that already holds the capability resolves to candidate
			// here. That behavior is load-bearing for callers; do not "fix"
			// it by falling through.
			name: "invite",
			matches: func(ctx context.Context, req ports.JoinRequest) (bool, error) {
				return req.RequestedRole == domain.RoleInterviewer && req.InviteToken != "", nil
			},
			grant: func(ctx context.Context, req ports.JoinRequest) (domain.Role, error) {
				invite, err := s.invites.GetByToken(ctx, req.InviteToken)
				if err != nil || invite.RoomID != req.RoomID || invite.Role != domain.RoleInterviewer {
					return domain.RoleCandidate, nil
				}
				if req.BrowserID != "" {
					if err := s.caps.Grant(ctx, req.RoomID, req.BrowserID); err != nil {
						return "", err
					}
				}
				return domain.RoleInterviewer, nil
			},
		},
		{
			// Browser identity already holds the interviewer capability.
			name: "persisted",
			matches: func(ctx context.Context, req ports.JoinRequest) (bool, error) {
				if req.BrowserID == "" {
					return false, nil
				}
				return s.caps.Has(ctx, req.RoomID, req.BrowserID)
			},
			grant: func(ctx context.Context, req ports.JoinRequest) (domain.Role, error) {
				return domain.RoleInterviewer, nil
			},
		},
		{
			// First joiner of a fresh room. The empty check and the grant
			// are two separate steps; two simultaneous first joins can both
			// pass the check and both be granted.
			name: "first-joiner",
			matches: func(ctx context.Context, req ports.JoinRequest) (bool, error) {
				empty, err := s.caps.IsEmpty(ctx, req.RoomID)
				if err != nil || !empty {
					return false, err
				}
				has, err := s.sessions.RoomHasSessions(ctx, req.RoomID)
				if err != nil {
					return false, err
				}
				return !has, nil
			},
			grant: func(ctx context.Context, req ports.JoinRequest) (domain.Role, error) {
				if req.BrowserID != "" {
					if err := s.caps.Grant(ctx, req.RoomID, req.BrowserID); err != nil {
						return "", err
					}
				}
				return domain.RoleInterviewer, nil
			},
		},
	}
}

func (s *sessionService) resolve(ctx context.Context, req ports.JoinRequest) (domain.Role, error) {
	for _, rule := range s.rules() {
		ok, err := rule.matches(ctx, req)
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		role, err := rule.grant(ctx, req)
		if err != nil {
			return "", err
		}
		s.logger.Debugw("role resolved",
			"rule", rule.name,
			"room_id", req.RoomID,
			"browser_id", req.BrowserID,
			"role", role,
		)
		return role, nil
	}
	return domain.RoleCandidate, nil
}

func (s *sessionService) Join(ctx context.Context, req ports.JoinRequest) (*domain.Session, error) {
	role, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{
		Token:     domain.SessionToken(utils.GenerateSessionToken()),
		RoomID:    req.RoomID,
		Role:      role,
		Username:  req.Username,
		BrowserID: req.BrowserID,
		CreatedAt: time.Now(),
	}

	if err := s.sessions.Add(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Infow("session issued",
		"room_id", req.RoomID,
		"username", req.Username,
		"role", role,
	)

	return session, nil
}

func (s *sessionService) Authenticate(ctx context.Context, token domain.SessionToken) (*domain.Session, error) {
	return s.sessions.GetByToken(ctx, token)
}

func (s *sessionService) IssueInvite(ctx context.Context, caller *domain.Session, roomID domain.RoomID, role domain.Role) (string, error) {
	if caller.Role != domain.RoleInterviewer {
		return "", domain.ErrNotInterviewer
	}
	if caller.RoomID != roomID {
		return "", domain.ErrRoomMismatch
	}
	if role != domain.RoleInterviewer {
		return "", domain.ErrUnsupportedRole
	}

	invite := &domain.InviteToken{
		Token:  utils.GenerateInviteToken(),
		RoomID: roomID,
		Role:   role,
	}
	if err := s.invites.Add(ctx, invite); err != nil {
		return "", err
	}

	s.logger.Infow("invite issued", "room_id", roomID)

	return invite.Token, nil
}
