package services

import (
	"context"
	"testing"

	"synccode/internal/core/domain"
	"synccode/internal/core/ports"
	"synccode/internal/infrastructure/repositories/memory"

	"go.uber.org/zap/zaptest"
)

func newSessionService(t *testing.T) ports.SessionService {
	t.Helper()
	return NewSessionService(
		memory.NewMemorySessionRepository(),
		memory.NewMemoryInviteRepository(),
		memory.NewMemoryCapabilityRepository(),
		zaptest.NewLogger(t).Sugar(),
	)
}

func join(t *testing.T, svc ports.SessionService, req ports.JoinRequest) *domain.Session {
	t.Helper()
	session, err := svc.Join(context.Background(), req)
	if err != nil {
		t.Fatalf("Join() error: %v", err)
	}
	return session
}

func TestJoin_FirstJoinerIsInterviewer(t *testing.T) {
	svc := newSessionService(t)

	first := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	if first.Role != domain.RoleInterviewer {
		t.Fatalf("first joiner role = %q, want interviewer", first.Role)
	}

	// Every subsequent distinct joiner without an invite is a candidate.
	for _, b := range []domain.BrowserID{"b-2", "b-3", "b-4"} {
		s := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "bob", BrowserID: b})
		if s.Role != domain.RoleCandidate {
			t.Errorf("joiner %s role = %q, want candidate", b, s.Role)
		}
	}
}

func TestJoin_GrantPersistsForBrowserID(t *testing.T) {
	svc := newSessionService(t)

	join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "bob", BrowserID: "b-2"})

	// Reload: the first joiner's browser identity keeps the capability even
	// though the room is no longer fresh.
	again := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	if again.Role != domain.RoleInterviewer {
		t.Errorf("returning interviewer role = %q, want interviewer", again.Role)
	}

	// Intervening joins from other identities do not disturb the grant.
	join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "carol", BrowserID: "b-3"})
	again = join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	if again.Role != domain.RoleInterviewer {
		t.Errorf("returning interviewer after other joins role = %q, want interviewer", again.Role)
	}
}

func TestJoin_ValidInviteGrantsInterviewer(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	owner := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	token, err := svc.IssueInvite(ctx, owner, "room-1", domain.RoleInterviewer)
	if err != nil {
		t.Fatalf("IssueInvite() error: %v", err)
	}

	invited := join(t, svc, ports.JoinRequest{
		RoomID:        "room-1",
		Username:      "carol",
		BrowserID:     "b-3",
		RequestedRole: domain.RoleInterviewer,
		InviteToken:   token,
	})
	if invited.Role != domain.RoleInterviewer {
		t.Fatalf("invited joiner role = %q, want interviewer", invited.Role)
	}

	// The grant persists: a later join with the same browser id and no
	// token is still interviewer.
	again := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "carol", BrowserID: "b-3"})
	if again.Role != domain.RoleInterviewer {
		t.Errorf("re-joining invited browser role = %q, want interviewer", again.Role)
	}

	// Invite tokens are reusable.
	other := join(t, svc, ports.JoinRequest{
		RoomID:        "room-1",
		Username:      "dave",
		BrowserID:     "b-4",
		RequestedRole: domain.RoleInterviewer,
		InviteToken:   token,
	})
	if other.Role != domain.RoleInterviewer {
		t.Errorf("second use of invite role = %q, want interviewer", other.Role)
	}
}

func TestJoin_InvalidInviteNeverFallsThrough(t *testing.T) {
	svc := newSessionService(t)

	owner := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	if owner.Role != domain.RoleInterviewer {
		t.Fatal("setup: first joiner should be interviewer")
	}

	// A bad token demotes this call to candidate even though b-1 already
	// holds the capability: the invite branch is exclusive and does not
	// fall back to the persisted-grant rule.
	demoted := join(t, svc, ports.JoinRequest{
		RoomID:        "room-1",
		Username:      "alice",
		BrowserID:     "b-1",
		RequestedRole: domain.RoleInterviewer,
		InviteToken:   "no-such-token",
	})
	if demoted.Role != domain.RoleCandidate {
		t.Errorf("bad-token join role = %q, want candidate", demoted.Role)
	}

	// The stored grant survives the demoted call.
	restored := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	if restored.Role != domain.RoleInterviewer {
		t.Errorf("follow-up join role = %q, want interviewer", restored.Role)
	}
}

func TestJoin_InviteForWrongRoomResolvesCandidate(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	owner := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	token, err := svc.IssueInvite(ctx, owner, "room-1", domain.RoleInterviewer)
	if err != nil {
		t.Fatal(err)
	}

	// Using the token against another room resolves to candidate, and the
	// caller does not receive the fresh-room first-joiner grant either.
	s := join(t, svc, ports.JoinRequest{
		RoomID:        "room-2",
		Username:      "mallory",
		BrowserID:     "b-9",
		RequestedRole: domain.RoleInterviewer,
		InviteToken:   token,
	})
	if s.Role != domain.RoleCandidate {
		t.Errorf("cross-room invite role = %q, want candidate", s.Role)
	}

	// room-2 stayed fresh, so a plain join still gets the first-joiner grant.
	fresh := join(t, svc, ports.JoinRequest{RoomID: "room-2", Username: "eve", BrowserID: "b-10"})
	if fresh.Role != domain.RoleInterviewer {
		t.Errorf("fresh-room join after failed invite role = %q, want interviewer", fresh.Role)
	}
}

func TestJoin_RequestedRoleWithoutTokenIsIgnored(t *testing.T) {
	svc := newSessionService(t)

	join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})

	s := join(t, svc, ports.JoinRequest{
		RoomID:        "room-1",
		Username:      "bob",
		BrowserID:     "b-2",
		RequestedRole: domain.RoleInterviewer,
	})
	if s.Role != domain.RoleCandidate {
		t.Errorf("requested-role-without-token join role = %q, want candidate", s.Role)
	}
}

func TestJoin_WithoutBrowserIDGetsNoPersistentGrant(t *testing.T) {
	svc := newSessionService(t)

	first := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice"})
	if first.Role != domain.RoleInterviewer {
		t.Fatalf("first joiner without browser id role = %q, want interviewer", first.Role)
	}

	// Nothing was written to the capability set; the room now has a
	// session, so the same person reloading without a browser id is just
	// another candidate.
	second := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice"})
	if second.Role != domain.RoleCandidate {
		t.Errorf("second join role = %q, want candidate", second.Role)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	issued := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})

	got, err := svc.Authenticate(ctx, issued.Token)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if got.RoomID != "room-1" {
		t.Errorf("authenticated session room = %q, want room-1", got.RoomID)
	}

	if _, err := svc.Authenticate(ctx, "bogus"); err != domain.ErrSessionNotFound {
		t.Errorf("Authenticate(bogus) error = %v, want ErrSessionNotFound", err)
	}
}

func TestIssueInvite_Authorization(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	owner := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "alice", BrowserID: "b-1"})
	candidate := join(t, svc, ports.JoinRequest{RoomID: "room-1", Username: "bob", BrowserID: "b-2"})

	tests := []struct {
		name    string
		caller  *domain.Session
		roomID  domain.RoomID
		role    domain.Role
		wantErr error
	}{
		{"candidate cannot invite", candidate, "room-1", domain.RoleInterviewer, domain.ErrNotInterviewer},
		{"cross-room invite rejected", owner, "room-2", domain.RoleInterviewer, domain.ErrRoomMismatch},
		{"only interviewer grants supported", owner, "room-1", domain.RoleCandidate, domain.ErrUnsupportedRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IssueInvite(ctx, tt.caller, tt.roomID, tt.role)
			if err != tt.wantErr {
				t.Errorf("IssueInvite() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	token, err := svc.IssueInvite(ctx, owner, "room-1", domain.RoleInterviewer)
	if err != nil {
		t.Fatalf("IssueInvite() by interviewer error: %v", err)
	}
	if token == "" {
		t.Error("IssueInvite() returned empty token")
	}
}
