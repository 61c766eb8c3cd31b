package domain

import "time"

type RoomID string

// BrowserID is a client-generated identity that survives page reloads.
// It is the key into a room's capability set.
type BrowserID string

// SessionToken is the opaque bearer credential returned by /session.
type SessionToken string

type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Session binds a credential to exactly one (room, role) pair for its
// entire lifetime. Sessions live only in process memory and are never
// deleted.
type Session struct {
	Token     SessionToken
	RoomID    RoomID
	Role      Role
	Username  string
	BrowserID BrowserID
	CreatedAt time.Time
}
