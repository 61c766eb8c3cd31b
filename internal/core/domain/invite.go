package domain

// InviteToken is a capability token issued by an interviewer that lets a
// joiner claim the interviewer role for one specific room. Tokens are
// reusable and never expire.
type InviteToken struct {
	Token  string
	RoomID RoomID
	Role   Role
}
