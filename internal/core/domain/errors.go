package domain

import "errors"

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrInviteNotFound    = errors.New("invite token not found")
	ErrRoomMismatch      = errors.New("session does not belong to this room")
	ErrNotInterviewer    = errors.New("caller is not an interviewer")
	ErrUnsupportedRole   = errors.New("unsupported role")
	ErrLeaseMismatch     = errors.New("stale execution lease")
	ErrRunnerUnavailable = errors.New("sandbox runner unavailable")
)
