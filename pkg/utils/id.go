package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateSessionToken generates an opaque, unguessable bearer credential.
func GenerateSessionToken() string {
	return uuid.NewString()
}

// GenerateInviteToken generates an opaque invite capability token.
func GenerateInviteToken() string {
	return uuid.NewString()
}

// GenerateLeaseID generates a lease identifier for a shared execution run.
func GenerateLeaseID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// GenerateInstanceID generates a process-unique id for cross-instance
// fanout echo suppression.
func GenerateInstanceID() string {
	b := make([]byte, 6)
	rand.Read(b)
	return fmt.Sprintf("node_%d_%s", time.Now().Unix(), hex.EncodeToString(b))
}
