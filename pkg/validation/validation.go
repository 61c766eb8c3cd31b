package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// RoomIDRegex validates room ID format
	RoomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// BrowserIDRegex validates browser ID format
	BrowserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// LanguageRegex validates language identifiers
	LanguageRegex = regexp.MustCompile(`^[a-z][a-z0-9+#]*$`)
)

// ValidateRoomID validates a room identifier
func ValidateRoomID(roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return fmt.Errorf("roomId is required")
	}
	if len(roomID) > 128 {
		return fmt.Errorf("roomId is too long (max 128 characters)")
	}
	if !RoomIDRegex.MatchString(roomID) {
		return fmt.Errorf("roomId contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateUsername validates username
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > 50 {
		return fmt.Errorf("username is too long (max 50 characters)")
	}
	return nil
}

// ValidateBrowserID validates an optional browser identity
func ValidateBrowserID(browserID string) error {
	if browserID == "" {
		return nil
	}
	if len(browserID) > 128 {
		return fmt.Errorf("browserId is too long (max 128 characters)")
	}
	if !BrowserIDRegex.MatchString(browserID) {
		return fmt.Errorf("browserId contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateLanguage validates a language identifier
func ValidateLanguage(language string) error {
	if language == "" {
		return nil
	}
	if len(language) > 32 {
		return fmt.Errorf("language is too long (max 32 characters)")
	}
	if !LanguageRegex.MatchString(language) {
		return fmt.Errorf("invalid language identifier")
	}
	return nil
}
