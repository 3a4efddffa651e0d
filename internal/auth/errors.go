package auth

import "errors"

var (
	// ErrUnauthorized represents a missing, malformed, unknown, or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUserBanned signals the authenticated user is banned.
	ErrUserBanned = errors.New("user is banned")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrSessionNotFound signals that the session could not be located.
	ErrSessionNotFound = errors.New("session not found")
	// ErrIncorrectPassword is returned when a password comparison fails.
	ErrIncorrectPassword = errors.New("incorrect password")
	// ErrUserNameTaken indicates the user name is already registered.
	ErrUserNameTaken = errors.New("user name already taken")
	// ErrGlobalPermissionDenied signals a missing global permission.
	ErrGlobalPermissionDenied = errors.New("insufficient global permission")
)
