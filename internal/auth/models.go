package auth

import (
	"time"

	"github.com/google/uuid"
)

// Global permission names. These gate server-wide actions and never imply
// access to any bucket's content.
const (
	PermManageAllUser = "MANAGE_ALL_USER"
	PermCreateUser    = "CREATE_USER"
	PermCreateBucket  = "CREATE_BUCKET"
)

// DefaultGlobalPermissions returns the grants for a new standard user.
func DefaultGlobalPermissions() map[string]bool {
	return map[string]bool{
		PermManageAllUser: false,
		PermCreateUser:    false,
		PermCreateBucket:  true,
	}
}

// AdminGlobalPermissions returns the grants for the bootstrap admin.
func AdminGlobalPermissions() map[string]bool {
	return map[string]bool{
		PermManageAllUser: true,
		PermCreateUser:    true,
		PermCreateBucket:  true,
	}
}

// User represents an application user.
type User struct {
	ID                uuid.UUID       `json:"id"`
	UserName          string          `json:"userName"`
	DisplayName       string          `json:"displayName"`
	PasswordHash      string          `json:"-"`
	PasswordSalt      string          `json:"-"`
	GlobalPermissions map[string]bool `json:"globalPermissions"`
	IsBanned          bool            `json:"isBanned"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// HasGlobalPermission reports whether the user holds the named permission.
func (u User) HasGlobalPermission(name string) bool {
	return u.GlobalPermissions[name]
}

// Session carries the bearer credential for every request. Sessions are
// server-side and individually revocable, so bans and forced logouts take
// effect immediately.
type Session struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"userId"`
	APIKey       string     `json:"-"`
	HasExpired   bool       `json:"hasExpired"`
	ExpiredAt    *time.Time `json:"expiredAt,omitempty"`
	ExpireReason *string    `json:"expireReason,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	User      User
}
