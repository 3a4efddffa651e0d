package bucket

import (
	"time"

	"github.com/google/uuid"
)

// Permission is a bucket-level permission bit. Bucket access is granted
// explicitly per user; global permissions never imply any of these.
type Permission string

const (
	PermModify              Permission = "MODIFY"
	PermViewContent         Permission = "VIEW_CONTENT"
	PermManageContent       Permission = "MANAGE_CONTENT"
	PermManageAuthorization Permission = "MANAGE_AUTHORIZATION"
	PermDestroy             Permission = "DESTROY"
)

func allPermissions() []Permission {
	return []Permission{PermModify, PermViewContent, PermManageContent, PermManageAuthorization, PermDestroy}
}

// AllAllowedPermissions returns the full grant given to a bucket's creator.
func AllAllowedPermissions() map[Permission]bool {
	grants := make(map[Permission]bool)
	for _, p := range allPermissions() {
		grants[p] = true
	}
	return grants
}

// AllForbiddenPermissions returns the empty grant a newly authorized user starts with.
func AllForbiddenPermissions() map[Permission]bool {
	grants := make(map[Permission]bool)
	for _, p := range allPermissions() {
		grants[p] = false
	}
	return grants
}

// Authorization grants one user a set of permissions on one bucket.
type Authorization struct {
	UserID      uuid.UUID           `json:"userId"`
	Notes       string              `json:"notes"`
	Permissions map[Permission]bool `json:"permissions"`
}

// Bucket is the root container of the storage hierarchy. CryptSpec names the
// client-side encryption scheme and CryptData carries the password-derived
// verifier; both are opaque to the server.
type Bucket struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	CryptSpec      string          `json:"cryptSpec"`
	CryptData      string          `json:"cryptData"`
	MetaData       map[string]any  `json:"metaData"`
	Authorizations []Authorization `json:"bucketAuthorizations"`
	CreatedBy      uuid.UUID       `json:"createdBy"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// AuthorizationFor returns the explicit authorization entry for a user.
func (b Bucket) AuthorizationFor(userID uuid.UUID) (Authorization, bool) {
	for _, a := range b.Authorizations {
		if a.UserID == userID {
			return a, true
		}
	}
	return Authorization{}, false
}
