package directory

import (
	"time"

	"github.com/google/uuid"
)

// Directory is a node in a bucket's tree. The root directory has a nil
// parent; exactly one root exists per bucket and it is created alongside
// the bucket itself.
type Directory struct {
	ID                uuid.UUID      `json:"id"`
	BucketID          uuid.UUID      `json:"bucketId"`
	ParentDirectoryID *uuid.UUID     `json:"parentDirectoryId"`
	Name              string         `json:"name"`
	MetaData          map[string]any `json:"metaData"`
	EncryptedMetaData string         `json:"encryptedMetaData"`
	CreatedBy         uuid.UUID      `json:"createdBy"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// IsRoot reports whether this directory is the bucket root.
func (d Directory) IsRoot() bool {
	return d.ParentDirectoryID == nil
}
