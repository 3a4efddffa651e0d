package file

import (
	"time"

	"github.com/google/uuid"
)

// File is a named leaf in the storage hierarchy. MetaData is server-visible
// structure (listing hints); EncryptedMetaData is opaque ciphertext the
// client decrypts. The actual content lives in blob records keyed by file id.
type File struct {
	ID                       uuid.UUID      `json:"id"`
	BucketID                 uuid.UUID      `json:"bucketId"`
	ParentDirectoryID        uuid.UUID      `json:"parentDirectoryId"`
	Name                     string         `json:"name"`
	MetaData                 map[string]any `json:"metaData"`
	EncryptedMetaData        string         `json:"encryptedMetaData"`
	SizeAfterEncryptionBytes int64          `json:"sizeAfterEncryptionBytes"`
	ContentUpdatedAt         time.Time      `json:"contentUpdatedAt"`
	CreatedBy                uuid.UUID      `json:"createdBy"`
	CreatedAt                time.Time      `json:"createdAt"`
	UpdatedAt                time.Time      `json:"updatedAt"`
}
