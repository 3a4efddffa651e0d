package blob

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks a blob through its lifecycle. A blob starts in progress,
// and ends either finished (readable) or erroneous (awaiting the sweeper).
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusErroneous  Status = "erroneous"
)

// Blob is one upload attempt of a file's content. Several blobs may exist
// for a file at once while an upload is underway; at most one finished blob
// survives finalization.
type Blob struct {
	ID           uuid.UUID  `json:"id"`
	BucketID     uuid.UUID  `json:"bucketId"`
	FileID       uuid.UUID  `json:"fileId"`
	Status       Status     `json:"status"`
	CryptoHeader string     `json:"cryptoHeader"`
	SizeBytes    int64      `json:"sizeBytes"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt"`
	CreatedBy    uuid.UUID  `json:"createdBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
