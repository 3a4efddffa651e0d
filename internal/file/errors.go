package file

import "errors"

var (
	// ErrFileNotFound signals that the file could not be located.
	ErrFileNotFound = errors.New("file not found")
	// ErrFileNotInBucket signals a bucket/file id pair that does not match,
	// blocking cross-bucket access through a guessed file id.
	ErrFileNotInBucket = errors.New("file does not belong to bucket")
	// ErrNameTaken is returned when a sibling with the same name exists.
	ErrNameTaken = errors.New("name already in use in this directory")
	// ErrParentDirectoryNotFound signals that the target directory does not
	// exist inside the bucket.
	ErrParentDirectoryNotFound = errors.New("parent directory not found in bucket")
)
