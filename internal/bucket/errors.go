package bucket

import "errors"

var (
	// ErrBucketNotFound indicates the requested bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrBucketNameTaken is returned when a bucket name is already in use.
	ErrBucketNameTaken = errors.New("bucket name already in use")
	// ErrNotAuthorized signals the user has no authorization entry on the bucket.
	ErrNotAuthorized = errors.New("not authorized on bucket")
	// ErrPermissionDenied signals the user's authorization lacks the required permission.
	ErrPermissionDenied = errors.New("insufficient bucket permission")
)
