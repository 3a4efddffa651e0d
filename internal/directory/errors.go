package directory

import "errors"

var (
	ErrDirectoryNotFound    = errors.New("directory not found")
	ErrDirectoryNotInBucket = errors.New("directory does not belong to bucket")
	// ErrNameTaken is returned when a sibling with the same name exists.
	ErrNameTaken = errors.New("name already in use in this directory")
	// ErrCircularMove is returned when a move would place a directory under
	// itself or one of its descendants.
	ErrCircularMove = errors.New("cannot move a directory into its own subtree")
	// ErrRootDirectory guards the bucket root against moves and deletes.
	ErrRootDirectory = errors.New("operation not permitted on the root directory")
)
