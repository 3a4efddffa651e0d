package blob

import "errors"

var (
	// ErrBlobNotFound covers both unknown blob ids and files with no
	// finished content to read.
	ErrBlobNotFound = errors.New("blob not found")
	// ErrOffsetMismatch is returned when a chunk's claimed offset does not
	// equal the bytes already stored. No bytes are consumed and the blob
	// stays in progress so the client can retry from the right offset.
	ErrOffsetMismatch = errors.New("write offset does not match stored size")
	// ErrSizeLimitExceeded aborts uploads that cross the configured maximum.
	ErrSizeLimitExceeded = errors.New("blob size limit exceeded")
	// ErrCryptoHeaderInvalid rejects writes with a missing or oversized
	// crypto header.
	ErrCryptoHeaderInvalid = errors.New("crypto header missing or too large")
)
