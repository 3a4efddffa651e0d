package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nkrypt-xyz/nkstore/internal/bucket"
	"github.com/nkrypt-xyz/nkstore/internal/config"
	"github.com/nkrypt-xyz/nkstore/internal/file"
	"github.com/nkrypt-xyz/nkstore/internal/metrics"
)

type repository interface {
	Create(ctx context.Context, b Blob) (Blob, error)
	GetInProgress(ctx context.Context, bucketID, fileID, blobID uuid.UUID) (Blob, error)
	LatestFinished(ctx context.Context, bucketID, fileID uuid.UUID) (Blob, error)
	MarkFinished(ctx context.Context, blobID uuid.UUID, sizeBytes int64, finishedAt time.Time) error
	MarkErroneous(ctx context.Context, blobID uuid.UUID) error
	DeleteAllExcept(ctx context.Context, fileID, keepBlobID uuid.UUID) ([]uuid.UUID, error)
	DeleteAllOfFile(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error)
	DeleteAllOfBucket(ctx context.Context, bucketID uuid.UUID) ([]uuid.UUID, error)
	ListSweepable(ctx context.Context, staleBefore time.Time) ([]Blob, error)
	Delete(ctx context.Context, blobID uuid.UUID) error
}

// byteStore holds the actual ciphertext, keyed by blob id.
type byteStore interface {
	Create(id string) (io.WriteCloser, error)
	OpenAppend(id string) (io.WriteCloser, error)
	Size(id string) (int64, error)
	Reader(id string) (io.ReadCloser, int64, error)
	Remove(id string) error
}

// fileStore is the slice of the file layer the pipeline needs: pairing
// checks and the content bookkeeping done at finalization.
type fileStore interface {
	Get(ctx context.Context, bucketID, fileID uuid.UUID) (file.File, error)
	SetContentUpdated(ctx context.Context, bucketID, fileID uuid.UUID, sizeBytes int64, at time.Time) error
}

type permissionGate interface {
	RequirePermission(ctx context.Context, userID, bucketID uuid.UUID, permission bucket.Permission) error
}

// Service runs the blob write pipeline and read path. Every operation
// verifies the file/bucket pairing first and the caller's bucket permission
// second; only then does it touch bytes.
type Service struct {
	records repository
	bytes   byteStore
	files   fileStore
	gate    permissionGate
	cfg     config.BlobStorageConfig
	logger  *zap.Logger
	nowFunc func() time.Time
}

func NewService(records repository, bytes byteStore, files fileStore, gate permissionGate, cfg config.BlobStorageConfig, logger *zap.Logger) *Service {
	return &Service{
		records: records,
		bytes:   bytes,
		files:   files,
		gate:    gate,
		cfg:     cfg,
		logger:  logger,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// WriteResult reports the outcome of an accepted write.
type WriteResult struct {
	BlobID           uuid.UUID `json:"blobId"`
	BytesTransferred int64     `json:"bytesTransferred"`
}

func (s *Service) authorizeWrite(ctx context.Context, userID, bucketID, fileID uuid.UUID) error {
	if _, err := s.files.Get(ctx, bucketID, fileID); err != nil {
		return err
	}
	return s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent)
}

func validateCryptoHeader(header string, maxBytes int) error {
	if header == "" || len(header) > maxBytes {
		return ErrCryptoHeaderInvalid
	}
	return nil
}

// Write uploads a file's full content in one request. The blob is created,
// filled from content, and finalized; on any failure after creation the blob
// is marked erroneous and left for the sweeper.
func (s *Service) Write(ctx context.Context, userID, bucketID, fileID uuid.UUID, cryptoHeader string, content io.Reader) (WriteResult, error) {
	if err := validateCryptoHeader(cryptoHeader, s.cfg.MaxCryptoHeaderBytes); err != nil {
		return WriteResult{}, err
	}
	if err := s.authorizeWrite(ctx, userID, bucketID, fileID); err != nil {
		return WriteResult{}, err
	}

	b, err := s.records.Create(ctx, Blob{
		ID:           uuid.New(),
		BucketID:     bucketID,
		FileID:       fileID,
		Status:       StatusInProgress,
		CryptoHeader: cryptoHeader,
		StartedAt:    s.nowFunc(),
		CreatedBy:    userID,
	})
	if err != nil {
		return WriteResult{}, err
	}

	written, err := s.fill(ctx, b, 0, content)
	if err != nil {
		return WriteResult{}, err
	}

	if err := s.finalize(ctx, b, written); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{BlobID: b.ID, BytesTransferred: written}, nil
}

// WriteChunk appends one chunk of a resumable upload. A nil blobID starts a
// new blob at offset 0; otherwise the chunk must land exactly at the stored
// size or the whole request is rejected without consuming bytes. When
// shouldEnd is set the blob is finalized after the append.
func (s *Service) WriteChunk(ctx context.Context, userID, bucketID, fileID uuid.UUID, blobID *uuid.UUID, offset int64, shouldEnd bool, cryptoHeader string, content io.Reader) (WriteResult, error) {
	if err := validateCryptoHeader(cryptoHeader, s.cfg.MaxCryptoHeaderBytes); err != nil {
		return WriteResult{}, err
	}
	if offset < 0 {
		return WriteResult{}, ErrOffsetMismatch
	}
	if err := s.authorizeWrite(ctx, userID, bucketID, fileID); err != nil {
		return WriteResult{}, err
	}

	var b Blob
	if blobID == nil {
		if offset != 0 {
			return WriteResult{}, ErrOffsetMismatch
		}
		created, err := s.records.Create(ctx, Blob{
			ID:           uuid.New(),
			BucketID:     bucketID,
			FileID:       fileID,
			Status:       StatusInProgress,
			CryptoHeader: cryptoHeader,
			StartedAt:    s.nowFunc(),
			CreatedBy:    userID,
		})
		if err != nil {
			return WriteResult{}, err
		}
		b = created
	} else {
		existing, err := s.records.GetInProgress(ctx, bucketID, fileID, *blobID)
		if err != nil {
			return WriteResult{}, err
		}
		stored, err := s.bytes.Size(existing.ID.String())
		if err != nil {
			return WriteResult{}, err
		}
		if stored != offset {
			return WriteResult{}, ErrOffsetMismatch
		}
		b = existing
	}

	written, err := s.fill(ctx, b, offset, content)
	if err != nil {
		return WriteResult{}, err
	}

	if shouldEnd {
		if err := s.finalize(ctx, b, offset+written); err != nil {
			return WriteResult{}, err
		}
	}
	return WriteResult{BlobID: b.ID, BytesTransferred: written}, nil
}

// fill streams content into the blob's sink starting at offset, honoring the
// size limit relative to what is already stored. I/O and limit failures mark
// the blob erroneous before propagating. The sink is closed on every path.
func (s *Service) fill(ctx context.Context, b Blob, offset int64, content io.Reader) (int64, error) {
	var sink io.WriteCloser
	var err error
	if offset == 0 {
		sink, err = s.bytes.Create(b.ID.String())
	} else {
		sink, err = s.bytes.OpenAppend(b.ID.String())
	}
	if err != nil {
		s.failBlob(ctx, b, err)
		return 0, err
	}

	limited := newLimitedWriter(sink, s.cfg.MaxBlobSizeBytes-offset)
	_, copyErr := io.Copy(limited, content)
	closeErr := sink.Close()

	metrics.BlobBytesWritten.Add(float64(limited.written))

	if copyErr != nil {
		s.failBlob(ctx, b, copyErr)
		return limited.written, copyErr
	}
	if closeErr != nil {
		s.failBlob(ctx, b, closeErr)
		return limited.written, fmt.Errorf("close blob sink: %w", closeErr)
	}
	return limited.written, nil
}

// finalize marks the blob finished, records the new content size on the
// file, and removes every other blob of the file, bytes included.
func (s *Service) finalize(ctx context.Context, b Blob, totalSize int64) error {
	now := s.nowFunc()
	if err := s.records.MarkFinished(ctx, b.ID, totalSize, now); err != nil {
		return err
	}
	if err := s.files.SetContentUpdated(ctx, b.BucketID, b.FileID, totalSize, now); err != nil {
		return err
	}

	removed, err := s.records.DeleteAllExcept(ctx, b.FileID, b.ID)
	if err != nil {
		return err
	}
	for _, id := range removed {
		if err := s.bytes.Remove(id.String()); err != nil {
			s.logger.Warn("failed to remove superseded blob bytes",
				zap.String("blobId", id.String()), zap.Error(err))
		}
	}
	return nil
}

// failBlob marks a blob erroneous after a pipeline failure. The bytes stay
// on disk until the sweeper reclaims them.
func (s *Service) failBlob(ctx context.Context, b Blob, cause error) {
	metrics.BlobWriteErrors.Inc()
	if err := s.records.MarkErroneous(ctx, b.ID); err != nil {
		s.logger.Error("failed to mark blob erroneous",
			zap.String("blobId", b.ID.String()), zap.Error(err))
	}
	s.logger.Warn("blob write failed",
		zap.String("blobId", b.ID.String()),
		zap.String("fileId", b.FileID.String()),
		zap.Error(cause))
}

// ReadResult hands the caller a stream of the newest finished content.
// Content must be closed by the caller.
type ReadResult struct {
	Blob    Blob
	Content io.ReadCloser
	Size    int64
}

// Read opens the newest finished blob of a file for streaming.
func (s *Service) Read(ctx context.Context, userID, bucketID, fileID uuid.UUID) (ReadResult, error) {
	if _, err := s.files.Get(ctx, bucketID, fileID); err != nil {
		return ReadResult{}, err
	}
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermViewContent); err != nil {
		return ReadResult{}, err
	}

	b, err := s.records.LatestFinished(ctx, bucketID, fileID)
	if err != nil {
		return ReadResult{}, err
	}
	reader, size, err := s.bytes.Reader(b.ID.String())
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{Blob: b, Content: reader, Size: size}, nil
}

// SweepStale reclaims erroneous blobs, abandoned in-progress blobs older
// than the stale age, and finished blobs superseded by newer content. It is
// idempotent: a second sweep finds nothing.
func (s *Service) SweepStale(ctx context.Context) (int, error) {
	cutoff := s.nowFunc().Add(-s.cfg.StaleAge)
	sweepable, err := s.records.ListSweepable(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, b := range sweepable {
		if err := s.bytes.Remove(b.ID.String()); err != nil {
			s.logger.Warn("sweep: failed to remove blob bytes",
				zap.String("blobId", b.ID.String()), zap.Error(err))
			continue
		}
		if err := s.records.Delete(ctx, b.ID); err != nil {
			s.logger.Warn("sweep: failed to delete blob record",
				zap.String("blobId", b.ID.String()), zap.Error(err))
			continue
		}
		swept++
	}
	metrics.BlobsSwept.Add(float64(swept))
	return swept, nil
}

// PurgeFile removes every blob of a file, records and bytes. The bucket id
// is part of the purger contract even though records are keyed by file.
func (s *Service) PurgeFile(ctx context.Context, _, fileID uuid.UUID) error {
	ids, err := s.records.DeleteAllOfFile(ctx, fileID)
	if err != nil {
		return err
	}
	return s.removeBytes(ids)
}

// PurgeBucket removes every blob in a bucket, records and bytes.
func (s *Service) PurgeBucket(ctx context.Context, bucketID uuid.UUID) error {
	ids, err := s.records.DeleteAllOfBucket(ctx, bucketID)
	if err != nil {
		return err
	}
	return s.removeBytes(ids)
}

func (s *Service) removeBytes(ids []uuid.UUID) error {
	for _, id := range ids {
		if err := s.bytes.Remove(id.String()); err != nil {
			return fmt.Errorf("remove blob bytes %s: %w", id, err)
		}
	}
	return nil
}
