package blob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const blobColumns = `id, bucket_id, file_id, status, crypto_header, size_bytes,
	started_at, finished_at, created_by, created_at, updated_at`

// Repository persists blob records in PostgreSQL. Blob bytes live on disk;
// only lifecycle state is tracked here.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanBlob(row pgx.Row) (Blob, error) {
	var b Blob
	err := row.Scan(
		&b.ID, &b.BucketID, &b.FileID, &b.Status, &b.CryptoHeader, &b.SizeBytes,
		&b.StartedAt, &b.FinishedAt, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (r *Repository) Create(ctx context.Context, b Blob) (Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO blobs (id, bucket_id, file_id, status, crypto_header, size_bytes, started_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+blobColumns,
		b.ID, b.BucketID, b.FileID, b.Status, b.CryptoHeader, b.SizeBytes, b.StartedAt, b.CreatedBy,
	)

	created, err := scanBlob(row)
	if err != nil {
		return Blob{}, fmt.Errorf("insert blob: %w", err)
	}
	return created, nil
}

// GetInProgress fetches a blob only while it is still accepting chunks.
// Finished and erroneous blobs are invisible here so stale clients cannot
// append to settled content.
func (r *Repository) GetInProgress(ctx context.Context, bucketID, fileID, blobID uuid.UUID) (Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT `+blobColumns+`
		FROM blobs
		WHERE id = $3 AND bucket_id = $1 AND file_id = $2 AND status = $4`,
		bucketID, fileID, blobID, StatusInProgress,
	)
	b, err := scanBlob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Blob{}, ErrBlobNotFound
		}
		return Blob{}, fmt.Errorf("select blob: %w", err)
	}
	return b, nil
}

// LatestFinished returns the newest finished blob of a file.
func (r *Repository) LatestFinished(ctx context.Context, bucketID, fileID uuid.UUID) (Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		SELECT `+blobColumns+`
		FROM blobs
		WHERE bucket_id = $1 AND file_id = $2 AND status = $3
		ORDER BY finished_at DESC
		LIMIT 1`,
		bucketID, fileID, StatusFinished,
	)
	b, err := scanBlob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Blob{}, ErrBlobNotFound
		}
		return Blob{}, fmt.Errorf("select finished blob: %w", err)
	}
	return b, nil
}

func (r *Repository) MarkFinished(ctx context.Context, blobID uuid.UUID, sizeBytes int64, finishedAt time.Time) error {
	return r.mark(ctx, `
		UPDATE blobs SET status = $2, size_bytes = $3, finished_at = $4, updated_at = now()
		WHERE id = $1 AND status = $5`,
		blobID, StatusFinished, sizeBytes, finishedAt, StatusInProgress)
}

func (r *Repository) MarkErroneous(ctx context.Context, blobID uuid.UUID) error {
	return r.mark(ctx, `
		UPDATE blobs SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`,
		blobID, StatusErroneous, StatusInProgress)
}

func (r *Repository) mark(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update blob status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlobNotFound
	}
	return nil
}

// DeleteAllExcept removes every blob record of a file other than the one to
// keep, returning the removed ids so their bytes can be deleted too.
func (r *Repository) DeleteAllExcept(ctx context.Context, fileID, keepBlobID uuid.UUID) ([]uuid.UUID, error) {
	return r.deleteReturning(ctx, `
		DELETE FROM blobs WHERE file_id = $1 AND id <> $2 RETURNING id`,
		fileID, keepBlobID)
}

// DeleteAllOfFile removes every blob record of a file.
func (r *Repository) DeleteAllOfFile(ctx context.Context, fileID uuid.UUID) ([]uuid.UUID, error) {
	return r.deleteReturning(ctx, `DELETE FROM blobs WHERE file_id = $1 RETURNING id`, fileID)
}

// DeleteAllOfBucket removes every blob record in a bucket.
func (r *Repository) DeleteAllOfBucket(ctx context.Context, bucketID uuid.UUID) ([]uuid.UUID, error) {
	return r.deleteReturning(ctx, `DELETE FROM blobs WHERE bucket_id = $1 RETURNING id`, bucketID)
}

func (r *Repository) deleteReturning(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("delete blobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan blob id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListSweepable returns the blobs the garbage sweeper should reclaim:
// erroneous blobs, in-progress blobs started before the cutoff, and
// finished blobs superseded by a newer finished blob of the same file.
func (r *Repository) ListSweepable(ctx context.Context, staleBefore time.Time) ([]Blob, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+blobColumns+`
		FROM blobs b
		WHERE b.status = $1
		   OR (b.status = $2 AND b.started_at < $3)
		   OR (b.status = $4 AND EXISTS (
				SELECT 1 FROM blobs newer
				WHERE newer.file_id = b.file_id AND newer.status = $4
				  AND newer.finished_at > b.finished_at
		   ))`,
		StatusErroneous, StatusInProgress, staleBefore, StatusFinished,
	)
	if err != nil {
		return nil, fmt.Errorf("select sweepable blobs: %w", err)
	}
	defer rows.Close()

	var blobs []Blob
	for rows.Next() {
		b, err := scanBlob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blob: %w", err)
		}
		blobs = append(blobs, b)
	}
	return blobs, rows.Err()
}

func (r *Repository) Delete(ctx context.Context, blobID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	if _, err := r.pool.Exec(ctx, `DELETE FROM blobs WHERE id = $1`, blobID); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
