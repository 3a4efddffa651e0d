package file

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoTimeout = 5 * time.Second

const uniqueViolationCode = "23505"

const fileColumns = `id, bucket_id, parent_directory_id, name, meta_data, encrypted_meta_data,
	size_after_encryption_bytes, content_updated_at, created_by, created_at, updated_at`

// Repository persists file records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanFile(row pgx.Row) (File, error) {
	var f File
	err := row.Scan(
		&f.ID, &f.BucketID, &f.ParentDirectoryID, &f.Name, &f.MetaData, &f.EncryptedMetaData,
		&f.SizeAfterEncryptionBytes, &f.ContentUpdatedAt, &f.CreatedBy, &f.CreatedAt, &f.UpdatedAt,
	)
	return f, err
}

func (r *Repository) Create(ctx context.Context, f File) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO files (id, bucket_id, parent_directory_id, name, meta_data, encrypted_meta_data,
			size_after_encryption_bytes, content_updated_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+fileColumns,
		f.ID, f.BucketID, f.ParentDirectoryID, f.Name, f.MetaData, f.EncryptedMetaData,
		f.SizeAfterEncryptionBytes, f.ContentUpdatedAt, f.CreatedBy,
	)

	created, err := scanFile(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return File{}, ErrNameTaken
		}
		return File{}, fmt.Errorf("insert file: %w", err)
	}
	return created, nil
}

// Get looks a file up within a bucket. A file that exists under a different
// bucket id yields ErrFileNotInBucket so callers can report the mismatch.
func (r *Repository) Get(ctx context.Context, bucketID, fileID uuid.UUID) (File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID)
	f, err := scanFile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return File{}, ErrFileNotFound
		}
		return File{}, fmt.Errorf("select file: %w", err)
	}
	if f.BucketID != bucketID {
		return File{}, ErrFileNotInBucket
	}
	return f, nil
}

// ListByDirectory returns the files directly under a directory, name-ordered.
func (r *Repository) ListByDirectory(ctx context.Context, bucketID, directoryID uuid.UUID) ([]File, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+fileColumns+`
		FROM files
		WHERE bucket_id = $1 AND parent_directory_id = $2
		ORDER BY name`,
		bucketID, directoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (r *Repository) update(ctx context.Context, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return ErrNameTaken
		}
		return fmt.Errorf("update file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (r *Repository) SetName(ctx context.Context, fileID uuid.UUID, name string) error {
	return r.update(ctx, `UPDATE files SET name = $2, updated_at = now() WHERE id = $1`, fileID, name)
}

func (r *Repository) SetParent(ctx context.Context, fileID, parentDirectoryID uuid.UUID, name string) error {
	return r.update(ctx, `UPDATE files SET parent_directory_id = $2, name = $3, updated_at = now() WHERE id = $1`,
		fileID, parentDirectoryID, name)
}

func (r *Repository) SetMetaData(ctx context.Context, fileID uuid.UUID, metaData map[string]any) error {
	return r.update(ctx, `UPDATE files SET meta_data = $2, updated_at = now() WHERE id = $1`, fileID, metaData)
}

func (r *Repository) SetEncryptedMetaData(ctx context.Context, fileID uuid.UUID, encryptedMetaData string) error {
	return r.update(ctx, `UPDATE files SET encrypted_meta_data = $2, updated_at = now() WHERE id = $1`, fileID, encryptedMetaData)
}

// SetContentUpdated records the outcome of a finalized upload.
func (r *Repository) SetContentUpdated(ctx context.Context, bucketID, fileID uuid.UUID, sizeBytes int64, at time.Time) error {
	return r.update(ctx, `
		UPDATE files SET size_after_encryption_bytes = $3, content_updated_at = $4, updated_at = now()
		WHERE id = $2 AND bucket_id = $1`,
		bucketID, fileID, sizeBytes, at)
}

func (r *Repository) Delete(ctx context.Context, fileID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}
