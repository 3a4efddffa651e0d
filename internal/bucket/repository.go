package bucket

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

// Repository provides access to bucket storage. Authorizations are stored as
// a jsonb document on the bucket row, mirroring their all-or-nothing
// replacement semantics.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a new bucket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const bucketColumns = `id, name, crypt_spec, crypt_data, meta_data, authorizations, created_by, created_at, updated_at`

func scanBucket(row pgx.Row) (Bucket, error) {
	var b Bucket
	err := row.Scan(&b.ID, &b.Name, &b.CryptSpec, &b.CryptData, &b.MetaData,
		&b.Authorizations, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// Create inserts a new bucket row.
func (r *Repository) Create(ctx context.Context, bucket Bucket) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	query := `
INSERT INTO buckets (id, name, crypt_spec, crypt_data, meta_data, authorizations, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + bucketColumns + `;`

	stored, err := scanBucket(r.pool.QueryRow(ctx, query,
		bucket.ID, bucket.Name, bucket.CryptSpec, bucket.CryptData,
		bucket.MetaData, bucket.Authorizations, bucket.CreatedBy))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return Bucket{}, ErrBucketNameTaken
		}
		return Bucket{}, fmt.Errorf("create bucket: %w", err)
	}
	return stored, nil
}

// Get fetches a bucket by id.
func (r *Repository) Get(ctx context.Context, bucketID uuid.UUID) (Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	bucket, err := scanBucket(r.pool.QueryRow(ctx,
		`SELECT `+bucketColumns+` FROM buckets WHERE id = $1;`, bucketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bucket{}, ErrBucketNotFound
		}
		return Bucket{}, fmt.Errorf("get bucket: %w", err)
	}
	return bucket, nil
}

// List returns every bucket. Visibility filtering happens in the service.
func (r *Repository) List(ctx context.Context) ([]Bucket, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT `+bucketColumns+` FROM buckets ORDER BY created_at;`)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		bucket, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate buckets: %w", err)
	}
	return buckets, nil
}

// SetName renames a bucket.
func (r *Repository) SetName(ctx context.Context, bucketID uuid.UUID, name string) error {
	err := r.update(ctx, bucketID, `UPDATE buckets SET name = $2, updated_at = now() WHERE id = $1;`, name)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrBucketNameTaken
	}
	return err
}

// SetMetaData replaces the plaintext metadata document.
func (r *Repository) SetMetaData(ctx context.Context, bucketID uuid.UUID, metaData map[string]any) error {
	return r.update(ctx, bucketID, `UPDATE buckets SET meta_data = $2, updated_at = now() WHERE id = $1;`, metaData)
}

// SetAuthorizations replaces the authorization list wholesale.
func (r *Repository) SetAuthorizations(ctx context.Context, bucketID uuid.UUID, authorizations []Authorization) error {
	return r.update(ctx, bucketID, `UPDATE buckets SET authorizations = $2, updated_at = now() WHERE id = $1;`, authorizations)
}

// Delete removes the bucket row. Directories, files, and blob records go with
// it via FK cascade.
func (r *Repository) Delete(ctx context.Context, bucketID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM buckets WHERE id = $1;`, bucketID)
	if err != nil {
		return fmt.Errorf("delete bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBucketNotFound
	}
	return nil
}

func (r *Repository) update(ctx context.Context, bucketID uuid.UUID, query string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, query, append([]any{bucketID}, args...)...)
	if err != nil {
		return fmt.Errorf("update bucket: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBucketNotFound
	}
	return nil
}
