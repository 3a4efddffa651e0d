package directory

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

const directoryColumns = `id, bucket_id, parent_directory_id, name, meta_data, encrypted_meta_data,
	created_by, created_at, updated_at`

// Repository persists directory records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanDirectory(row pgx.Row) (Directory, error) {
	var d Directory
	err := row.Scan(
		&d.ID, &d.BucketID, &d.ParentDirectoryID, &d.Name, &d.MetaData, &d.EncryptedMetaData,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func (r *Repository) Create(ctx context.Context, d Directory) (Directory, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO directories (id, bucket_id, parent_directory_id, name, meta_data, encrypted_meta_data, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+directoryColumns,
		d.ID, d.BucketID, d.ParentDirectoryID, d.Name, d.MetaData, d.EncryptedMetaData, d.CreatedBy,
	)

	created, err := scanDirectory(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return Directory{}, ErrNameTaken
		}
		return Directory{}, fmt.Errorf("insert directory: %w", err)
	}
	return created, nil
}

func (r *Repository) Get(ctx context.Context, bucketID, directoryID uuid.UUID) (Directory, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `SELECT `+directoryColumns+` FROM directories WHERE id = $1`, directoryID)
	d, err := scanDirectory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Directory{}, ErrDirectoryNotFound
		}
		return Directory{}, fmt.Errorf("select directory: %w", err)
	}
	if d.BucketID != bucketID {
		return Directory{}, ErrDirectoryNotInBucket
	}
	return d, nil
}

// ListChildren returns the directories directly under a parent, name-ordered.
func (r *Repository) ListChildren(ctx context.Context, bucketID, parentDirectoryID uuid.UUID) ([]Directory, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT `+directoryColumns+`
		FROM directories
		WHERE bucket_id = $1 AND parent_directory_id = $2
		ORDER BY name`,
		bucketID, parentDirectoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("select directories: %w", err)
	}
	defer rows.Close()

	var dirs []Directory
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan directory: %w", err)
		}
		dirs = append(dirs, d)
	}
	return dirs, rows.Err()
}

// IsDescendant walks the subtree rooted at ancestorID and reports whether
// candidateID appears in it. The ancestor itself counts as its own descendant.
func (r *Repository) IsDescendant(ctx context.Context, bucketID, ancestorID, candidateID uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	var found bool
	err := r.pool.QueryRow(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM directories WHERE id = $2 AND bucket_id = $1
			UNION ALL
			SELECT d.id FROM directories d JOIN subtree s ON d.parent_directory_id = s.id
		)
		SELECT EXISTS (SELECT 1 FROM subtree WHERE id = $3)`,
		bucketID, ancestorID, candidateID,
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("walk subtree: %w", err)
	}
	return found, nil
}

// DescendantFileIDs collects the ids of every file anywhere under the
// directory, including files in the directory itself.
func (r *Repository) DescendantFileIDs(ctx context.Context, bucketID, directoryID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		WITH RECURSIVE subtree AS (
			SELECT id FROM directories WHERE id = $2 AND bucket_id = $1
			UNION ALL
			SELECT d.id FROM directories d JOIN subtree s ON d.parent_directory_id = s.id
		)
		SELECT f.id FROM files f JOIN subtree s ON f.parent_directory_id = s.id`,
		bucketID, directoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("collect subtree files: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan file id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
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
		return fmt.Errorf("update directory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDirectoryNotFound
	}
	return nil
}

func (r *Repository) SetName(ctx context.Context, directoryID uuid.UUID, name string) error {
	return r.update(ctx, `UPDATE directories SET name = $2, updated_at = now() WHERE id = $1`, directoryID, name)
}

func (r *Repository) SetParent(ctx context.Context, directoryID, parentDirectoryID uuid.UUID) error {
	return r.update(ctx, `UPDATE directories SET parent_directory_id = $2, updated_at = now() WHERE id = $1`,
		directoryID, parentDirectoryID)
}

func (r *Repository) SetMetaData(ctx context.Context, directoryID uuid.UUID, metaData map[string]any) error {
	return r.update(ctx, `UPDATE directories SET meta_data = $2, updated_at = now() WHERE id = $1`, directoryID, metaData)
}

func (r *Repository) SetEncryptedMetaData(ctx context.Context, directoryID uuid.UUID, encryptedMetaData string) error {
	return r.update(ctx, `UPDATE directories SET encrypted_meta_data = $2, updated_at = now() WHERE id = $1`,
		directoryID, encryptedMetaData)
}

// Delete removes the directory row. Child directories, files, and blob
// records follow through foreign key cascades.
func (r *Repository) Delete(ctx context.Context, directoryID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, repoTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM directories WHERE id = $1`, directoryID)
	if err != nil {
		return fmt.Errorf("delete directory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDirectoryNotFound
	}
	return nil
}
