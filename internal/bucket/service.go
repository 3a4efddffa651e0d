package bucket

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type repository interface {
	Create(ctx context.Context, bucket Bucket) (Bucket, error)
	Get(ctx context.Context, bucketID uuid.UUID) (Bucket, error)
	List(ctx context.Context) ([]Bucket, error)
	SetName(ctx context.Context, bucketID uuid.UUID, name string) error
	SetMetaData(ctx context.Context, bucketID uuid.UUID, metaData map[string]any) error
	SetAuthorizations(ctx context.Context, bucketID uuid.UUID, authorizations []Authorization) error
	Delete(ctx context.Context, bucketID uuid.UUID) error
}

// rootDirectoryCreator creates the root directory that every bucket starts with.
type rootDirectoryCreator interface {
	CreateRoot(ctx context.Context, bucketID uuid.UUID, name string, createdBy uuid.UUID) (uuid.UUID, error)
}

// contentPurger removes all blob bytes and records belonging to a bucket.
type contentPurger interface {
	PurgeBucket(ctx context.Context, bucketID uuid.UUID) error
}

// bucketGetter is the slice of the repository the permission gate needs.
type bucketGetter interface {
	Get(ctx context.Context, bucketID uuid.UUID) (Bucket, error)
}

// Gate checks bucket permissions. It only reads bucket records, so it can
// be handed to the content packages without pulling in the full service.
type Gate struct {
	repo bucketGetter
}

func NewGate(repo bucketGetter) *Gate {
	return &Gate{repo: repo}
}

// RequirePermission checks the user's explicit authorization on the bucket.
// Results are never cached; callers invoke this on every request.
func (g *Gate) RequirePermission(ctx context.Context, userID, bucketID uuid.UUID, permission Permission) error {
	bucket, err := g.repo.Get(ctx, bucketID)
	if err != nil {
		return err
	}

	authorization, ok := bucket.AuthorizationFor(userID)
	if !ok {
		return ErrNotAuthorized
	}
	if !authorization.Permissions[permission] {
		return ErrPermissionDenied
	}
	return nil
}

// Service orchestrates bucket operations and acts as the permission half of
// the authorization gate: every content operation calls RequirePermission
// before touching bucket data.
type Service struct {
	repo   repository
	gate   *Gate
	dirs   rootDirectoryCreator
	purger contentPurger
}

// NewService constructs a bucket service.
func NewService(repo repository, dirs rootDirectoryCreator, purger contentPurger) *Service {
	return &Service{repo: repo, gate: NewGate(repo), dirs: dirs, purger: purger}
}

// RequirePermission checks the user's explicit authorization on the bucket.
func (s *Service) RequirePermission(ctx context.Context, userID, bucketID uuid.UUID, permission Permission) error {
	return s.gate.RequirePermission(ctx, userID, bucketID, permission)
}

// CreateResult reports the ids minted by Create.
type CreateResult struct {
	Bucket          Bucket
	RootDirectoryID uuid.UUID
}

// Create registers a bucket, grants the creator every permission, and creates
// the bucket's root directory. The caller is responsible for checking the
// CREATE_BUCKET global permission.
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, name, cryptSpec, cryptData string, metaData map[string]any) (CreateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CreateResult{}, fmt.Errorf("bucket name required")
	}
	if metaData == nil {
		metaData = map[string]any{}
	}

	bucket, err := s.repo.Create(ctx, Bucket{
		ID:        uuid.New(),
		Name:      name,
		CryptSpec: cryptSpec,
		CryptData: cryptData,
		MetaData:  metaData,
		Authorizations: []Authorization{{
			UserID:      creatorID,
			Notes:       "Created this bucket",
			Permissions: AllAllowedPermissions(),
		}},
		CreatedBy: creatorID,
	})
	if err != nil {
		return CreateResult{}, err
	}

	rootID, err := s.dirs.CreateRoot(ctx, bucket.ID, name+" Root", creatorID)
	if err != nil {
		return CreateResult{}, fmt.Errorf("create root directory: %w", err)
	}

	return CreateResult{Bucket: bucket, RootDirectoryID: rootID}, nil
}

// List returns the buckets the user holds an authorization entry on.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Bucket, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	var visible []Bucket
	for _, bucket := range all {
		if _, ok := bucket.AuthorizationFor(userID); ok {
			visible = append(visible, bucket)
		}
	}
	return visible, nil
}

// Get returns a bucket the user is authorized on.
func (s *Service) Get(ctx context.Context, userID, bucketID uuid.UUID) (Bucket, error) {
	bucket, err := s.repo.Get(ctx, bucketID)
	if err != nil {
		return Bucket{}, err
	}
	if _, ok := bucket.AuthorizationFor(userID); !ok {
		return Bucket{}, ErrNotAuthorized
	}
	return bucket, nil
}

// Rename changes the bucket name. Requires MODIFY.
func (s *Service) Rename(ctx context.Context, userID, bucketID uuid.UUID, name string) error {
	if err := s.RequirePermission(ctx, userID, bucketID, PermModify); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("bucket name required")
	}
	return s.repo.SetName(ctx, bucketID, name)
}

// SetMetaData replaces the plaintext metadata. Requires MODIFY.
func (s *Service) SetMetaData(ctx context.Context, userID, bucketID uuid.UUID, metaData map[string]any) error {
	if err := s.RequirePermission(ctx, userID, bucketID, PermModify); err != nil {
		return err
	}
	return s.repo.SetMetaData(ctx, bucketID, metaData)
}

// SetAuthorizations replaces the authorization list. Requires MANAGE_AUTHORIZATION.
func (s *Service) SetAuthorizations(ctx context.Context, userID, bucketID uuid.UUID, authorizations []Authorization) error {
	if err := s.RequirePermission(ctx, userID, bucketID, PermManageAuthorization); err != nil {
		return err
	}
	for i := range authorizations {
		if authorizations[i].Permissions == nil {
			authorizations[i].Permissions = AllForbiddenPermissions()
		}
	}
	return s.repo.SetAuthorizations(ctx, bucketID, authorizations)
}

// Destroy removes the bucket and everything under it: blob bytes first, then
// the record graph. Requires DESTROY.
func (s *Service) Destroy(ctx context.Context, userID, bucketID uuid.UUID) error {
	if err := s.RequirePermission(ctx, userID, bucketID, PermDestroy); err != nil {
		return err
	}
	if err := s.purger.PurgeBucket(ctx, bucketID); err != nil {
		return fmt.Errorf("purge bucket blobs: %w", err)
	}
	return s.repo.Delete(ctx, bucketID)
}
