package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
	"github.com/nkrypt-xyz/nkstore/internal/file"
)

type repository interface {
	Create(ctx context.Context, d Directory) (Directory, error)
	Get(ctx context.Context, bucketID, directoryID uuid.UUID) (Directory, error)
	ListChildren(ctx context.Context, bucketID, parentDirectoryID uuid.UUID) ([]Directory, error)
	IsDescendant(ctx context.Context, bucketID, ancestorID, candidateID uuid.UUID) (bool, error)
	DescendantFileIDs(ctx context.Context, bucketID, directoryID uuid.UUID) ([]uuid.UUID, error)
	SetName(ctx context.Context, directoryID uuid.UUID, name string) error
	SetParent(ctx context.Context, directoryID, parentDirectoryID uuid.UUID) error
	SetMetaData(ctx context.Context, directoryID uuid.UUID, metaData map[string]any) error
	SetEncryptedMetaData(ctx context.Context, directoryID uuid.UUID, encryptedMetaData string) error
	Delete(ctx context.Context, directoryID uuid.UUID) error
}

type permissionGate interface {
	RequirePermission(ctx context.Context, userID, bucketID uuid.UUID, permission bucket.Permission) error
}

// fileLister provides the file half of a directory listing.
type fileLister interface {
	ListByDirectory(ctx context.Context, bucketID, directoryID uuid.UUID) ([]file.File, error)
}

type contentPurger interface {
	PurgeFile(ctx context.Context, bucketID, fileID uuid.UUID) error
}

// Service manages the directory tree of each bucket.
type Service struct {
	repo   repository
	gate   permissionGate
	files  fileLister
	purger contentPurger
}

func NewService(repo repository, gate permissionGate, files fileLister, purger contentPurger) *Service {
	return &Service{repo: repo, gate: gate, files: files, purger: purger}
}

// CreateRoot creates a bucket's root directory. Called during bucket
// creation, after the caller has already cleared the permission checks.
func (s *Service) CreateRoot(ctx context.Context, bucketID uuid.UUID, name string, createdBy uuid.UUID) (uuid.UUID, error) {
	created, err := s.repo.Create(ctx, Directory{
		ID:        uuid.New(),
		BucketID:  bucketID,
		Name:      name,
		MetaData:  map[string]any{},
		CreatedBy: createdBy,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

// Create adds a directory under an existing parent. Requires MANAGE_CONTENT.
func (s *Service) Create(ctx context.Context, userID, bucketID, parentDirectoryID uuid.UUID, name, encryptedMetaData string, metaData map[string]any) (Directory, error) {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return Directory{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Directory{}, fmt.Errorf("directory name required")
	}
	if _, err := s.repo.Get(ctx, bucketID, parentDirectoryID); err != nil {
		return Directory{}, err
	}
	if metaData == nil {
		metaData = map[string]any{}
	}

	return s.repo.Create(ctx, Directory{
		ID:                uuid.New(),
		BucketID:          bucketID,
		ParentDirectoryID: &parentDirectoryID,
		Name:              name,
		MetaData:          metaData,
		EncryptedMetaData: encryptedMetaData,
		CreatedBy:         userID,
	})
}

// Listing is a directory together with its immediate children.
type Listing struct {
	Directory        Directory   `json:"directory"`
	ChildDirectories []Directory `json:"childDirectories"`
	ChildFiles       []file.File `json:"childFiles"`
}

// Get returns the directory and its direct children. Requires VIEW_CONTENT.
func (s *Service) Get(ctx context.Context, userID, bucketID, directoryID uuid.UUID) (Listing, error) {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermViewContent); err != nil {
		return Listing{}, err
	}
	d, err := s.repo.Get(ctx, bucketID, directoryID)
	if err != nil {
		return Listing{}, err
	}
	childDirs, err := s.repo.ListChildren(ctx, bucketID, directoryID)
	if err != nil {
		return Listing{}, err
	}
	childFiles, err := s.files.ListByDirectory(ctx, bucketID, directoryID)
	if err != nil {
		return Listing{}, err
	}
	return Listing{Directory: d, ChildDirectories: childDirs, ChildFiles: childFiles}, nil
}

// Rename changes the directory name. Requires MANAGE_CONTENT.
func (s *Service) Rename(ctx context.Context, userID, bucketID, directoryID uuid.UUID, name string) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("directory name required")
	}
	if _, err := s.repo.Get(ctx, bucketID, directoryID); err != nil {
		return err
	}
	return s.repo.SetName(ctx, directoryID, name)
}

// Move reparents a directory. The root cannot move, and a directory can
// never become a descendant of itself. Requires MANAGE_CONTENT.
func (s *Service) Move(ctx context.Context, userID, bucketID, directoryID, newParentDirectoryID uuid.UUID) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	d, err := s.repo.Get(ctx, bucketID, directoryID)
	if err != nil {
		return err
	}
	if d.IsRoot() {
		return ErrRootDirectory
	}
	if _, err := s.repo.Get(ctx, bucketID, newParentDirectoryID); err != nil {
		return err
	}

	circular, err := s.repo.IsDescendant(ctx, bucketID, directoryID, newParentDirectoryID)
	if err != nil {
		return err
	}
	if circular {
		return ErrCircularMove
	}
	return s.repo.SetParent(ctx, directoryID, newParentDirectoryID)
}

// SetMetaData replaces the plaintext metadata. Requires MANAGE_CONTENT.
func (s *Service) SetMetaData(ctx context.Context, userID, bucketID, directoryID uuid.UUID, metaData map[string]any) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, bucketID, directoryID); err != nil {
		return err
	}
	return s.repo.SetMetaData(ctx, directoryID, metaData)
}

// SetEncryptedMetaData replaces the opaque client-side metadata blob.
// Requires MANAGE_CONTENT.
func (s *Service) SetEncryptedMetaData(ctx context.Context, userID, bucketID, directoryID uuid.UUID, encryptedMetaData string) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, bucketID, directoryID); err != nil {
		return err
	}
	return s.repo.SetEncryptedMetaData(ctx, directoryID, encryptedMetaData)
}

// Delete removes the directory and its whole subtree. Blob bytes of every
// file in the subtree are purged before the records cascade away. The root
// directory cannot be deleted. Requires MANAGE_CONTENT.
func (s *Service) Delete(ctx context.Context, userID, bucketID, directoryID uuid.UUID) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	d, err := s.repo.Get(ctx, bucketID, directoryID)
	if err != nil {
		return err
	}
	if d.IsRoot() {
		return ErrRootDirectory
	}

	fileIDs, err := s.repo.DescendantFileIDs(ctx, bucketID, directoryID)
	if err != nil {
		return err
	}
	for _, fileID := range fileIDs {
		if err := s.purger.PurgeFile(ctx, bucketID, fileID); err != nil {
			return fmt.Errorf("purge file %s: %w", fileID, err)
		}
	}
	return s.repo.Delete(ctx, directoryID)
}

// EnsureDirectoryBelongsToBucket verifies a bucket/directory pairing.
func (s *Service) EnsureDirectoryBelongsToBucket(ctx context.Context, bucketID, directoryID uuid.UUID) error {
	_, err := s.repo.Get(ctx, bucketID, directoryID)
	return err
}
