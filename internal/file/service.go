package file

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
)

type repository interface {
	Create(ctx context.Context, f File) (File, error)
	Get(ctx context.Context, bucketID, fileID uuid.UUID) (File, error)
	ListByDirectory(ctx context.Context, bucketID, directoryID uuid.UUID) ([]File, error)
	SetName(ctx context.Context, fileID uuid.UUID, name string) error
	SetParent(ctx context.Context, fileID, parentDirectoryID uuid.UUID, name string) error
	SetMetaData(ctx context.Context, fileID uuid.UUID, metaData map[string]any) error
	SetEncryptedMetaData(ctx context.Context, fileID uuid.UUID, encryptedMetaData string) error
	Delete(ctx context.Context, fileID uuid.UUID) error
}

// permissionGate is the bucket-level half of the authorization gate.
type permissionGate interface {
	RequirePermission(ctx context.Context, userID, bucketID uuid.UUID, permission bucket.Permission) error
}

// directoryChecker verifies that a directory id lives inside a bucket.
type directoryChecker interface {
	EnsureDirectoryBelongsToBucket(ctx context.Context, bucketID, directoryID uuid.UUID) error
}

// contentPurger removes every blob (bytes and records) attached to a file.
type contentPurger interface {
	PurgeFile(ctx context.Context, bucketID, fileID uuid.UUID) error
}

// Service manages file records. Content bytes are handled elsewhere; the
// service only tracks the size and timestamp reported after finalization.
type Service struct {
	repo   repository
	gate   permissionGate
	dirs   directoryChecker
	purger contentPurger
}

func NewService(repo repository, gate permissionGate, dirs directoryChecker, purger contentPurger) *Service {
	return &Service{repo: repo, gate: gate, dirs: dirs, purger: purger}
}

// Create registers an empty file record under a directory. Requires MANAGE_CONTENT.
func (s *Service) Create(ctx context.Context, userID, bucketID, parentDirectoryID uuid.UUID, name, encryptedMetaData string, metaData map[string]any) (File, error) {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return File{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return File{}, fmt.Errorf("file name required")
	}
	if err := s.dirs.EnsureDirectoryBelongsToBucket(ctx, bucketID, parentDirectoryID); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrParentDirectoryNotFound, err)
	}
	if metaData == nil {
		metaData = map[string]any{}
	}

	return s.repo.Create(ctx, File{
		ID:                uuid.New(),
		BucketID:          bucketID,
		ParentDirectoryID: parentDirectoryID,
		Name:              name,
		MetaData:          metaData,
		EncryptedMetaData: encryptedMetaData,
		ContentUpdatedAt:  time.Now().UTC(),
		CreatedBy:         userID,
	})
}

// Get returns a file record. Requires VIEW_CONTENT.
func (s *Service) Get(ctx context.Context, userID, bucketID, fileID uuid.UUID) (File, error) {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermViewContent); err != nil {
		return File{}, err
	}
	return s.repo.Get(ctx, bucketID, fileID)
}

// Rename changes the file name within its directory. Requires MANAGE_CONTENT.
func (s *Service) Rename(ctx context.Context, userID, bucketID, fileID uuid.UUID, name string) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("file name required")
	}
	if _, err := s.repo.Get(ctx, bucketID, fileID); err != nil {
		return err
	}
	return s.repo.SetName(ctx, fileID, name)
}

// Move reparents the file under another directory of the same bucket,
// optionally renaming it in the same step. Requires MANAGE_CONTENT.
func (s *Service) Move(ctx context.Context, userID, bucketID, fileID, newParentDirectoryID uuid.UUID, newName string) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, bucketID, fileID)
	if err != nil {
		return err
	}
	if err := s.dirs.EnsureDirectoryBelongsToBucket(ctx, bucketID, newParentDirectoryID); err != nil {
		return fmt.Errorf("%w: %v", ErrParentDirectoryNotFound, err)
	}

	newName = strings.TrimSpace(newName)
	if newName == "" {
		newName = current.Name
	}
	return s.repo.SetParent(ctx, fileID, newParentDirectoryID, newName)
}

// SetMetaData replaces the plaintext metadata. Requires MANAGE_CONTENT.
func (s *Service) SetMetaData(ctx context.Context, userID, bucketID, fileID uuid.UUID, metaData map[string]any) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, bucketID, fileID); err != nil {
		return err
	}
	return s.repo.SetMetaData(ctx, fileID, metaData)
}

// SetEncryptedMetaData replaces the opaque client-side metadata blob.
// Requires MANAGE_CONTENT.
func (s *Service) SetEncryptedMetaData(ctx context.Context, userID, bucketID, fileID uuid.UUID, encryptedMetaData string) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, bucketID, fileID); err != nil {
		return err
	}
	return s.repo.SetEncryptedMetaData(ctx, fileID, encryptedMetaData)
}

// Delete removes the file and all of its blobs. Requires MANAGE_CONTENT.
func (s *Service) Delete(ctx context.Context, userID, bucketID, fileID uuid.UUID) error {
	if err := s.gate.RequirePermission(ctx, userID, bucketID, bucket.PermManageContent); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, bucketID, fileID); err != nil {
		return err
	}
	if err := s.purger.PurgeFile(ctx, bucketID, fileID); err != nil {
		return fmt.Errorf("purge file blobs: %w", err)
	}
	return s.repo.Delete(ctx, fileID)
}
