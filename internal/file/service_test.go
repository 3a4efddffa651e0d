package file

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
)

type testWorld struct {
	service *Service
	repo    *fakeRepo
	gate    *fakeGate
	dirs    *fakeDirs
	purger  *fakePurger
}

func newTestWorld() *testWorld {
	repo := newFakeRepo()
	gate := &fakeGate{grants: make(map[uuid.UUID]map[bucket.Permission]bool)}
	dirs := &fakeDirs{known: make(map[uuid.UUID]uuid.UUID)}
	purger := &fakePurger{}
	return &testWorld{
		service: NewService(repo, gate, dirs, purger),
		repo:    repo,
		gate:    gate,
		dirs:    dirs,
		purger:  purger,
	}
}

func (w *testWorld) grantAll(userID uuid.UUID) {
	w.gate.grants[userID] = map[bucket.Permission]bool{
		bucket.PermModify:              true,
		bucket.PermViewContent:         true,
		bucket.PermManageContent:       true,
		bucket.PermManageAuthorization: true,
		bucket.PermDestroy:             true,
	}
}

func (w *testWorld) addDirectory(bucketID uuid.UUID) uuid.UUID {
	directoryID := uuid.New()
	w.dirs.known[directoryID] = bucketID
	return directoryID
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	w := newTestWorld()
	userID := uuid.New()
	bucketID := uuid.New()
	w.grantAll(userID)
	dirID := w.addDirectory(bucketID)

	created, err := w.service.Create(context.Background(), userID, bucketID, dirID, "notes.txt", "cipher-meta", map[string]any{"kind": "text"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := w.service.Get(context.Background(), userID, bucketID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "notes.txt" || got.EncryptedMetaData != "cipher-meta" {
		t.Fatalf("unexpected file %+v", got)
	}
	if got.SizeAfterEncryptionBytes != 0 {
		t.Fatalf("new file should report zero size, got %d", got.SizeAfterEncryptionBytes)
	}
}

func TestCreateRejectsForeignParentDirectory(t *testing.T) {
	w := newTestWorld()
	userID := uuid.New()
	bucketID := uuid.New()
	w.grantAll(userID)
	foreignDir := w.addDirectory(uuid.New())

	_, err := w.service.Create(context.Background(), userID, bucketID, foreignDir, "notes.txt", "", nil)
	if !errors.Is(err, ErrParentDirectoryNotFound) {
		t.Fatalf("expected ErrParentDirectoryNotFound, got %v", err)
	}
}

func TestGetRejectsCrossBucketAccess(t *testing.T) {
	w := newTestWorld()
	userID := uuid.New()
	bucketID := uuid.New()
	otherBucketID := uuid.New()
	w.grantAll(userID)
	dirID := w.addDirectory(bucketID)

	created, err := w.service.Create(context.Background(), userID, bucketID, dirID, "notes.txt", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = w.service.Get(context.Background(), userID, otherBucketID, created.ID)
	if !errors.Is(err, ErrFileNotInBucket) {
		t.Fatalf("expected ErrFileNotInBucket, got %v", err)
	}
}

func TestOperationsRequireBucketPermission(t *testing.T) {
	w := newTestWorld()
	ownerID := uuid.New()
	strangerID := uuid.New()
	bucketID := uuid.New()
	w.grantAll(ownerID)
	dirID := w.addDirectory(bucketID)

	created, err := w.service.Create(context.Background(), ownerID, bucketID, dirID, "notes.txt", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := w.service.Get(context.Background(), strangerID, bucketID, created.ID); !errors.Is(err, bucket.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized from get, got %v", err)
	}
	if err := w.service.Rename(context.Background(), strangerID, bucketID, created.ID, "x"); !errors.Is(err, bucket.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized from rename, got %v", err)
	}
	if err := w.service.Delete(context.Background(), strangerID, bucketID, created.ID); !errors.Is(err, bucket.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized from delete, got %v", err)
	}
	if w.purger.purged != 0 {
		t.Fatalf("purge must not run for unauthorized callers")
	}
}

func TestMoveKeepsNameWhenOmitted(t *testing.T) {
	w := newTestWorld()
	userID := uuid.New()
	bucketID := uuid.New()
	w.grantAll(userID)
	dirID := w.addDirectory(bucketID)
	otherDirID := w.addDirectory(bucketID)

	created, err := w.service.Create(context.Background(), userID, bucketID, dirID, "notes.txt", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := w.service.Move(context.Background(), userID, bucketID, created.ID, otherDirID, ""); err != nil {
		t.Fatalf("move: %v", err)
	}

	moved, err := w.service.Get(context.Background(), userID, bucketID, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if moved.ParentDirectoryID != otherDirID {
		t.Fatalf("expected parent %s, got %s", otherDirID, moved.ParentDirectoryID)
	}
	if moved.Name != "notes.txt" {
		t.Fatalf("move without a new name must keep the old one, got %q", moved.Name)
	}
}

func TestDeletePurgesBlobsBeforeRecord(t *testing.T) {
	w := newTestWorld()
	userID := uuid.New()
	bucketID := uuid.New()
	w.grantAll(userID)
	dirID := w.addDirectory(bucketID)

	created, err := w.service.Create(context.Background(), userID, bucketID, dirID, "notes.txt", "", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := w.service.Delete(context.Background(), userID, bucketID, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if w.purger.purged != 1 {
		t.Fatalf("expected one purge, got %d", w.purger.purged)
	}
	if _, err := w.service.Get(context.Background(), userID, bucketID, created.ID); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound after delete, got %v", err)
	}
}

// --- fakes ---

type fakeRepo struct {
	files map[uuid.UUID]File
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{files: make(map[uuid.UUID]File)}
}

func (f *fakeRepo) Create(_ context.Context, file File) (File, error) {
	for _, existing := range f.files {
		if existing.ParentDirectoryID == file.ParentDirectoryID && existing.Name == file.Name {
			return File{}, ErrNameTaken
		}
	}
	f.files[file.ID] = file
	return file, nil
}

func (f *fakeRepo) Get(_ context.Context, bucketID, fileID uuid.UUID) (File, error) {
	file, ok := f.files[fileID]
	if !ok {
		return File{}, ErrFileNotFound
	}
	if file.BucketID != bucketID {
		return File{}, ErrFileNotInBucket
	}
	return file, nil
}

func (f *fakeRepo) ListByDirectory(_ context.Context, bucketID, directoryID uuid.UUID) ([]File, error) {
	var files []File
	for _, file := range f.files {
		if file.BucketID == bucketID && file.ParentDirectoryID == directoryID {
			files = append(files, file)
		}
	}
	return files, nil
}

func (f *fakeRepo) SetName(_ context.Context, fileID uuid.UUID, name string) error {
	file, ok := f.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	file.Name = name
	f.files[fileID] = file
	return nil
}

func (f *fakeRepo) SetParent(_ context.Context, fileID, parentDirectoryID uuid.UUID, name string) error {
	file, ok := f.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	file.ParentDirectoryID = parentDirectoryID
	file.Name = name
	f.files[fileID] = file
	return nil
}

func (f *fakeRepo) SetMetaData(_ context.Context, fileID uuid.UUID, metaData map[string]any) error {
	file, ok := f.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	file.MetaData = metaData
	f.files[fileID] = file
	return nil
}

func (f *fakeRepo) SetEncryptedMetaData(_ context.Context, fileID uuid.UUID, encryptedMetaData string) error {
	file, ok := f.files[fileID]
	if !ok {
		return ErrFileNotFound
	}
	file.EncryptedMetaData = encryptedMetaData
	f.files[fileID] = file
	return nil
}

func (f *fakeRepo) SetContentUpdated(_ context.Context, bucketID, fileID uuid.UUID, sizeBytes int64, at time.Time) error {
	file, ok := f.files[fileID]
	if !ok || file.BucketID != bucketID {
		return ErrFileNotFound
	}
	file.SizeAfterEncryptionBytes = sizeBytes
	file.ContentUpdatedAt = at
	f.files[fileID] = file
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, fileID uuid.UUID) error {
	if _, ok := f.files[fileID]; !ok {
		return ErrFileNotFound
	}
	delete(f.files, fileID)
	return nil
}

type fakeGate struct {
	grants map[uuid.UUID]map[bucket.Permission]bool
}

func (f *fakeGate) RequirePermission(_ context.Context, userID, _ uuid.UUID, permission bucket.Permission) error {
	perms, ok := f.grants[userID]
	if !ok {
		return bucket.ErrNotAuthorized
	}
	if !perms[permission] {
		return bucket.ErrPermissionDenied
	}
	return nil
}

type fakeDirs struct {
	known map[uuid.UUID]uuid.UUID // directory id -> bucket id
}

func (f *fakeDirs) EnsureDirectoryBelongsToBucket(_ context.Context, bucketID, directoryID uuid.UUID) error {
	owner, ok := f.known[directoryID]
	if !ok || owner != bucketID {
		return errors.New("directory not found in bucket")
	}
	return nil
}

type fakePurger struct {
	purged int
}

func (f *fakePurger) PurgeFile(_ context.Context, _, _ uuid.UUID) error {
	f.purged++
	return nil
}
