package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
	"github.com/nkrypt-xyz/nkstore/internal/file"
)

type testWorld struct {
	service *Service
	repo    *fakeRepo
	files   *fakeFiles
	purger  *fakePurger
	userID  uuid.UUID
}

func newTestWorld() *testWorld {
	repo := newFakeRepo()
	files := &fakeFiles{files: make(map[uuid.UUID][]file.File)}
	purger := &fakePurger{}
	userID := uuid.New()
	service := NewService(repo, allowAllGate{}, files, purger)
	return &testWorld{service: service, repo: repo, files: files, purger: purger, userID: userID}
}

func TestCreateRootAndChildren(t *testing.T) {
	w := newTestWorld()
	bucketID := uuid.New()

	rootID, err := w.service.CreateRoot(context.Background(), bucketID, "Documents Root", w.userID)
	if err != nil {
		t.Fatalf("create root: %v", err)
	}

	child, err := w.service.Create(context.Background(), w.userID, bucketID, rootID, "photos", "", nil)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	listing, err := w.service.Get(context.Background(), w.userID, bucketID, rootID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !listing.Directory.IsRoot() {
		t.Fatalf("root directory should have no parent")
	}
	if len(listing.ChildDirectories) != 1 || listing.ChildDirectories[0].ID != child.ID {
		t.Fatalf("expected one child directory, got %+v", listing.ChildDirectories)
	}
}

func TestMoveRejectsCycles(t *testing.T) {
	w := newTestWorld()
	bucketID := uuid.New()

	rootID, _ := w.service.CreateRoot(context.Background(), bucketID, "Root", w.userID)
	a, _ := w.service.Create(context.Background(), w.userID, bucketID, rootID, "a", "", nil)
	b, _ := w.service.Create(context.Background(), w.userID, bucketID, a.ID, "b", "", nil)

	err := w.service.Move(context.Background(), w.userID, bucketID, a.ID, b.ID)
	if !errors.Is(err, ErrCircularMove) {
		t.Fatalf("expected ErrCircularMove, got %v", err)
	}
	err = w.service.Move(context.Background(), w.userID, bucketID, a.ID, a.ID)
	if !errors.Is(err, ErrCircularMove) {
		t.Fatalf("expected ErrCircularMove moving under itself, got %v", err)
	}

	if err := w.service.Move(context.Background(), w.userID, bucketID, b.ID, rootID); err != nil {
		t.Fatalf("legitimate move failed: %v", err)
	}
}

func TestRootIsProtected(t *testing.T) {
	w := newTestWorld()
	bucketID := uuid.New()

	rootID, _ := w.service.CreateRoot(context.Background(), bucketID, "Root", w.userID)
	a, _ := w.service.Create(context.Background(), w.userID, bucketID, rootID, "a", "", nil)

	if err := w.service.Move(context.Background(), w.userID, bucketID, rootID, a.ID); !errors.Is(err, ErrRootDirectory) {
		t.Fatalf("expected ErrRootDirectory from move, got %v", err)
	}
	if err := w.service.Delete(context.Background(), w.userID, bucketID, rootID); !errors.Is(err, ErrRootDirectory) {
		t.Fatalf("expected ErrRootDirectory from delete, got %v", err)
	}
}

func TestDeletePurgesSubtreeFiles(t *testing.T) {
	w := newTestWorld()
	bucketID := uuid.New()

	rootID, _ := w.service.CreateRoot(context.Background(), bucketID, "Root", w.userID)
	a, _ := w.service.Create(context.Background(), w.userID, bucketID, rootID, "a", "", nil)
	b, _ := w.service.Create(context.Background(), w.userID, bucketID, a.ID, "b", "", nil)

	w.repo.attachFile(a.ID, uuid.New())
	w.repo.attachFile(b.ID, uuid.New())

	if err := w.service.Delete(context.Background(), w.userID, bucketID, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if w.purger.purged != 2 {
		t.Fatalf("expected 2 purged files across the subtree, got %d", w.purger.purged)
	}
	if _, err := w.repo.Get(context.Background(), bucketID, a.ID); !errors.Is(err, ErrDirectoryNotFound) {
		t.Fatalf("expected subtree root removed, got %v", err)
	}
}

func TestEnsureDirectoryBelongsToBucket(t *testing.T) {
	w := newTestWorld()
	bucketID := uuid.New()

	rootID, _ := w.service.CreateRoot(context.Background(), bucketID, "Root", w.userID)

	if err := w.service.EnsureDirectoryBelongsToBucket(context.Background(), bucketID, rootID); err != nil {
		t.Fatalf("expected pairing to hold, got %v", err)
	}
	err := w.service.EnsureDirectoryBelongsToBucket(context.Background(), uuid.New(), rootID)
	if !errors.Is(err, ErrDirectoryNotInBucket) {
		t.Fatalf("expected ErrDirectoryNotInBucket, got %v", err)
	}
}

// --- fakes ---

type allowAllGate struct{}

func (allowAllGate) RequirePermission(context.Context, uuid.UUID, uuid.UUID, bucket.Permission) error {
	return nil
}

type fakeRepo struct {
	dirs      map[uuid.UUID]Directory
	filesByID map[uuid.UUID][]uuid.UUID // directory id -> file ids
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		dirs:      make(map[uuid.UUID]Directory),
		filesByID: make(map[uuid.UUID][]uuid.UUID),
	}
}

func (f *fakeRepo) attachFile(directoryID, fileID uuid.UUID) {
	f.filesByID[directoryID] = append(f.filesByID[directoryID], fileID)
}

func (f *fakeRepo) Create(_ context.Context, d Directory) (Directory, error) {
	f.dirs[d.ID] = d
	return d, nil
}

func (f *fakeRepo) Get(_ context.Context, bucketID, directoryID uuid.UUID) (Directory, error) {
	d, ok := f.dirs[directoryID]
	if !ok {
		return Directory{}, ErrDirectoryNotFound
	}
	if d.BucketID != bucketID {
		return Directory{}, ErrDirectoryNotInBucket
	}
	return d, nil
}

func (f *fakeRepo) ListChildren(_ context.Context, bucketID, parentDirectoryID uuid.UUID) ([]Directory, error) {
	var children []Directory
	for _, d := range f.dirs {
		if d.BucketID == bucketID && d.ParentDirectoryID != nil && *d.ParentDirectoryID == parentDirectoryID {
			children = append(children, d)
		}
	}
	return children, nil
}

func (f *fakeRepo) subtree(rootID uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{rootID}
	for i := 0; i < len(ids); i++ {
		for _, d := range f.dirs {
			if d.ParentDirectoryID != nil && *d.ParentDirectoryID == ids[i] {
				ids = append(ids, d.ID)
			}
		}
	}
	return ids
}

func (f *fakeRepo) IsDescendant(_ context.Context, _, ancestorID, candidateID uuid.UUID) (bool, error) {
	for _, id := range f.subtree(ancestorID) {
		if id == candidateID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) DescendantFileIDs(_ context.Context, _, directoryID uuid.UUID) ([]uuid.UUID, error) {
	var fileIDs []uuid.UUID
	for _, id := range f.subtree(directoryID) {
		fileIDs = append(fileIDs, f.filesByID[id]...)
	}
	return fileIDs, nil
}

func (f *fakeRepo) SetName(_ context.Context, directoryID uuid.UUID, name string) error {
	d, ok := f.dirs[directoryID]
	if !ok {
		return ErrDirectoryNotFound
	}
	d.Name = name
	f.dirs[directoryID] = d
	return nil
}

func (f *fakeRepo) SetParent(_ context.Context, directoryID, parentDirectoryID uuid.UUID) error {
	d, ok := f.dirs[directoryID]
	if !ok {
		return ErrDirectoryNotFound
	}
	parent := parentDirectoryID
	d.ParentDirectoryID = &parent
	f.dirs[directoryID] = d
	return nil
}

func (f *fakeRepo) SetMetaData(_ context.Context, directoryID uuid.UUID, metaData map[string]any) error {
	d, ok := f.dirs[directoryID]
	if !ok {
		return ErrDirectoryNotFound
	}
	d.MetaData = metaData
	f.dirs[directoryID] = d
	return nil
}

func (f *fakeRepo) SetEncryptedMetaData(_ context.Context, directoryID uuid.UUID, encryptedMetaData string) error {
	d, ok := f.dirs[directoryID]
	if !ok {
		return ErrDirectoryNotFound
	}
	d.EncryptedMetaData = encryptedMetaData
	f.dirs[directoryID] = d
	return nil
}

func (f *fakeRepo) Delete(_ context.Context, directoryID uuid.UUID) error {
	if _, ok := f.dirs[directoryID]; !ok {
		return ErrDirectoryNotFound
	}
	for _, id := range f.subtree(directoryID) {
		delete(f.dirs, id)
	}
	return nil
}

type fakeFiles struct {
	files map[uuid.UUID][]file.File
}

func (f *fakeFiles) ListByDirectory(_ context.Context, _, directoryID uuid.UUID) ([]file.File, error) {
	return f.files[directoryID], nil
}

type fakePurger struct {
	purged int
}

func (f *fakePurger) PurgeFile(_ context.Context, _, _ uuid.UUID) error {
	f.purged++
	return nil
}
