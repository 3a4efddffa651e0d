package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nkrypt-xyz/nkstore/internal/blobstore"
	"github.com/nkrypt-xyz/nkstore/internal/bucket"
	"github.com/nkrypt-xyz/nkstore/internal/config"
	"github.com/nkrypt-xyz/nkstore/internal/file"
)

const testHeader = "v1:aes256gcm:deadbeef"

type testWorld struct {
	service  *Service
	records  *fakeRecords
	files    *fakeFiles
	store    *blobstore.Store
	userID   uuid.UUID
	bucketID uuid.UUID
	fileID   uuid.UUID
}

func newTestWorld(t *testing.T) *testWorld {
	t.Helper()

	store, err := blobstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("blobstore: %v", err)
	}

	w := &testWorld{
		records:  newFakeRecords(),
		files:    newFakeFiles(),
		store:    store,
		userID:   uuid.New(),
		bucketID: uuid.New(),
		fileID:   uuid.New(),
	}
	w.files.add(w.bucketID, w.fileID)

	cfg := config.BlobStorageConfig{
		MaxBlobSizeBytes:     256 * 1024,
		MaxCryptoHeaderBytes: 128,
		StaleAge:             time.Hour,
	}
	w.service = NewService(w.records, store, w.files, allowAllGate{}, cfg, zap.NewNop())
	return w
}

func (w *testWorld) readAll(t *testing.T) ([]byte, Blob) {
	t.Helper()
	result, err := w.service.Read(context.Background(), w.userID, w.bucketID, w.fileID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	defer result.Content.Close()
	content, err := io.ReadAll(result.Content)
	if err != nil {
		t.Fatalf("read content: %v", err)
	}
	return content, result.Blob
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	payload := bytes.Repeat([]byte("cipher"), 1000)

	result, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, testHeader, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if result.BytesTransferred != int64(len(payload)) {
		t.Fatalf("expected %d bytes transferred, got %d", len(payload), result.BytesTransferred)
	}

	content, b := w.readAll(t)
	if !bytes.Equal(content, payload) {
		t.Fatalf("content mismatch: got %d bytes, want %d", len(content), len(payload))
	}
	if b.CryptoHeader != testHeader {
		t.Fatalf("expected crypto header round trip, got %q", b.CryptoHeader)
	}
	if got := w.files.contentSize[w.fileID]; got != int64(len(payload)) {
		t.Fatalf("file size not updated, got %d", got)
	}
}

func TestQuantizedUploadAcrossChunks(t *testing.T) {
	w := newTestWorld(t)
	chunk := bytes.Repeat([]byte{0xAB}, 50*1024)
	const chunkCount = 5

	var blobID *uuid.UUID
	var offset int64
	for i := 0; i < chunkCount; i++ {
		last := i == chunkCount-1
		result, err := w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
			blobID, offset, last, testHeader, bytes.NewReader(chunk))
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		if result.BytesTransferred != int64(len(chunk)) {
			t.Fatalf("chunk %d: expected %d bytes, got %d", i, len(chunk), result.BytesTransferred)
		}
		id := result.BlobID
		blobID = &id
		offset += result.BytesTransferred
	}

	content, b := w.readAll(t)
	if int64(len(content)) != int64(chunkCount*len(chunk)) {
		t.Fatalf("expected %d bytes total, got %d", chunkCount*len(chunk), len(content))
	}
	if b.SizeBytes != int64(chunkCount*len(chunk)) {
		t.Fatalf("record size mismatch: %d", b.SizeBytes)
	}
	if got := w.files.contentSize[w.fileID]; got != int64(chunkCount*len(chunk)) {
		t.Fatalf("file size not updated, got %d", got)
	}
}

func TestOffsetMismatchConsumesNothing(t *testing.T) {
	w := newTestWorld(t)
	chunk := []byte("0123456789")

	first, err := w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
		nil, 0, false, testHeader, bytes.NewReader(chunk))
	if err != nil {
		t.Fatalf("first chunk: %v", err)
	}

	_, err = w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
		&first.BlobID, 99, false, testHeader, bytes.NewReader(chunk))
	if !errors.Is(err, ErrOffsetMismatch) {
		t.Fatalf("expected ErrOffsetMismatch, got %v", err)
	}

	stored, err := w.store.Size(first.BlobID.String())
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if stored != int64(len(chunk)) {
		t.Fatalf("mismatched chunk must not consume bytes, stored %d", stored)
	}

	// The blob stays in progress; resuming at the true offset works.
	_, err = w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
		&first.BlobID, int64(len(chunk)), true, testHeader, bytes.NewReader(chunk))
	if err != nil {
		t.Fatalf("resume after mismatch: %v", err)
	}

	content, _ := w.readAll(t)
	if int64(len(content)) != int64(2*len(chunk)) {
		t.Fatalf("expected %d bytes, got %d", 2*len(chunk), len(content))
	}
}

func TestSizeLimitMarksBlobErroneous(t *testing.T) {
	w := newTestWorld(t)
	oversized := bytes.Repeat([]byte{0x01}, 256*1024+1)

	_, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, testHeader, bytes.NewReader(oversized))
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("expected ErrSizeLimitExceeded, got %v", err)
	}

	if got := w.records.statusCount(StatusErroneous); got != 1 {
		t.Fatalf("expected 1 erroneous blob, got %d", got)
	}
	if _, err := w.service.Read(context.Background(), w.userID, w.bucketID, w.fileID); !errors.Is(err, ErrBlobNotFound) {
		t.Fatalf("erroneous blob must not be readable, got %v", err)
	}
}

func TestSizeLimitIsCumulativeAcrossChunks(t *testing.T) {
	w := newTestWorld(t)
	chunk := bytes.Repeat([]byte{0x02}, 200*1024)

	first, err := w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
		nil, 0, false, testHeader, bytes.NewReader(chunk))
	if err != nil {
		t.Fatalf("first chunk: %v", err)
	}

	// 200KiB stored + 200KiB incoming crosses the 256KiB cap.
	_, err = w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
		&first.BlobID, int64(len(chunk)), true, testHeader, bytes.NewReader(chunk))
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("expected ErrSizeLimitExceeded, got %v", err)
	}
	if got := w.records.statusCount(StatusErroneous); got != 1 {
		t.Fatalf("expected the blob marked erroneous, got %d", got)
	}
}

func TestFinalizeLeavesSingleBlob(t *testing.T) {
	w := newTestWorld(t)

	first, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, testHeader, strings.NewReader("old content"))
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, testHeader, strings.NewReader("new content")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	if got := len(w.records.blobs); got != 1 {
		t.Fatalf("expected exactly one surviving record, got %d", got)
	}
	content, _ := w.readAll(t)
	if string(content) != "new content" {
		t.Fatalf("expected newest content, got %q", content)
	}
	if _, err := w.store.Size(first.BlobID.String()); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("superseded bytes should be gone, got %v", err)
	}
}

func TestSweepReclaimsDeadBlobs(t *testing.T) {
	w := newTestWorld(t)

	// Abandoned upload, started long ago.
	stale, err := w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
		nil, 0, false, testHeader, strings.NewReader("partial"))
	if err != nil {
		t.Fatalf("stale chunk: %v", err)
	}
	w.records.backdate(stale.BlobID, time.Now().Add(-2*time.Hour))

	// Failed upload.
	oversized := bytes.Repeat([]byte{0x03}, 256*1024+1)
	if _, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, testHeader, bytes.NewReader(oversized)); !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("expected size limit failure, got %v", err)
	}

	swept, err := w.service.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 2 {
		t.Fatalf("expected 2 swept blobs, got %d", swept)
	}
	if len(w.records.blobs) != 0 {
		t.Fatalf("expected no records after sweep, got %d", len(w.records.blobs))
	}

	// Idempotent: nothing left to reclaim.
	swept, err = w.service.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("second sweep should find nothing, got %d", swept)
	}
}

func TestFreshInProgressBlobSurvivesSweep(t *testing.T) {
	w := newTestWorld(t)

	if _, err := w.service.WriteChunk(context.Background(), w.userID, w.bucketID, w.fileID,
		nil, 0, false, testHeader, strings.NewReader("partial")); err != nil {
		t.Fatalf("chunk: %v", err)
	}

	swept, err := w.service.SweepStale(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if swept != 0 {
		t.Fatalf("fresh uploads must not be swept, got %d", swept)
	}
}

func TestWriteRequiresPermission(t *testing.T) {
	w := newTestWorld(t)
	w.service.gate = denyAllGate{}

	_, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, testHeader, strings.NewReader("x"))
	if !errors.Is(err, bucket.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if len(w.records.blobs) != 0 {
		t.Fatalf("denied writes must not create records")
	}
}

func TestWriteRejectsUnknownFilePairing(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.service.Write(context.Background(), w.userID, uuid.New(), w.fileID, testHeader, strings.NewReader("x"))
	if !errors.Is(err, file.ErrFileNotInBucket) {
		t.Fatalf("expected ErrFileNotInBucket, got %v", err)
	}
	_, err = w.service.Write(context.Background(), w.userID, w.bucketID, uuid.New(), testHeader, strings.NewReader("x"))
	if !errors.Is(err, file.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestCryptoHeaderIsRequiredAndBounded(t *testing.T) {
	w := newTestWorld(t)

	_, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, "", strings.NewReader("x"))
	if !errors.Is(err, ErrCryptoHeaderInvalid) {
		t.Fatalf("expected ErrCryptoHeaderInvalid for empty header, got %v", err)
	}
	_, err = w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID,
		strings.Repeat("h", 129), strings.NewReader("x"))
	if !errors.Is(err, ErrCryptoHeaderInvalid) {
		t.Fatalf("expected ErrCryptoHeaderInvalid for oversized header, got %v", err)
	}
}

func TestPurgeFileRemovesRecordsAndBytes(t *testing.T) {
	w := newTestWorld(t)

	result, err := w.service.Write(context.Background(), w.userID, w.bucketID, w.fileID, testHeader, strings.NewReader("content"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := w.service.PurgeFile(context.Background(), w.bucketID, w.fileID); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if len(w.records.blobs) != 0 {
		t.Fatalf("expected no records after purge")
	}
	if _, err := w.store.Size(result.BlobID.String()); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected bytes removed, got %v", err)
	}
}

// --- fakes ---

type allowAllGate struct{}

func (allowAllGate) RequirePermission(context.Context, uuid.UUID, uuid.UUID, bucket.Permission) error {
	return nil
}

type denyAllGate struct{}

func (denyAllGate) RequirePermission(context.Context, uuid.UUID, uuid.UUID, bucket.Permission) error {
	return bucket.ErrNotAuthorized
}

type fakeRecords struct {
	blobs map[uuid.UUID]Blob
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{blobs: make(map[uuid.UUID]Blob)}
}

func (f *fakeRecords) statusCount(status Status) int {
	n := 0
	for _, b := range f.blobs {
		if b.Status == status {
			n++
		}
	}
	return n
}

func (f *fakeRecords) backdate(blobID uuid.UUID, startedAt time.Time) {
	b := f.blobs[blobID]
	b.StartedAt = startedAt
	f.blobs[blobID] = b
}

func (f *fakeRecords) Create(_ context.Context, b Blob) (Blob, error) {
	f.blobs[b.ID] = b
	return b, nil
}

func (f *fakeRecords) GetInProgress(_ context.Context, bucketID, fileID, blobID uuid.UUID) (Blob, error) {
	b, ok := f.blobs[blobID]
	if !ok || b.BucketID != bucketID || b.FileID != fileID || b.Status != StatusInProgress {
		return Blob{}, ErrBlobNotFound
	}
	return b, nil
}

func (f *fakeRecords) LatestFinished(_ context.Context, bucketID, fileID uuid.UUID) (Blob, error) {
	var finished []Blob
	for _, b := range f.blobs {
		if b.BucketID == bucketID && b.FileID == fileID && b.Status == StatusFinished {
			finished = append(finished, b)
		}
	}
	if len(finished) == 0 {
		return Blob{}, ErrBlobNotFound
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].FinishedAt.After(*finished[j].FinishedAt)
	})
	return finished[0], nil
}

func (f *fakeRecords) MarkFinished(_ context.Context, blobID uuid.UUID, sizeBytes int64, finishedAt time.Time) error {
	b, ok := f.blobs[blobID]
	if !ok || b.Status != StatusInProgress {
		return ErrBlobNotFound
	}
	b.Status = StatusFinished
	b.SizeBytes = sizeBytes
	b.FinishedAt = &finishedAt
	f.blobs[blobID] = b
	return nil
}

func (f *fakeRecords) MarkErroneous(_ context.Context, blobID uuid.UUID) error {
	b, ok := f.blobs[blobID]
	if !ok || b.Status != StatusInProgress {
		return ErrBlobNotFound
	}
	b.Status = StatusErroneous
	f.blobs[blobID] = b
	return nil
}

func (f *fakeRecords) DeleteAllExcept(_ context.Context, fileID, keepBlobID uuid.UUID) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	for id, b := range f.blobs {
		if b.FileID == fileID && id != keepBlobID {
			removed = append(removed, id)
			delete(f.blobs, id)
		}
	}
	return removed, nil
}

func (f *fakeRecords) DeleteAllOfFile(_ context.Context, fileID uuid.UUID) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	for id, b := range f.blobs {
		if b.FileID == fileID {
			removed = append(removed, id)
			delete(f.blobs, id)
		}
	}
	return removed, nil
}

func (f *fakeRecords) DeleteAllOfBucket(_ context.Context, bucketID uuid.UUID) ([]uuid.UUID, error) {
	var removed []uuid.UUID
	for id, b := range f.blobs {
		if b.BucketID == bucketID {
			removed = append(removed, id)
			delete(f.blobs, id)
		}
	}
	return removed, nil
}

func (f *fakeRecords) ListSweepable(_ context.Context, staleBefore time.Time) ([]Blob, error) {
	var sweepable []Blob
	for _, b := range f.blobs {
		switch b.Status {
		case StatusErroneous:
			sweepable = append(sweepable, b)
		case StatusInProgress:
			if b.StartedAt.Before(staleBefore) {
				sweepable = append(sweepable, b)
			}
		case StatusFinished:
			for _, newer := range f.blobs {
				if newer.FileID == b.FileID && newer.Status == StatusFinished &&
					newer.FinishedAt != nil && b.FinishedAt != nil && newer.FinishedAt.After(*b.FinishedAt) {
					sweepable = append(sweepable, b)
					break
				}
			}
		}
	}
	return sweepable, nil
}

func (f *fakeRecords) Delete(_ context.Context, blobID uuid.UUID) error {
	delete(f.blobs, blobID)
	return nil
}

type fakeFiles struct {
	owners      map[uuid.UUID]uuid.UUID // file id -> bucket id
	contentSize map[uuid.UUID]int64
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		owners:      make(map[uuid.UUID]uuid.UUID),
		contentSize: make(map[uuid.UUID]int64),
	}
}

func (f *fakeFiles) add(bucketID, fileID uuid.UUID) {
	f.owners[fileID] = bucketID
}

func (f *fakeFiles) Get(_ context.Context, bucketID, fileID uuid.UUID) (file.File, error) {
	owner, ok := f.owners[fileID]
	if !ok {
		return file.File{}, file.ErrFileNotFound
	}
	if owner != bucketID {
		return file.File{}, file.ErrFileNotInBucket
	}
	return file.File{ID: fileID, BucketID: bucketID}, nil
}

func (f *fakeFiles) SetContentUpdated(_ context.Context, _, fileID uuid.UUID, sizeBytes int64, _ time.Time) error {
	f.contentSize[fileID] = sizeBytes
	return nil
}
