package blobstore

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAppendAndRead(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	sink, err := store.Create("blob-1")
	require.NoError(t, err)
	_, err = sink.Write([]byte("hello "))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	size, err := store.Size("blob-1")
	require.NoError(t, err)
	require.Equal(t, int64(6), size)

	sink, err = store.OpenAppend("blob-1")
	require.NoError(t, err)
	_, err = sink.Write([]byte("world"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	rc, size, err := store.Reader("blob-1")
	require.NoError(t, err)
	defer rc.Close()
	require.Equal(t, int64(11), size)

	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(content))
}

func TestCreateTruncatesExisting(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	sink, err := store.Create("blob-1")
	require.NoError(t, err)
	_, err = sink.Write([]byte("stale content"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	sink, err = store.Create("blob-1")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	size, err := store.Size("blob-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), size)
}

func TestMissingBlob(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.Size("nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.OpenAppend("nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = store.Reader("nope")
	require.ErrorIs(t, err, ErrNotFound)

	// Removing bytes that are already gone is a no-op.
	require.NoError(t, store.Remove("nope"))
}

func TestRemove(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	sink, err := store.Create("blob-1")
	require.NoError(t, err)
	_, err = sink.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	require.NoError(t, store.Remove("blob-1"))
	_, err = store.Size("blob-1")
	require.ErrorIs(t, err, ErrNotFound)
}
