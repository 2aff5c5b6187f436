package filesystem_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/blobkeep"
	"github.com/sagarc03/blobkeep/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*filesystem.Store, string) {
	t.Helper()

	tempDir := t.TempDir()
	root, err := os.OpenRoot(tempDir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	return filesystem.NewFileStorage(root), tempDir
}

func collectKeys(t *testing.T, store *filesystem.Store, ctx context.Context) []string {
	t.Helper()

	keys := []string{}
	for key, err := range store.Keys(ctx) {
		require.NoError(t, err)
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestStore_Open_Success(t *testing.T) {
	store, tempDir := newStore(t)

	content := []byte("test content")
	err := os.WriteFile(filepath.Join(tempDir, "test.txt"), content, 0o644)
	assert.NoError(t, err)

	result, err := store.Open(context.Background(), "test.txt")
	require.NoError(t, err)

	readContent, err := io.ReadAll(result)
	assert.NoError(t, err)
	assert.Equal(t, content, readContent)

	assert.NoError(t, result.Close())
}

func TestStore_Open_ContextCanceled(t *testing.T) {
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := store.Open(ctx, "test.txt")

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, context.Canceled, err)
}

func TestStore_Open_NotFound(t *testing.T) {
	store, _ := newStore(t)

	result, err := store.Open(context.Background(), "nonexistent.txt")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, blobkeep.ErrNotFound)
}

func TestStore_Open_Directory(t *testing.T) {
	store, tempDir := newStore(t)

	require.NoError(t, os.Mkdir(filepath.Join(tempDir, "subdir"), 0o755))

	result, err := store.Open(context.Background(), "subdir")

	assert.Nil(t, result)
	assert.ErrorIs(t, err, blobkeep.ErrNotFound)
}

func TestStore_Stat(t *testing.T) {
	store, tempDir := newStore(t)

	err := os.WriteFile(filepath.Join(tempDir, "test.txt"), []byte("12345"), 0o644)
	require.NoError(t, err)

	fi, err := store.Stat(context.Background(), "test.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), fi.Size())

	_, err = store.Stat(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, blobkeep.ErrNotFound)
}

func TestStore_Write_Success(t *testing.T) {
	store, tempDir := newStore(t)

	result, err := store.Write(context.Background(), "test.txt", bytes.NewReader([]byte("test content")))

	require.NoError(t, err)
	assert.Equal(t, int64(12), result.BytesWritten)
	assert.Equal(t, 64, len(result.Etag)) // SHA256 hex length

	data, err := os.ReadFile(filepath.Join(tempDir, "test.txt"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("test content"), data)
}

func TestStore_Write_Empty(t *testing.T) {
	store, tempDir := newStore(t)

	result, err := store.Write(context.Background(), "empty", bytes.NewReader(nil))

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.BytesWritten)
	// sha256 of the empty string
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", result.Etag)

	info, err := os.Stat(filepath.Join(tempDir, "empty"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestStore_Write_Overwrite(t *testing.T) {
	store, tempDir := newStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, "doc", bytes.NewReader([]byte("first version")))
	require.NoError(t, err)

	_, err = store.Write(ctx, "doc", bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tempDir, "doc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)

	// only the blob itself is left behind
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Write_ContextCanceledBefore(t *testing.T) {
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := store.Write(ctx, "test.txt", bytes.NewReader([]byte("test")))

	assert.Error(t, err)
	assert.Equal(t, int64(0), result.BytesWritten)
	assert.Empty(t, result.Etag)
	assert.Equal(t, context.Canceled, err)
}

func TestStore_Write_ContextCanceledDuringCopy(t *testing.T) {
	store, tempDir := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())

	slowReader := &slowReader{
		data:   []byte("test content"),
		cancel: cancel,
	}

	result, err := store.Write(ctx, "test.txt", slowReader)

	assert.Error(t, err)
	assert.Equal(t, int64(0), result.BytesWritten)
	assert.Empty(t, result.Etag)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, blobkeep.ErrContentRead)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file should be removed")
}

func TestStore_Write_ReaderError_KeepsPreviousContent(t *testing.T) {
	store, tempDir := newStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, "doc", bytes.NewReader([]byte("original")))
	require.NoError(t, err)

	broken := io.MultiReader(bytes.NewReader([]byte("partial")), errReader{err: errors.New("connection reset")})
	_, err = store.Write(ctx, "doc", broken)

	assert.ErrorIs(t, err, blobkeep.ErrContentRead)

	data, err := os.ReadFile(filepath.Join(tempDir, "doc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}

type slowReader struct {
	data   []byte
	pos    int
	cancel context.CancelFunc
}

func (r *slowReader) Read(p []byte) (n int, err error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	r.cancel()
	n = copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

type errReader struct {
	err error
}

func (r errReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestStore_Delete_Success(t *testing.T) {
	store, tempDir := newStore(t)

	err := os.WriteFile(filepath.Join(tempDir, "test.txt"), []byte("content"), 0o644)
	assert.NoError(t, err)

	err = store.Delete(context.Background(), "test.txt")
	assert.NoError(t, err)

	_, err = os.Stat(filepath.Join(tempDir, "test.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_Delete_ContextCanceled(t *testing.T) {
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Delete(ctx, "test.txt")

	assert.Equal(t, context.Canceled, err)
}

func TestStore_Delete_NotFound(t *testing.T) {
	store, _ := newStore(t)

	err := store.Delete(context.Background(), "nonexistent.txt")

	assert.ErrorIs(t, err, blobkeep.ErrNotFound)
}

func TestStore_Keys_SkipsForeignEntries(t *testing.T) {
	store, tempDir := newStore(t)

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "file1.txt"), []byte("content1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "file2"), []byte("content2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".t1234"), []byte("temp"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "has space"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(tempDir, "subdir"), 0o755))

	keys := collectKeys(t, store, context.Background())

	assert.Equal(t, []string{"file1.txt", "file2"}, keys)
}

func TestStore_Keys_EmptyDirectory(t *testing.T) {
	store, _ := newStore(t)

	keys := collectKeys(t, store, context.Background())

	assert.Empty(t, keys)
}

func TestStore_Keys_ManyEntries(t *testing.T) {
	store, tempDir := newStore(t)

	// more than one ReadDir batch
	for i := range 300 {
		name := fmt.Sprintf("blob-%03d", i)
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, name), nil, 0o644))
	}

	keys := collectKeys(t, store, context.Background())

	assert.Len(t, keys, 300)
	assert.Equal(t, "blob-000", keys[0])
	assert.Equal(t, "blob-299", keys[299])
}

func TestStore_Keys_Restartable(t *testing.T) {
	store, tempDir := newStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a"), nil, 0o644))
	seq := store.Keys(ctx)

	var first []string
	for key, err := range seq {
		require.NoError(t, err)
		first = append(first, key)
	}
	assert.Equal(t, []string{"a"}, first)

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "b"), nil, 0o644))

	var second []string
	for key, err := range seq {
		require.NoError(t, err)
		second = append(second, key)
	}
	sort.Strings(second)
	assert.Equal(t, []string{"a", "b"}, second)
}

func TestStore_Keys_ContextCanceled(t *testing.T) {
	store, tempDir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "a"), nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var gotErr error
	for _, err := range store.Keys(ctx) {
		if err != nil {
			gotErr = err
		}
	}

	assert.ErrorIs(t, gotErr, context.Canceled)
}

func TestStore_Describe(t *testing.T) {
	store, tempDir := newStore(t)
	ctx := context.Background()

	result, err := store.Write(ctx, "report", bytes.NewReader([]byte("hello")))
	require.NoError(t, err)

	mtime := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(tempDir, "report"), mtime, mtime))

	entry, err := store.Describe(ctx, "report")
	require.NoError(t, err)

	assert.Equal(t, "report", entry.Key)
	assert.Equal(t, int64(5), entry.Size)
	assert.Equal(t, result.Etag, entry.ETag)
	assert.True(t, mtime.Equal(entry.ModifiedAt))

	_, err = store.Describe(ctx, "missing")
	assert.ErrorIs(t, err, blobkeep.ErrNotFound)
}

func TestStore_RemoveStale(t *testing.T) {
	store, tempDir := newStore(t)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".told"), []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(tempDir, ".told"), old, old))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".tfresh"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "blob"), []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(filepath.Join(tempDir, "blob"), old, old))

	removed, err := store.RemoveStale(context.Background(), time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(tempDir, ".told"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(tempDir, ".tfresh"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(tempDir, "blob"))
	assert.NoError(t, err)
}

func TestStore_Integration_WriteReadDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	content := []byte("integration test content")

	result, err := store.Write(ctx, "test.txt", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), result.BytesWritten)

	reader, err := store.Open(ctx, "test.txt")
	require.NoError(t, err)
	readContent, err := io.ReadAll(reader)
	assert.NoError(t, err)
	assert.Equal(t, content, readContent)
	assert.NoError(t, reader.Close())

	assert.Equal(t, []string{"test.txt"}, collectKeys(t, store, ctx))

	require.NoError(t, store.Delete(ctx, "test.txt"))

	_, err = store.Open(ctx, "test.txt")
	assert.ErrorIs(t, err, blobkeep.ErrNotFound)

	assert.Empty(t, collectKeys(t, store, ctx))
}

func TestStore_OpenHandleSurvivesReplace(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Write(ctx, "doc", bytes.NewReader([]byte("old")))
	require.NoError(t, err)

	f, err := store.Open(ctx, "doc")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	_, err = store.Write(ctx, "doc", bytes.NewReader([]byte("new content")))
	require.NoError(t, err)

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)
}

func TestStore_ConcurrentWrites_SameKey(t *testing.T) {
	store, tempDir := newStore(t)
	ctx := context.Background()

	a := bytes.Repeat([]byte("1"), 256*1024)
	b := bytes.Repeat([]byte("2"), 256*1024)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			content := a
			if n%2 == 1 {
				content = b
			}
			_, err := store.Write(ctx, "x", bytes.NewReader(content))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(tempDir, "x"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, a) || bytes.Equal(data, b), "content must be one complete version")

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
