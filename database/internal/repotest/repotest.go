// Package repotest runs the behaviour every blobkeep.MetaDataRepo backend
// must share. Backends call Run from their own tests with a setup function
// that returns a fresh, migrated repo.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sagarc03/blobkeep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Setup returns an empty repo. Cleanup is registered on t.
type Setup func(t *testing.T) blobkeep.MetaDataRepo

var base = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func entry(key string, size int64, etag string, at time.Time) blobkeep.ObjectEntry {
	return blobkeep.ObjectEntry{Key: key, Size: size, ETag: etag, ModifiedAt: at}
}

// Run executes the shared repo tests as subtests of t.
func Run(t *testing.T, setup Setup) {
	t.Run("Get_NotFound", func(t *testing.T) {
		repo := setup(t)

		_, err := repo.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, blobkeep.ErrNotFound)
	})

	t.Run("Upsert_Insert", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		m, created, err := repo.Upsert(ctx, entry("a.txt", 12, "etag-1", base))
		require.NoError(t, err)

		assert.True(t, created)
		assert.Equal(t, "a.txt", m.Key)
		assert.Equal(t, int64(12), m.FileSizeBytes)
		assert.Equal(t, "etag-1", m.Etag)
		assert.Equal(t, int64(1), m.Version)
		assert.NotZero(t, m.ID)
		assert.True(t, base.Equal(m.CreatedAt), "created_at %v", m.CreatedAt)
		assert.True(t, base.Equal(m.UpdatedAt), "updated_at %v", m.UpdatedAt)

		got, err := repo.Get(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, m.ID, got.ID)
		assert.Equal(t, m.Etag, got.Etag)
		assert.Equal(t, int64(1), got.Version)
		assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, m.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("Upsert_UpdatePreservesCreatedAt", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		first, _, err := repo.Upsert(ctx, entry("a.txt", 1, "etag-1", base))
		require.NoError(t, err)

		later := base.Add(time.Hour)
		second, created, err := repo.Upsert(ctx, entry("a.txt", 2, "etag-2", later))
		require.NoError(t, err)

		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, int64(2), second.FileSizeBytes)
		assert.Equal(t, "etag-2", second.Etag)
		assert.True(t, base.Equal(second.CreatedAt), "created_at %v", second.CreatedAt)
		assert.True(t, later.Equal(second.UpdatedAt), "updated_at %v", second.UpdatedAt)

		got, err := repo.Get(ctx, "a.txt")
		require.NoError(t, err)
		assert.True(t, base.Equal(got.CreatedAt))
		assert.True(t, later.Equal(got.UpdatedAt))
		assert.Equal(t, "etag-2", got.Etag)
	})

	t.Run("Upsert_VersionIncrements", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		for want := int64(1); want <= 3; want++ {
			m, _, err := repo.Upsert(ctx, entry("a.txt", want, "e", base.Add(time.Duration(want)*time.Second)))
			require.NoError(t, err)
			assert.Equal(t, want, m.Version)
		}

		_, _, err := repo.Upsert(ctx, entry("b.txt", 1, "e", base))
		require.NoError(t, err)

		res, err := repo.List(ctx, blobkeep.ListQuery{Limit: 10})
		require.NoError(t, err)
		require.Len(t, res.Items, 2)
		assert.Equal(t, int64(3), res.Items[0].Version)
		assert.Equal(t, int64(1), res.Items[1].Version)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		_, _, err := repo.Upsert(ctx, entry("a.txt", 1, "e", base))
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, "a.txt"))

		_, err = repo.Get(ctx, "a.txt")
		assert.ErrorIs(t, err, blobkeep.ErrNotFound)

		err = repo.Delete(ctx, "a.txt")
		assert.ErrorIs(t, err, blobkeep.ErrNotFound)
	})

	t.Run("Delete_ThenReinsert", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		_, _, err := repo.Upsert(ctx, entry("a.txt", 1, "e", base))
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "a.txt"))

		later := base.Add(time.Minute)
		m, created, err := repo.Upsert(ctx, entry("a.txt", 3, "e2", later))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(1), m.Version)
		assert.True(t, later.Equal(m.CreatedAt))
	})

	t.Run("List_Empty", func(t *testing.T) {
		repo := setup(t)

		res, err := repo.List(context.Background(), blobkeep.ListQuery{Limit: 10})
		require.NoError(t, err)
		assert.Empty(t, res.Items)
		assert.Empty(t, res.NextCursor)
	})

	t.Run("List_OrderedByKey", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		for i, key := range []string{"c", "a", "b"} {
			_, _, err := repo.Upsert(ctx, entry(key, int64(i), "e", base))
			require.NoError(t, err)
		}

		res, err := repo.List(ctx, blobkeep.ListQuery{Limit: 10})
		require.NoError(t, err)

		assert.Equal(t, []string{"a", "b", "c"}, keysOf(res.Items))
		assert.Empty(t, res.NextCursor)
	})

	t.Run("List_Pagination", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		var want []string
		for i := range 7 {
			key := fmt.Sprintf("blob-%02d", i)
			want = append(want, key)
			_, _, err := repo.Upsert(ctx, entry(key, int64(i), "e", base))
			require.NoError(t, err)
		}

		var got []string
		cursor := ""
		pages := 0
		for {
			res, err := repo.List(ctx, blobkeep.ListQuery{Limit: 3, Cursor: cursor})
			require.NoError(t, err)
			assert.LessOrEqual(t, len(res.Items), 3)
			got = append(got, keysOf(res.Items)...)
			pages++
			if res.NextCursor == "" {
				break
			}
			cursor = res.NextCursor
		}

		assert.Equal(t, want, got)
		assert.Equal(t, 3, pages)
	})

	t.Run("List_ExactPage", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		for _, key := range []string{"a", "b"} {
			_, _, err := repo.Upsert(ctx, entry(key, 1, "e", base))
			require.NoError(t, err)
		}

		res, err := repo.List(ctx, blobkeep.ListQuery{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, res.Items, 2)
		assert.Empty(t, res.NextCursor)
	})

	t.Run("List_InvalidCursor", func(t *testing.T) {
		repo := setup(t)

		_, err := repo.List(context.Background(), blobkeep.ListQuery{Limit: 10, Cursor: "!!!not-a-cursor"})
		assert.Error(t, err)
	})

	t.Run("ConcurrentUpserts", func(t *testing.T) {
		repo := setup(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := range 20 {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				key := fmt.Sprintf("k%d", n%5)
				if _, _, err := repo.Upsert(ctx, entry(key, int64(n), "e", base.Add(time.Duration(n)*time.Second))); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)

		var all []error
		for err := range errs {
			all = append(all, err)
		}
		require.NoError(t, errors.Join(all...))

		res, err := repo.List(ctx, blobkeep.ListQuery{Limit: 100})
		require.NoError(t, err)
		keys := keysOf(res.Items)
		sort.Strings(keys)
		assert.Equal(t, []string{"k0", "k1", "k2", "k3", "k4"}, keys)
		for _, m := range res.Items {
			assert.Equal(t, int64(4), m.Version, "no upsert of %s was lost", m.Key)
		}
	})
}

func keysOf(items []blobkeep.MetaData) []string {
	keys := make([]string, 0, len(items))
	for _, m := range items {
		keys = append(keys, m.Key)
	}
	return keys
}
