package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketlens/internal/testutil"
)

func TestMemoryCacheRepo(t *testing.T) {
	tp := NewFixedTimeProvider(testutil.TestTime())
	repo := NewMemoryCacheRepo(tp)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "a", []byte("one"), time.Minute))
		got, err := repo.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), got)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "b", []byte("two"), time.Minute))
		tp.AddTime(2 * time.Minute)
		got, err := repo.Get(ctx, "b")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "c", []byte("three"), 0))
		tp.AddTime(24 * time.Hour)
		got, err := repo.Get(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, []byte("three"), got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "d", []byte("four"), 0))
		deleted, err := repo.Delete(ctx, "d")
		require.NoError(t, err)
		assert.True(t, deleted)
		deleted, err = repo.Delete(ctx, "d")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("empty key", func(t *testing.T) {
		assert.ErrorIs(t, repo.Set(ctx, "", nil, 0), ErrKeyRequired)
		_, err := repo.Get(ctx, "")
		assert.ErrorIs(t, err, ErrKeyRequired)
	})
}
