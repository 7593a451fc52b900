package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T, prefix string) *Store {
	t.Helper()
	s, err := Open(":memory:", prefix)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t, "sol:")

	_, err := s.Get(ctx, "a.sol")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "a.sol", "contract A {}"))
	require.NoError(t, s.Set(ctx, "a.sol", "contract B {}"))

	v, err := s.Get(ctx, "a.sol")
	require.NoError(t, err)
	assert.Equal(t, "contract B {}", v)

	ok, err := s.Exists(ctx, "a.sol")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Remove(ctx, "a.sol"))
	ok, err = s.Exists(ctx, "a.sol")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorePrefixIsolation(t *testing.T) {
	ctx := context.Background()
	files := openMemory(t, "sol:")
	cfg := files.WithPrefix("config:")

	require.NoError(t, files.Set(ctx, "b.sol", "b"))
	require.NoError(t, files.Set(ctx, "a.sol", "a"))
	require.NoError(t, cfg.Set(ctx, ".remix.config", "{}"))

	keys, err := files.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.sol", "b.sol"}, keys)

	keys, err = cfg.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{".remix.config"}, keys)

	ok, err := files.Exists(ctx, ".remix.config")
	require.NoError(t, err)
	assert.False(t, ok)
}
