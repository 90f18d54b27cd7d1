package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseKV(t *testing.T, kv KV) {
	t.Helper()
	ctx := context.Background()

	_, err := kv.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "token", "abc"))
	require.NoError(t, kv.Set(ctx, "empresa_id", "5"))

	value, err := kv.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	require.NoError(t, kv.Delete(ctx, "token", "missing"))

	_, err = kv.Get(ctx, "token")
	assert.ErrorIs(t, err, ErrNotFound)

	value, err = kv.Get(ctx, "empresa_id")
	require.NoError(t, err)
	assert.Equal(t, "5", value)
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	exerciseKV(t, NewFile(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFile_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.json")

	require.NoError(t, NewFile(path).Set(ctx, "token", "persisted"))

	value, err := NewFile(path).Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "persisted", value)
}

func TestFile_CorruptState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFile(path).Get(context.Background(), "token")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRedis_InvalidURL(t *testing.T) {
	_, err := NewRedis("not-a-url", redisKeyPrefix)
	assert.Error(t, err)
}

func TestRedis_KeyPrefix(t *testing.T) {
	kv, err := NewRedis("redis://localhost:6379/0", redisKeyPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	assert.Equal(t, "facturas:token", kv.key("token"))
}
