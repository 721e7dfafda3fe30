package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bnema/octoflex/internal/adapters/secrets"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRef = "octoflex://A-1234ABCD/password"

func TestStoreRejectsInvalidRefs(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	for _, ref := range []string{"", "   ", "/absolute/path", "../escape", "octoflex://../../escape"} {
		err := store.Put(context.Background(), ref, "value")
		require.ErrorIs(t, err, secrets.ErrInvalidRef, ref)
	}
}

func TestStorePutGetRoundTripAndPermissions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, store.Put(context.Background(), testRef, "hunter2"))
	require.NoError(t, store.Put(context.Background(), testRef, "correct horse"))

	got, err := store.Get(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "correct horse", got)

	info, err := os.Stat(filepath.Join(root, "octoflex", "A-1234ABCD", "password"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(secretFileMod), info.Mode().Perm())

	dirInfo, err := os.Stat(filepath.Join(root, "octoflex"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(storeDirMode), dirInfo.Mode().Perm())

	entries, err := os.ReadDir(filepath.Join(root, "octoflex", "A-1234ABCD"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStoreGetMissingIsSecretNotFound(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())

	_, err := store.Get(context.Background(), testRef)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreDeleteIsIdempotentWhenSecretMissing(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir())
	require.NoError(t, store.Put(context.Background(), testRef, "hunter2"))

	require.NoError(t, store.Delete(context.Background(), testRef))
	require.NoError(t, store.Delete(context.Background(), testRef))

	_, err := store.Get(context.Background(), testRef)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewStore(t.TempDir())
	require.ErrorIs(t, store.Put(ctx, testRef, "x"), context.Canceled)
	_, err := store.Get(ctx, testRef)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, store.Delete(ctx, testRef), context.Canceled)
}
