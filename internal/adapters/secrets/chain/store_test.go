package chain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bnema/octoflex/internal/domain"
	portmocks "github.com/bnema/octoflex/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testRef = "octoflex://A-1234ABCD/password"

func newTestStore(t *testing.T) (*Store, *portmocks.MockSecretStore, *portmocks.MockSecretStore) {
	t.Helper()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store, err := NewStore(primary, fallback)
	require.NoError(t, err)

	return store, primary, fallback
}

func TestNewStoreRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStore(nil, portmocks.NewMockSecretStore(t))
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = NewStore(portmocks.NewMockSecretStore(t), nil)
	require.ErrorIs(t, err, errNilFallbackStore)
}

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testRef).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testRef).Return("", errors.New("pass unavailable")).Once()
	fallback.EXPECT().Get(mock.Anything, testRef).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), testRef)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testRef).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, testRef).Return("", errors.New("file failed")).Once()

	_, err := store.Get(context.Background(), testRef)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "file failed")
}

func TestStoreGetIsNotFoundWhenBothBackendsMiss(t *testing.T) {
	t.Parallel()

	store, primary, fallback := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testRef).Return("", fmt.Errorf("pass: %w", domain.ErrSecretNotFound)).Once()
	fallback.EXPECT().Get(mock.Anything, testRef).Return("", fmt.Errorf("file: %w", domain.ErrSecretNotFound)).Once()

	_, err := store.Get(context.Background(), testRef)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
	assert.NotContains(t, err.Error(), "primary backend")
}

func TestStoreGetDoesNotFallbackOnCanceledContext(t *testing.T) {
	t.Parallel()

	store, primary, _ := newTestStore(t)
	primary.EXPECT().Get(mock.Anything, testRef).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), testRef)
	require.ErrorIs(t, err, context.Canceled)
}

func TestStorePut(t *testing.T) {
	t.Parallel()

	t.Run("primary succeeds", func(t *testing.T) {
		store, primary, _ := newTestStore(t)
		primary.EXPECT().Put(mock.Anything, testRef, "hunter2").Return(nil).Once()

		require.NoError(t, store.Put(context.Background(), testRef, "hunter2"))
	})

	t.Run("falls back", func(t *testing.T) {
		store, primary, fallback := newTestStore(t)
		primary.EXPECT().Put(mock.Anything, testRef, "hunter2").Return(errors.New("pass failed")).Once()
		fallback.EXPECT().Put(mock.Anything, testRef, "hunter2").Return(nil).Once()

		require.NoError(t, store.Put(context.Background(), testRef, "hunter2"))
	})
}

func TestStoreDeleteClearsBothBackends(t *testing.T) {
	t.Parallel()

	t.Run("both succeed", func(t *testing.T) {
		store, primary, fallback := newTestStore(t)
		primary.EXPECT().Delete(mock.Anything, testRef).Return(nil).Once()
		fallback.EXPECT().Delete(mock.Anything, testRef).Return(nil).Once()

		require.NoError(t, store.Delete(context.Background(), testRef))
	})

	t.Run("primary fails", func(t *testing.T) {
		store, primary, fallback := newTestStore(t)
		primary.EXPECT().Delete(mock.Anything, testRef).Return(errors.New("pass failed")).Once()
		fallback.EXPECT().Delete(mock.Anything, testRef).Return(nil).Once()

		require.NoError(t, store.Delete(context.Background(), testRef))
	})

	t.Run("both fail", func(t *testing.T) {
		store, primary, fallback := newTestStore(t)
		primary.EXPECT().Delete(mock.Anything, testRef).Return(errors.New("pass failed")).Once()
		fallback.EXPECT().Delete(mock.Anything, testRef).Return(errors.New("file failed")).Once()

		err := store.Delete(context.Background(), testRef)
		require.ErrorContains(t, err, "pass failed")
		assert.ErrorContains(t, err, "file failed")
	})
}
