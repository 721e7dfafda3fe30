package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager(t *testing.T, clock *fakeClock) (*TokenManager, *mocks.MockAuthenticator, *recordedSleeps) {
	t.Helper()

	auth := mocks.NewMockAuthenticator(t)
	sleeps := &recordedSleeps{}
	manager := NewTokenManager(auth, testCredentials(), clock)
	manager.sleep = sleeps.sleep
	t.Cleanup(manager.Close)

	return manager, auth, sleeps
}

func TestRetryPolicyDelayDoublesAndCaps(t *testing.T) {
	t.Parallel()

	policy := DefaultLoginRetryPolicy()
	assert.Equal(t, time.Second, policy.Delay(1))
	assert.Equal(t, 2*time.Second, policy.Delay(2))
	assert.Equal(t, 16*time.Second, policy.Delay(5))
	assert.Equal(t, 30*time.Second, policy.Delay(6))
	assert.Equal(t, 30*time.Second, policy.Delay(20))
	assert.Zero(t, policy.Delay(0))
}

func TestTokenManagerSingleFlightLogin(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, _ := newTestTokenManager(t, clock)

	started := make(chan struct{})
	release := make(chan struct{})
	token := testToken("token-single-flight", testEpoch)
	auth.EXPECT().Login(mockAnyContext(), domain.Credentials{Email: "jane@example.com", Password: "hunter2"}).
		Run(func(context.Context, domain.Credentials) {
			close(started)
			<-release
		}).
		Return(token, nil).
		Once()

	const callers = 16
	results := make([]domain.Token, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = manager.EnsureValidToken(context.Background())
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.True(t, results[i].Same(token))
	}
}

func TestTokenManagerReusesTokenInsideValidityWindow(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, _ := newTestTokenManager(t, clock)

	first := testToken("token-first-login", testEpoch)
	second := testToken("token-second-login", testEpoch.Add(59*time.Minute))
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(first, nil).Once()

	got, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(first))

	clock.Advance(58 * time.Minute)
	got, err = manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(first))

	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(second, nil).Once()
	clock.Advance(time.Minute)
	got, err = manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(second))
}

func TestTokenManagerRecoversAfterFourTransientFailures(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, sleeps := newTestTokenManager(t, clock)

	transient := &domain.TransientError{Op: "login", StatusCode: 503, Err: errors.New("service unavailable")}
	token := testToken("token-after-retries", testEpoch)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(domain.Token{}, transient).Times(4)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(token, nil).Once()

	got, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(token))

	current, ok := manager.Current()
	require.True(t, ok)
	assert.True(t, current.Valid(clock.Now()))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, sleeps.all())
}

func TestTokenManagerFailsWithAuthErrorAfterFiveAttempts(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, sleeps := newTestTokenManager(t, clock)

	transient := &domain.TransientError{Op: "login", Err: context.DeadlineExceeded}
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(domain.Token{}, transient).Times(5)

	_, err := manager.EnsureValidToken(context.Background())
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, sleeps.all(), 4)
}

func TestTokenManagerDoesNotRetryRejectedCredentials(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, sleeps := newTestTokenManager(t, clock)

	rejected := &domain.AuthError{Code: "KT-CT-1138", Message: "invalid email or password"}
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(domain.Token{}, rejected).Once()

	_, err := manager.EnsureValidToken(context.Background())
	require.ErrorIs(t, err, rejected)
	assert.Empty(t, sleeps.all())
}

func TestTokenManagerSurfacesCredentialLookupFailure(t *testing.T) {
	t.Parallel()

	auth := mocks.NewMockAuthenticator(t)
	creds := mocks.NewMockCredentialSource(t)
	lookup := errors.New("secret backend unavailable")
	creds.EXPECT().Credentials(mockAnyContext()).Return(domain.Credentials{}, lookup).Once()

	manager := NewTokenManager(auth, creds, newFakeClock(testEpoch))
	t.Cleanup(manager.Close)

	_, err := manager.EnsureValidToken(context.Background())
	require.ErrorIs(t, err, lookup)

	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
	auth.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestTokenManagerKeepsPreviousTokenWhenLoginFails(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, _ := newTestTokenManager(t, clock)

	first := testToken("token-previous-good", testEpoch)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(first, nil).Once()
	_, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)

	clock.Advance(time.Hour)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).
		Return(domain.Token{}, &domain.TransientError{Op: "login", StatusCode: 502, Err: errors.New("bad gateway")}).
		Times(5)

	got, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(first))

	current, ok := manager.Current()
	require.True(t, ok)
	assert.True(t, current.Same(first))
}

func TestTokenManagerNeverHandsOutRejectedToken(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, _ := newTestTokenManager(t, clock)

	first := testToken("token-rejected-one", testEpoch)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(first, nil).Once()
	_, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)

	manager.Invalidate(first)
	rejected := &domain.AuthError{Code: "KT-CT-1138", Message: "invalid email or password"}
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(domain.Token{}, rejected).Once()

	got, err := manager.EnsureValidToken(context.Background())
	require.ErrorIs(t, err, rejected)
	assert.Empty(t, got.Value)
}

func TestTokenManagerInvalidateOnlyAffectsHeldToken(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, _ := newTestTokenManager(t, clock)

	first := testToken("token-invalidate-one", testEpoch)
	second := testToken("token-invalidate-two", testEpoch)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(first, nil).Once()
	_, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)

	manager.Invalidate(second)
	got, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(first))

	manager.Invalidate(first)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(second, nil).Once()
	got, err = manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(second))
}

func TestTokenManagerCallerCanAbandonLogin(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, _ := newTestTokenManager(t, clock)

	release := make(chan struct{})
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).
		Run(func(context.Context, domain.Credentials) { <-release }).
		Return(testToken("token-late", testEpoch), nil).
		Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := manager.EnsureValidToken(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		_, ok := manager.Current()
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestTokenManagerRefreshFailureKeepsHeldToken(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(testEpoch)
	manager, auth, _ := newTestTokenManager(t, clock)

	first := testToken("token-before-refresh", testEpoch)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(first, nil).Once()
	_, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)

	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).
		Return(domain.Token{}, &domain.TransientError{Op: "login", StatusCode: 503, Err: errors.New("unavailable")}).
		Times(5)
	_, err = manager.Refresh(context.Background())
	require.Error(t, err)

	got, err := manager.EnsureValidToken(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(first))
}

func TestTokenManagerRunAutoRefreshRenewsUntilCanceled(t *testing.T) {
	t.Parallel()

	manager, auth, _ := newTestTokenManager(t, newFakeClock(testEpoch))

	var renewals atomic.Int32
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).
		RunAndReturn(func(context.Context, domain.Credentials) (domain.Token, error) {
			n := renewals.Add(1)
			return testToken(fmt.Sprintf("token-renewed-%d", n), testEpoch), nil
		})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		manager.RunAutoRefresh(ctx, 5*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return renewals.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("auto refresh did not stop after cancel")
	}

	current, ok := manager.Current()
	require.True(t, ok)
	assert.Contains(t, current.Value, "token-renewed-")
}

func TestTokenManagerReleaseClosesAfterLastUser(t *testing.T) {
	t.Parallel()

	manager, auth, _ := newTestTokenManager(t, newFakeClock(testEpoch))
	manager.Retain(time.Hour)
	manager.Retain(time.Hour)

	manager.Release()
	token := testToken("token-still-shared", testEpoch)
	auth.EXPECT().Login(mockAnyContext(), mockAnyContext()).Return(token, nil).Once()
	got, err := manager.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Same(token))

	manager.Release()
	_, err = manager.Refresh(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}
