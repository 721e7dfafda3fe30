package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const loginFlightKey = "login"

type tokenState struct {
	token       domain.Token
	invalidated bool
}

// TokenManager owns the token of one account. Logins are single-flight and a
// failed login never discards the last token that was obtained.
type TokenManager struct {
	auth    ports.Authenticator
	creds   ports.CredentialSource
	clock   ports.Clock
	policy  RetryPolicy
	sleep   sleepFunc
	logger  *zap.Logger
	metrics ports.Metrics

	state  atomic.Pointer[tokenState]
	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc

	// usersMu guards the sessions sharing this manager and their renewal loop.
	usersMu       sync.Mutex
	users         int
	renewalCancel context.CancelFunc
	renewalDone   chan struct{}
}

type TokenManagerOption func(*TokenManager)

func WithLoginRetryPolicy(policy RetryPolicy) TokenManagerOption {
	return func(m *TokenManager) {
		m.policy = policy
	}
}

func WithTokenLogger(logger *zap.Logger) TokenManagerOption {
	return func(m *TokenManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithTokenMetrics(metrics ports.Metrics) TokenManagerOption {
	return func(m *TokenManager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

func NewTokenManager(auth ports.Authenticator, creds ports.CredentialSource, clock ports.Clock, opts ...TokenManagerOption) *TokenManager {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &TokenManager{
		auth:    auth,
		creds:   creds,
		clock:   clock,
		policy:  DefaultLoginRetryPolicy(),
		sleep:   sleepContext,
		logger:  zap.NewNop(),
		metrics: ports.NopMetrics{},
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Current returns the held token, valid or not.
func (m *TokenManager) Current() (domain.Token, bool) {
	state := m.state.Load()
	if state == nil {
		return domain.Token{}, false
	}

	return state.token, true
}

// EnsureValidToken returns a token usable for the next call, logging in when
// none is held or the held one aged out. When the login fails and the held
// token merely aged out, that token is returned so the caller can try it once
// more. A token the server rejected is never handed out again.
func (m *TokenManager) EnsureValidToken(ctx context.Context) (domain.Token, error) {
	if token, ok := m.validToken(); ok {
		return token, nil
	}

	token, err := m.login(ctx, false)
	if err == nil {
		return token, nil
	}

	if state := m.state.Load(); state != nil && !state.invalidated && !errors.Is(err, context.Canceled) {
		m.logger.Warn("login failed, reusing previous token",
			zap.Error(err),
			zap.Time("issued_at", state.token.IssuedAt),
		)
		return state.token, nil
	}

	return domain.Token{}, err
}

// Refresh forces a new login even if the held token is still valid. A failed
// refresh leaves the held token usable.
func (m *TokenManager) Refresh(ctx context.Context) (domain.Token, error) {
	return m.login(ctx, true)
}

// Invalidate marks token as unusable if it is still the held one.
func (m *TokenManager) Invalidate(token domain.Token) {
	for {
		state := m.state.Load()
		if state == nil || state.invalidated || !state.token.Same(token) {
			return
		}
		if m.state.CompareAndSwap(state, &tokenState{token: state.token, invalidated: true}) {
			return
		}
	}
}

// RunAutoRefresh renews the token every interval until ctx ends.
func (m *TokenManager) RunAutoRefresh(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Refresh(ctx); err != nil {
				m.logger.Warn("scheduled token refresh failed", zap.Error(err))
			}
		}
	}
}

// Retain registers one more session sharing the manager. The first one starts
// background renewal every interval when every is positive.
func (m *TokenManager) Retain(every time.Duration) {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()

	m.users++
	if m.users > 1 || every <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	done := make(chan struct{})
	m.renewalCancel, m.renewalDone = cancel, done
	go func() {
		defer close(done)
		m.RunAutoRefresh(ctx, every)
	}()
}

// Release drops one session. The last one stops renewal and closes the
// manager, aborting any login in flight.
func (m *TokenManager) Release() {
	m.usersMu.Lock()
	if m.users == 0 {
		m.usersMu.Unlock()
		return
	}
	m.users--
	if m.users > 0 {
		m.usersMu.Unlock()
		return
	}
	cancel, done := m.renewalCancel, m.renewalDone
	m.renewalCancel, m.renewalDone = nil, nil
	m.usersMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.Close()
}

// Close aborts any login in flight. Later logins fail with context.Canceled.
func (m *TokenManager) Close() {
	m.cancel()
}

func (m *TokenManager) validToken() (domain.Token, bool) {
	state := m.state.Load()
	if state == nil || state.invalidated || !state.token.Valid(m.clock.Now()) {
		return domain.Token{}, false
	}

	return state.token, true
}

func (m *TokenManager) login(ctx context.Context, force bool) (domain.Token, error) {
	ch := m.group.DoChan(loginFlightKey, func() (any, error) {
		if token, ok := m.validToken(); ok && !force {
			return token, nil
		}

		return m.loginWithRetry(m.ctx)
	})

	select {
	case <-ctx.Done():
		return domain.Token{}, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return domain.Token{}, result.Err
		}

		return result.Val.(domain.Token), nil
	}
}

func (m *TokenManager) loginWithRetry(ctx context.Context) (domain.Token, error) {
	if err := ctx.Err(); err != nil {
		return domain.Token{}, err
	}

	creds, err := m.creds.Credentials(ctx)
	if err != nil {
		return domain.Token{}, &domain.AuthError{Message: "load credentials", Err: err}
	}
	if creds.Empty() {
		return domain.Token{}, &domain.AuthError{Message: "email and password are required"}
	}

	attempts := m.policy.attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		token, err := m.auth.Login(ctx, creds)
		if err == nil {
			if token.IssuedAt.IsZero() {
				token.IssuedAt = m.clock.Now()
			}
			m.state.Store(&tokenState{token: token})
			m.metrics.IncLogin("success")
			m.logger.Debug("login succeeded", zap.Int("attempt", attempt), zap.Stringer("token", token))
			return token, nil
		}

		lastErr = err
		if !retryableLoginError(err) || attempt == attempts {
			break
		}

		delay := m.policy.Delay(attempt)
		m.metrics.IncLogin("retry")
		m.logger.Warn("login failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := m.sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	m.metrics.IncLogin("failure")

	var authErr *domain.AuthError
	if errors.As(lastErr, &authErr) || errors.Is(lastErr, context.Canceled) {
		return domain.Token{}, lastErr
	}

	return domain.Token{}, &domain.AuthError{Message: fmt.Sprintf("login failed after %d attempts", attempts), Err: lastErr}
}

func retryableLoginError(err error) bool {
	var transient *domain.TransientError
	switch {
	case errors.As(err, &transient):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, domain.ErrMalformedResponse):
		return true
	default:
		return false
	}
}
