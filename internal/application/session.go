package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.uber.org/zap"
)

// Session is the runtime context of one account: its token, its coordinator
// and its pending markers. Every consumer of the account shares one Session.
type Session struct {
	account     domain.AccountNumber
	tokens      *TokenManager
	coordinator *Coordinator
	controller  ports.DeviceController
	pending     *PendingTracker
	clock       ports.Clock
	logger      *zap.Logger
	metrics     ports.Metrics

	tokenRefreshEvery time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

type SessionOption func(*Session)

func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSessionMetrics(metrics ports.Metrics) SessionOption {
	return func(s *Session) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTokenRefresh renews the token in the background every interval while the
// session runs. Sessions sharing a TokenManager share one renewal loop.
func WithTokenRefresh(every time.Duration) SessionOption {
	return func(s *Session) {
		s.tokenRefreshEvery = every
	}
}

func NewSession(tokens *TokenManager, coordinator *Coordinator, controller ports.DeviceController, clock ports.Clock, opts ...SessionOption) *Session {
	if clock == nil {
		clock = ports.SystemClock{}
	}

	s := &Session{
		account:     coordinator.Account(),
		tokens:      tokens,
		coordinator: coordinator,
		controller:  controller,
		clock:       clock,
		logger:      zap.NewNop(),
		metrics:     ports.NopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pending = NewPendingTracker(clock, s.logger, s.metrics)

	return s
}

func (s *Session) Account() domain.AccountNumber {
	return s.account
}

func (s *Session) Coordinator() *Coordinator {
	return s.coordinator
}

// Start begins polling and, if configured, background token renewal.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return ErrCoordinatorRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := s.coordinator.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("start coordinator: %w", err)
	}
	s.cancel = cancel

	if s.tokens != nil {
		s.tokens.Retain(s.tokenRefreshEvery)
	}

	return nil
}

// Stop cancels polling and releases the token manager. The last session
// sharing it stops renewal and aborts any login in flight.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.coordinator.Stop()
	if cancel != nil && s.tokens != nil {
		s.tokens.Release()
	}
}

// LatestSnapshot never touches the network.
func (s *Session) LatestSnapshot() (*domain.Snapshot, error) {
	snapshot := s.coordinator.Latest()
	if snapshot == nil {
		return nil, domain.ErrNoSnapshot
	}

	return snapshot, nil
}

func (s *Session) CapabilityAvailable(deviceID string, capability domain.Capability) bool {
	return domain.CapabilityAvailable(s.coordinator.Latest(), deviceID, capability)
}

func (s *Session) Subscribe() (<-chan struct{}, func()) {
	return s.coordinator.Subscribe()
}

func (s *Session) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	return s.coordinator.Refresh(ctx)
}

func (s *Session) RequestRefresh(ctx context.Context) (*domain.Snapshot, bool, error) {
	return s.coordinator.RequestRefresh(ctx)
}

func (s *Session) DeviceStates() ([]DeviceState, error) {
	snapshot, err := s.LatestSnapshot()
	if err != nil {
		return nil, err
	}

	return s.deviceStates(snapshot), nil
}

func (s *Session) DeviceState(deviceID string) (DeviceState, error) {
	snapshot, err := s.LatestSnapshot()
	if err != nil {
		return DeviceState{}, err
	}

	device, ok := snapshot.Device(deviceID)
	if !ok {
		return DeviceState{}, fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, deviceID)
	}

	return s.deviceState(snapshot, device), nil
}

func (s *Session) Overview() (AccountOverview, error) {
	snapshot, err := s.LatestSnapshot()
	if err != nil {
		return AccountOverview{}, err
	}

	return overviewFromSnapshot(snapshot, s.deviceStates(snapshot), s.clock.Now()), nil
}

func (s *Session) deviceStates(snapshot *domain.Snapshot) []DeviceState {
	states := make([]DeviceState, 0, len(snapshot.Devices))
	for _, device := range snapshot.Devices {
		states = append(states, s.deviceState(snapshot, device))
	}

	return states
}

func (s *Session) deviceState(snapshot *domain.Snapshot, device domain.Device) DeviceState {
	return DeviceState{
		Device:       device,
		SmartControl: s.pending.View(snapshot, device.ID, domain.CapabilitySmartControl),
		BoostCharge:  s.pending.View(snapshot, device.ID, domain.CapabilityBoostCharge),
		Dispatches:   domain.PlannedWindow(devicePlannedDispatches(snapshot.PlannedDispatches, device.ID), s.clock.Now()),
	}
}
