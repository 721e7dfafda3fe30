package application

import (
	"github.com/bnema/octoflex/internal/cache"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.uber.org/zap"
)

type pendingKey struct {
	account    domain.AccountNumber
	deviceID   string
	capability domain.Capability
}

type ControlSource string

const (
	ControlFromSnapshot ControlSource = "snapshot"
	ControlFromPending  ControlSource = "pending"
)

// ControlView is the state a control surface should display for one capability.
type ControlView struct {
	Capability domain.Capability
	Available  bool
	On         bool
	Source     ControlSource
	Pending    *domain.PendingAction
	// Reverted is set on the read that drops a marker the API never confirmed.
	Reverted bool
}

// PendingTracker holds optimistic markers for toggle commands. A marker is
// cleared by the first snapshot that agrees with it or after
// domain.PendingActionTimeout, whichever comes first.
type PendingTracker struct {
	clock   ports.Clock
	markers *cache.TTLCache[pendingKey, domain.PendingAction]
	logger  *zap.Logger
	metrics ports.Metrics
}

func NewPendingTracker(clock ports.Clock, logger *zap.Logger, metrics ports.Metrics) *PendingTracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	return &PendingTracker{
		clock:   clock,
		markers: cache.NewTTLCacheWithClock[pendingKey, domain.PendingAction](clock.Now),
		logger:  logger,
		metrics: metrics,
	}
}

func (t *PendingTracker) Mark(action domain.PendingAction) {
	ttl := action.ExpiresAt.Sub(t.clock.Now())
	if ttl <= 0 {
		return
	}

	t.markers.Set(keyOf(action.Account, action.DeviceID, action.Capability), action, ttl)
	t.metrics.SetPendingActions(t.markers.Len())
}

func (t *PendingTracker) Get(account domain.AccountNumber, deviceID string, capability domain.Capability) (domain.PendingAction, bool) {
	return t.markers.Get(keyOf(account, deviceID, capability))
}

// View merges the snapshot with any marker for the capability and clears
// markers that are confirmed or expired.
func (t *PendingTracker) View(snapshot *domain.Snapshot, deviceID string, capability domain.Capability) ControlView {
	view := ControlView{
		Capability: capability,
		Available:  domain.CapabilityAvailable(snapshot, deviceID, capability),
		Source:     ControlFromSnapshot,
	}

	device, ok := snapshot.Device(deviceID)
	if ok {
		view.On = domain.ControlState(device, capability)
	}
	if snapshot == nil {
		return view
	}

	key := keyOf(snapshot.AccountNumber, deviceID, capability)
	action, expired, found := t.markers.GetOrExpired(key)
	switch {
	case expired:
		view.Reverted = action.Desired != view.On
		t.logger.Info("pending action expired without confirmation",
			zap.String("device_id", deviceID),
			zap.String("kind", string(action.Kind)),
			zap.Bool("reverted", view.Reverted),
		)
		t.metrics.SetPendingActions(t.markers.Len())
	case !found:
	case ok && action.ConfirmedBy(device):
		t.markers.Delete(key)
		t.metrics.SetPendingActions(t.markers.Len())
	default:
		view.On = action.Desired
		view.Source = ControlFromPending
		view.Pending = &action
	}

	return view
}

func (t *PendingTracker) Len() int {
	return t.markers.Len()
}

func keyOf(account domain.AccountNumber, deviceID string, capability domain.Capability) pendingKey {
	return pendingKey{account: account, deviceID: deviceID, capability: capability}
}
