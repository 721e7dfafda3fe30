package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/octoflex/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordedSleeps struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordedSleeps) all() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

var testEpoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func testCredentials() StaticCredentials {
	return NewStaticCredentials(domain.Credentials{Email: "jane@example.com", Password: "hunter2"})
}

func testToken(value string, issuedAt time.Time) domain.Token {
	return domain.Token{Value: value, IssuedAt: issuedAt, ExpiresAt: issuedAt.Add(time.Hour)}
}

func evCharger(id string) domain.Device {
	return domain.Device{
		ID:                  id,
		Name:                "Wallbox",
		Type:                domain.DeviceTypeElectricVehicles,
		Provider:            "TESLA",
		SmartControlCapable: true,
		Status: domain.DeviceStatus{
			Current:      domain.LiveStateLive,
			CurrentState: domain.StateSmartControlCapable,
		},
	}
}

func snapshotWith(devices ...domain.Device) *domain.Snapshot {
	return &domain.Snapshot{
		AccountNumber: "A-1234ABCD",
		Devices:       devices,
		Ledgers:       []domain.Ledger{{Type: domain.LedgerElectricity, BalanceCents: -1250}},
	}
}
