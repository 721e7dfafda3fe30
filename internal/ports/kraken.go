package ports

import (
	"context"

	"github.com/bnema/octoflex/internal/domain"
)

type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, account domain.AccountNumber) (*domain.Snapshot, error)
}

type DeviceController interface {
	SetSmartControl(ctx context.Context, deviceID string, suspend bool) error
	SetBoostCharge(ctx context.Context, deviceID string, boost bool) error
	SetDevicePreferences(ctx context.Context, deviceID string, prefs domain.ChargePreferences) error
}

type AccountDiscoverer interface {
	DiscoverAccounts(ctx context.Context) ([]domain.DiscoveredAccount, error)
}
