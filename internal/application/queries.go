package application

import (
	"time"

	"github.com/bnema/octoflex/internal/domain"
)

// DeviceState is what a control surface renders for one device.
type DeviceState struct {
	Device       domain.Device
	SmartControl ControlView
	BoostCharge  ControlView
	Dispatches   domain.DispatchWindow
}

// AccountOverview is the derived, display ready view of a snapshot.
type AccountOverview struct {
	Account      domain.AccountNumber
	Seq          uint64
	FetchedAt    time.Time
	Balances     []BalanceView
	Electricity  *TariffView
	Gas          *TariffView
	Devices      []DeviceState
	BatteryKWh   *float64
	LastReadings []domain.MeterReading
	Warnings     []string
}

type BalanceView struct {
	Ledger     domain.LedgerType
	BalanceEUR float64
}

type TariffView struct {
	Product         domain.Product
	CurrentRate     *float64
	DaysUntilExpiry *int
}

func overviewFromSnapshot(snapshot *domain.Snapshot, devices []DeviceState, now time.Time) AccountOverview {
	overview := AccountOverview{
		Account:   snapshot.AccountNumber,
		Seq:       snapshot.Seq,
		FetchedAt: snapshot.FetchedAt,
		Devices:   devices,
		Warnings:  snapshot.Warnings,
	}

	for _, ledger := range snapshot.Ledgers {
		overview.Balances = append(overview.Balances, BalanceView{Ledger: ledger.Type, BalanceEUR: ledger.BalanceEUR()})
	}

	overview.Electricity = tariffView(snapshot.Products, domain.FuelElectricity, now)
	overview.Gas = tariffView(snapshot.Products, domain.FuelGas, now)

	if size, ok := snapshot.VehicleBatterySizeKWh(); ok {
		overview.BatteryKWh = &size
	}

	for _, fuel := range []domain.Fuel{domain.FuelElectricity, domain.FuelGas} {
		if reading, ok := snapshot.LatestReading(fuel); ok {
			overview.LastReadings = append(overview.LastReadings, reading)
		}
	}

	return overview
}

func tariffView(products []domain.Product, fuel domain.Fuel, now time.Time) *TariffView {
	product, ok := domain.CurrentProduct(products, fuel, now)
	if !ok {
		return nil
	}

	view := &TariffView{Product: product}
	if rate, ok := product.RateAt(now); ok {
		view.CurrentRate = &rate
	}
	if days, ok := product.DaysUntilExpiry(now); ok {
		view.DaysUntilExpiry = &days
	}

	return view
}

func devicePlannedDispatches(planned []domain.Dispatch, deviceID string) []domain.Dispatch {
	result := make([]domain.Dispatch, 0, len(planned))
	for _, dispatch := range planned {
		if dispatch.DeviceID == "" || dispatch.DeviceID == deviceID {
			result = append(result, dispatch)
		}
	}

	return result
}
