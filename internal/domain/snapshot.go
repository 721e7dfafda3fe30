package domain

import "time"

// Snapshot is the account state captured by one successful fetch. It is
// published whole and must not be modified once handed to readers.
type Snapshot struct {
	Seq                 uint64
	AccountNumber       AccountNumber
	FetchedAt           time.Time
	Ledgers             []Ledger
	Products            []Product
	SupplyPoints        []SupplyPoint
	Devices             []Device
	PlannedDispatches   []Dispatch
	CompletedDispatches []Dispatch
	Readings            []MeterReading
	PropertyIDs         []string
	Warnings            []string
}

func (s *Snapshot) Device(id string) (Device, bool) {
	if s == nil {
		return Device{}, false
	}
	for _, device := range s.Devices {
		if device.ID == id {
			return device, true
		}
	}

	return Device{}, false
}

func (s *Snapshot) Ledger(ledgerType LedgerType) (Ledger, bool) {
	if s == nil {
		return Ledger{}, false
	}
	for _, ledger := range s.Ledgers {
		if ledger.Type == ledgerType {
			return ledger, true
		}
	}

	return Ledger{}, false
}

func (s *Snapshot) SupplyPoint(fuel Fuel) (SupplyPoint, bool) {
	if s == nil {
		return SupplyPoint{}, false
	}
	for _, point := range s.SupplyPoints {
		if point.Fuel == fuel {
			return point, true
		}
	}

	return SupplyPoint{}, false
}

func (s *Snapshot) LatestReading(fuel Fuel) (MeterReading, bool) {
	if s == nil {
		return MeterReading{}, false
	}

	var latest MeterReading
	found := false
	for _, reading := range s.Readings {
		if reading.Fuel != fuel {
			continue
		}
		if !found || reading.ReadAt.After(latest.ReadAt) {
			latest = reading
			found = true
		}
	}

	return latest, found
}

// VehicleBatterySizeKWh returns the first battery size reported by any device.
func (s *Snapshot) VehicleBatterySizeKWh() (float64, bool) {
	if s == nil {
		return 0, false
	}
	for _, device := range s.Devices {
		if device.Vehicle != nil && device.Vehicle.BatterySizeKWh != nil {
			return *device.Vehicle.BatterySizeKWh, true
		}
	}

	return 0, false
}

func (s *Snapshot) NewerThan(other *Snapshot) bool {
	if s == nil {
		return false
	}
	if other == nil {
		return true
	}

	return s.Seq > other.Seq
}
