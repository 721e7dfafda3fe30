package domain

import "time"

// SupplyPoint is a market location (MaLo) with its metering location (MeLo).
type SupplyPoint struct {
	Fuel                 Fuel
	MaloNumber           string
	MeloNumber           string
	Meter                *Meter
	ReferenceConsumption *float64
}

type Meter struct {
	ID                          string
	Type                        string
	Number                      string
	ShouldReceiveSmartMeterData bool
	SubmitReadingURL            string
}

type MeterReading struct {
	Fuel             Fuel
	MeterID          string
	Value            float64
	ReadAt           time.Time
	RegisterObisCode string
	RegisterType     string
	TypeOfRead       string
	Origin           string
}
