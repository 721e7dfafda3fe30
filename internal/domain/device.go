package domain

import (
	"strings"
	"time"
)

type DeviceType string

const (
	DeviceTypeElectricVehicles DeviceType = "ELECTRIC_VEHICLES"
	DeviceTypeChargePoints     DeviceType = "CHARGE_POINTS"
)

// Upstream device status values.
const (
	LiveStateLive            = "LIVE"
	StateBoost               = "BOOST"
	StateBoostCharging       = "BOOST_CHARGING"
	StateSmartControlCapable = "SMART_CONTROL_CAPABLE"
)

type DeviceStatus struct {
	// Current is the live state, e.g. LIVE or OFFLINE.
	Current      string
	CurrentState string
	IsSuspended  bool
}

type Device struct {
	ID                  string
	Name                string
	Type                DeviceType
	Provider            string
	IntegrationDeviceID string
	Status              DeviceStatus
	SmartControlCapable bool
	Preferences         DevicePreferences
	PreferenceSetting   *PreferenceSetting
	Alerts              []DeviceAlert
	Vehicle             *VehicleVariant
}

// SmartControlEnabled is the on-state of the suspend/resume control.
func (d Device) SmartControlEnabled() bool {
	return !d.Status.IsSuspended
}

func (d Device) BoostActive() bool {
	return strings.Contains(strings.ToUpper(d.Status.CurrentState), StateBoost)
}

func (d Device) ChargeCapable() bool {
	return d.Type == DeviceTypeElectricVehicles || d.Type == DeviceTypeChargePoints
}

type DevicePreferences struct {
	Mode       string
	TargetType string
	Unit       string
	GridExport *float64
	Schedules  []ChargeSchedule
}

type ChargeSchedule struct {
	DayOfWeek string
	Time      string
	Min       *float64
	Max       *float64
}

type PreferenceSetting struct {
	ID               string
	DeviceType       string
	Mode             string
	Unit             string
	ScheduleSettings []ScheduleSetting
}

type ScheduleSetting struct {
	ID       string
	Min      float64
	Max      float64
	Step     float64
	TimeFrom string
	TimeTo   string
	TimeStep int
}

type DeviceAlert struct {
	Message     string
	PublishedAt time.Time
}

type VehicleVariant struct {
	Model          string
	BatterySizeKWh *float64
}
