// Package report turns application views into stable, tagged documents for
// JSON and YAML output.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	"gopkg.in/yaml.v3"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

type Overview struct {
	Account      string    `json:"account" yaml:"account"`
	Seq          uint64    `json:"seq" yaml:"seq"`
	FetchedAt    time.Time `json:"fetched_at" yaml:"fetched_at"`
	Balances     []Balance `json:"balances" yaml:"balances"`
	Electricity  *Tariff   `json:"electricity,omitempty" yaml:"electricity,omitempty"`
	Gas          *Tariff   `json:"gas,omitempty" yaml:"gas,omitempty"`
	Devices      []Device  `json:"devices" yaml:"devices"`
	BatteryKWh   *float64  `json:"battery_kwh,omitempty" yaml:"battery_kwh,omitempty"`
	LastReadings []Reading `json:"last_readings,omitempty" yaml:"last_readings,omitempty"`
	Warnings     []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type Balance struct {
	Ledger string  `json:"ledger" yaml:"ledger"`
	EUR    float64 `json:"eur" yaml:"eur"`
}

type Tariff struct {
	Code            string     `json:"code" yaml:"code"`
	Name            string     `json:"name" yaml:"name"`
	TimeOfUse       bool       `json:"time_of_use" yaml:"time_of_use"`
	CurrentRateCent *float64   `json:"current_rate_ct_kwh,omitempty" yaml:"current_rate_ct_kwh,omitempty"`
	ValidFrom       *time.Time `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	ValidTo         *time.Time `json:"valid_to,omitempty" yaml:"valid_to,omitempty"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty" yaml:"days_until_expiry,omitempty"`
}

type Device struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Type         string    `json:"type" yaml:"type"`
	Provider     string    `json:"provider,omitempty" yaml:"provider,omitempty"`
	State        string    `json:"state" yaml:"state"`
	CurrentState string    `json:"current_state,omitempty" yaml:"current_state,omitempty"`
	Suspended    bool      `json:"suspended" yaml:"suspended"`
	SmartControl Control   `json:"smart_control" yaml:"smart_control"`
	BoostCharge  Control   `json:"boost_charge" yaml:"boost_charge"`
	Dispatching  bool      `json:"dispatching" yaml:"dispatching"`
	Current      *Dispatch `json:"current_dispatch,omitempty" yaml:"current_dispatch,omitempty"`
	Next         *Dispatch `json:"next_dispatch,omitempty" yaml:"next_dispatch,omitempty"`
}

type Control struct {
	Available      bool       `json:"available" yaml:"available"`
	On             bool       `json:"on" yaml:"on"`
	Source         string     `json:"source" yaml:"source"`
	PendingUntil   *time.Time `json:"pending_until,omitempty" yaml:"pending_until,omitempty"`
	PendingCommand string     `json:"pending_command,omitempty" yaml:"pending_command,omitempty"`
	Reverted       bool       `json:"reverted,omitempty" yaml:"reverted,omitempty"`
}

type Dispatch struct {
	Start    time.Time `json:"start" yaml:"start"`
	End      time.Time `json:"end" yaml:"end"`
	DeltaKWh float64   `json:"delta_kwh" yaml:"delta_kwh"`
	Type     string    `json:"type,omitempty" yaml:"type,omitempty"`
}

type Reading struct {
	Fuel    string    `json:"fuel" yaml:"fuel"`
	MeterID string    `json:"meter_id" yaml:"meter_id"`
	Value   float64   `json:"value" yaml:"value"`
	ReadAt  time.Time `json:"read_at" yaml:"read_at"`
	Origin  string    `json:"origin,omitempty" yaml:"origin,omitempty"`
}

type CommandResult struct {
	ID        string    `json:"id" yaml:"id"`
	Kind      string    `json:"kind" yaml:"kind"`
	Account   string    `json:"account" yaml:"account"`
	DeviceID  string    `json:"device_id" yaml:"device_id"`
	IssuedAt  time.Time `json:"issued_at" yaml:"issued_at"`
	Pending   bool      `json:"pending" yaml:"pending"`
	Refreshed bool      `json:"refreshed" yaml:"refreshed"`
}

func FromOverview(overview application.AccountOverview) Overview {
	doc := Overview{
		Account:    overview.Account.String(),
		Seq:        overview.Seq,
		FetchedAt:  overview.FetchedAt,
		Balances:   make([]Balance, 0, len(overview.Balances)),
		Devices:    make([]Device, 0, len(overview.Devices)),
		BatteryKWh: overview.BatteryKWh,
		Warnings:   overview.Warnings,
	}
	for _, balance := range overview.Balances {
		doc.Balances = append(doc.Balances, Balance{Ledger: balance.Ledger.Label(), EUR: balance.BalanceEUR})
	}
	doc.Electricity = fromTariff(overview.Electricity)
	doc.Gas = fromTariff(overview.Gas)
	doc.Devices = append(doc.Devices, FromDeviceStates(overview.Devices)...)
	for _, reading := range overview.LastReadings {
		doc.LastReadings = append(doc.LastReadings, Reading{
			Fuel:    string(reading.Fuel),
			MeterID: reading.MeterID,
			Value:   reading.Value,
			ReadAt:  reading.ReadAt,
			Origin:  reading.Origin,
		})
	}

	return doc
}

func FromDeviceStates(states []application.DeviceState) []Device {
	devices := make([]Device, 0, len(states))
	for _, state := range states {
		devices = append(devices, FromDeviceState(state))
	}

	return devices
}

func FromDeviceState(state application.DeviceState) Device {
	device := state.Device
	return Device{
		ID:           device.ID,
		Name:         device.Name,
		Type:         string(device.Type),
		Provider:     device.Provider,
		State:        device.Status.Current,
		CurrentState: device.Status.CurrentState,
		Suspended:    device.Status.IsSuspended,
		SmartControl: fromControl(state.SmartControl),
		BoostCharge:  fromControl(state.BoostCharge),
		Dispatching:  state.Dispatches.Dispatching(),
		Current:      fromDispatch(state.Dispatches.Current),
		Next:         fromDispatch(state.Dispatches.Next),
	}
}

func FromCommandResult(result application.CommandResult) CommandResult {
	return CommandResult{
		ID:        result.ID,
		Kind:      string(result.Kind),
		Account:   result.Account.String(),
		DeviceID:  result.DeviceID,
		IssuedAt:  result.IssuedAt,
		Pending:   result.Pending != nil,
		Refreshed: result.Refreshed,
	}
}

// Write encodes v in the requested machine readable format.
func Write(w io.Writer, format string, v any) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func fromTariff(view *application.TariffView) *Tariff {
	if view == nil {
		return nil
	}

	tariff := &Tariff{
		Code:            view.Product.Code,
		Name:            view.Product.FullName,
		TimeOfUse:       view.Product.TimeOfUse,
		CurrentRateCent: view.CurrentRate,
		DaysUntilExpiry: view.DaysUntilExpiry,
	}
	if !view.Product.ValidFrom.IsZero() {
		from := view.Product.ValidFrom
		tariff.ValidFrom = &from
	}
	if !view.Product.ValidTo.IsZero() {
		to := view.Product.ValidTo
		tariff.ValidTo = &to
	}

	return tariff
}

func fromControl(view application.ControlView) Control {
	control := Control{
		Available: view.Available,
		On:        view.On,
		Source:    string(view.Source),
		Reverted:  view.Reverted,
	}
	if view.Pending != nil {
		until := view.Pending.ExpiresAt
		control.PendingUntil = &until
		control.PendingCommand = string(view.Pending.Kind)
	}

	return control
}

func fromDispatch(dispatch *domain.Dispatch) *Dispatch {
	if dispatch == nil {
		return nil
	}

	return &Dispatch{
		Start:    dispatch.Start,
		End:      dispatch.End,
		DeltaKWh: dispatch.DeltaKWh,
		Type:     dispatch.Type,
	}
}
