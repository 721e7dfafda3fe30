package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenValidityWindow(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	token := Token{Value: "eyJ.token.value", IssuedAt: issued}

	assert.True(t, token.Valid(issued.Add(58*time.Minute)))
	assert.False(t, token.Valid(issued.Add(59*time.Minute)))
	assert.False(t, Token{}.Valid(issued))
}

func TestTokenValidityRespectsUpstreamExpiry(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	token := Token{Value: "eyJ.token.value", IssuedAt: issued, ExpiresAt: issued.Add(30 * time.Minute)}

	assert.True(t, token.Valid(issued.Add(28*time.Minute)))
	assert.False(t, token.Valid(issued.Add(29*time.Minute)))
}

func TestTokenStringMasksValue(t *testing.T) {
	token := Token{Value: "abcdefghijklmnopqrstuvwxyz"}

	assert.Equal(t, "abcde***vwxyz", token.String())
	assert.Equal(t, "***", Token{Value: "short"}.String())
}

func TestCredentialsNeverPrintPassword(t *testing.T) {
	creds := Credentials{Email: "jane@example.com", Password: "hunter2"}

	assert.NotContains(t, creds.String(), "hunter2")
	assert.Contains(t, creds.String(), "j***@example.com")
	assert.True(t, Credentials{Email: "jane@example.com"}.Empty())
}

func boostReadyDevice() Device {
	return Device{
		ID:                  "dev-1",
		Type:                DeviceTypeElectricVehicles,
		SmartControlCapable: true,
		Status: DeviceStatus{
			Current:      LiveStateLive,
			CurrentState: StateSmartControlCapable,
		},
	}
}

func TestBoostChargeAvailabilityTruthTable(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Device)
		want   bool
	}{
		{name: "live ev not suspended smart capable", mutate: func(*Device) {}, want: true},
		{name: "offline", mutate: func(d *Device) { d.Status.Current = "OFFLINE" }, want: false},
		{name: "suspended", mutate: func(d *Device) { d.Status.IsSuspended = true }, want: false},
		{name: "other device type", mutate: func(d *Device) { d.Type = "OTHER" }, want: false},
		{name: "charge point", mutate: func(d *Device) { d.Type = DeviceTypeChargePoints }, want: true},
		{
			name: "not capable but boosting",
			mutate: func(d *Device) {
				d.SmartControlCapable = false
				d.Status.CurrentState = StateBoost
			},
			want: true,
		},
		{
			name: "not capable but boost charging",
			mutate: func(d *Device) {
				d.SmartControlCapable = false
				d.Status.CurrentState = StateBoostCharging
			},
			want: true,
		},
		{
			name: "not capable and idle",
			mutate: func(d *Device) {
				d.SmartControlCapable = false
				d.Status.CurrentState = "SMART_CONTROL_OFF"
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := boostReadyDevice()
			tt.mutate(&device)
			snapshot := &Snapshot{Devices: []Device{device}}

			assert.Equal(t, tt.want, CapabilityAvailable(snapshot, "dev-1", CapabilityBoostCharge))
		})
	}
}

func TestSmartControlAvailableWheneverDevicePresent(t *testing.T) {
	device := boostReadyDevice()
	device.Status.Current = "OFFLINE"
	device.Status.IsSuspended = true
	snapshot := &Snapshot{Devices: []Device{device}}

	assert.True(t, CapabilityAvailable(snapshot, "dev-1", CapabilitySmartControl))
	assert.False(t, CapabilityAvailable(snapshot, "missing", CapabilitySmartControl))
	assert.False(t, CapabilityAvailable(nil, "dev-1", CapabilitySmartControl))
}

func TestCapabilityAvailableIsPureAndIsolated(t *testing.T) {
	snapshot := &Snapshot{
		AccountNumber: "A-1",
		Devices:       []Device{boostReadyDevice()},
		Ledgers:       []Ledger{{Type: LedgerElectricity, BalanceCents: 100}},
	}

	first := CapabilityAvailable(snapshot, "dev-1", CapabilityBoostCharge)
	second := CapabilityAvailable(snapshot, "dev-1", CapabilityBoostCharge)
	require.Equal(t, first, second)

	changed := *snapshot
	changed.Ledgers = []Ledger{{Type: LedgerGas, BalanceCents: -5000}}
	changed.PlannedDispatches = []Dispatch{{DeviceID: "dev-1"}}
	changed.Warnings = []string{"partial"}

	assert.Equal(t, first, CapabilityAvailable(&changed, "dev-1", CapabilityBoostCharge))
}

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name      string
		kind      CommandKind
		params    CommandParams
		wantField string
		wantTime  string
	}{
		{name: "suspend ok", kind: CommandSuspend, params: CommandParams{DeviceID: "dev-1"}},
		{name: "missing device", kind: CommandBoostOn, params: CommandParams{}, wantField: "device_id"},
		{name: "unknown kind", kind: "reboot", params: CommandParams{DeviceID: "dev-1"}, wantField: "kind"},
		{
			name:     "preferences ok with seconds",
			kind:     CommandSetDevicePreferences,
			params:   CommandParams{DeviceID: "dev-1", TargetPercentage: 80, TargetTime: "7:30:00"},
			wantTime: "07:30",
		},
		{
			name:      "percentage too low",
			kind:      CommandSetDevicePreferences,
			params:    CommandParams{DeviceID: "dev-1", TargetPercentage: 15, TargetTime: "07:00"},
			wantField: "target_percentage",
		},
		{
			name:      "percentage off step",
			kind:      CommandSetDevicePreferences,
			params:    CommandParams{DeviceID: "dev-1", TargetPercentage: 82, TargetTime: "07:00"},
			wantField: "target_percentage",
		},
		{
			name:      "time before window",
			kind:      CommandSetDevicePreferences,
			params:    CommandParams{DeviceID: "dev-1", TargetPercentage: 80, TargetTime: "03:55"},
			wantField: "target_time",
		},
		{
			name:      "time after window",
			kind:      CommandSetDevicePreferences,
			params:    CommandParams{DeviceID: "dev-1", TargetPercentage: 80, TargetTime: "17:30"},
			wantField: "target_time",
		},
		{
			name:      "time garbage",
			kind:      CommandSetDevicePreferences,
			params:    CommandParams{DeviceID: "dev-1", TargetPercentage: 80, TargetTime: "noon"},
			wantField: "target_time",
		},
		{
			name:     "upper bound inclusive",
			kind:     CommandSetDevicePreferences,
			params:   CommandParams{DeviceID: "dev-1", TargetPercentage: 100, TargetTime: "17:00"},
			wantTime: "17:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateCommand(tt.kind, tt.params)
			if tt.wantField != "" {
				var validationErr *ValidationError
				require.True(t, errors.As(err, &validationErr), "expected ValidationError, got %v", err)
				assert.Equal(t, tt.wantField, validationErr.Field)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTime, got.TargetTime)
		})
	}
}

func TestPendingActionLifecycle(t *testing.T) {
	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	action, ok := NewPendingAction("A-1", "dev-1", CommandBoostOn, issued)
	require.True(t, ok)

	assert.Equal(t, CapabilityBoostCharge, action.Capability)
	assert.True(t, action.Desired)
	assert.False(t, action.Expired(issued.Add(4*time.Minute)))
	assert.True(t, action.Expired(issued.Add(5*time.Minute)))

	device := boostReadyDevice()
	assert.False(t, action.ConfirmedBy(device))
	device.Status.CurrentState = StateBoostCharging
	assert.True(t, action.ConfirmedBy(device))

	_, ok = NewPendingAction("A-1", "dev-1", CommandSetDevicePreferences, issued)
	assert.False(t, ok)
}

func TestProductRateAtTimeOfUseWrapsMidnight(t *testing.T) {
	product := Product{
		TimeOfUse: true,
		Timeslots: []TimeslotRate{
			{Name: "NIGHT", GrossRateCents: 18.5, Activations: []TimeslotActivation{{From: "22:00:00", To: "06:00:00"}}},
			{Name: "DAY", GrossRateCents: 32.1, Activations: []TimeslotActivation{{From: "06:00:00", To: "22:00:00"}}},
		},
	}

	rate, ok := product.RateAt(time.Date(2026, 3, 1, 23, 30, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 18.5, rate, 0.001)

	rate, ok = product.RateAt(time.Date(2026, 3, 1, 5, 59, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 18.5, rate, 0.001)

	rate, ok = product.RateAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 32.1, rate, 0.001)
}

func TestCurrentProductPrefersValidAgreement(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	products := []Product{
		{Fuel: FuelElectricity, Code: "OLD", ValidFrom: now.AddDate(-2, 0, 0), ValidTo: now.AddDate(-1, 0, 0)},
		{Fuel: FuelElectricity, Code: "CURRENT", ValidFrom: now.AddDate(-1, 0, 0), ValidTo: now.AddDate(0, 0, 10)},
		{Fuel: FuelGas, Code: "GAS", ValidFrom: now.AddDate(-1, 0, 0)},
	}

	product, ok := CurrentProduct(products, FuelElectricity, now)
	require.True(t, ok)
	assert.Equal(t, "CURRENT", product.Code)

	days, ok := product.DaysUntilExpiry(now)
	require.True(t, ok)
	assert.Equal(t, 10, days)

	gas, ok := CurrentProduct(products, FuelGas, now)
	require.True(t, ok)
	_, ok = gas.DaysUntilExpiry(now)
	assert.False(t, ok)
}

func TestPlannedWindowFindsCurrentAndNext(t *testing.T) {
	now := time.Date(2026, 3, 1, 1, 15, 0, 0, time.UTC)
	planned := []Dispatch{
		{Start: now.Add(2 * time.Hour), End: now.Add(3 * time.Hour)},
		{Start: now.Add(-15 * time.Minute), End: now.Add(45 * time.Minute)},
		{Start: now.Add(5 * time.Hour), End: now.Add(6 * time.Hour)},
	}

	window := PlannedWindow(planned, now)
	require.NotNil(t, window.Current)
	require.NotNil(t, window.Next)
	assert.True(t, window.Dispatching())
	assert.Equal(t, now.Add(-15*time.Minute), window.Current.Start)
	assert.Equal(t, now.Add(2*time.Hour), window.Next.Start)

	idle := PlannedWindow(planned[:1], now)
	assert.False(t, idle.Dispatching())
}

func TestGraphQLErrorSummaryAndDetail(t *testing.T) {
	err := &GraphQLError{
		Op: "updateBoostCharge",
		Errors: []GraphQLErrorDetail{
			{Message: "Too many requests.", Code: CodeTooManyRequests},
			{Message: "Too many requests.", Code: CodeTooManyRequests},
			{Message: "Device is offline.", Code: "KT-CT-9999", Path: []string{"updateBoostCharge"}, Description: "The device did not respond."},
		},
	}

	assert.Equal(t, "too many requests, try again later; Device is offline.", err.Summary())
	assert.Contains(t, err.Detail(), "code=KT-CT-9999")
	assert.Contains(t, err.Detail(), "path=updateBoostCharge")
	assert.Contains(t, err.Detail(), "The device did not respond.")
	assert.True(t, err.HasCode(CodeTooManyRequests))
}

func TestAPIErrorMatchesSentinels(t *testing.T) {
	cause := errors.New("boom")
	err := error(&APIError{Kind: APIErrorAuthExpired, Op: "fetch", Err: cause})

	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, &APIError{Kind: APIErrorMalformedResponse}, ErrMalformedResponse)
}
