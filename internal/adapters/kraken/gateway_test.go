package kraken

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"github.com/bnema/octoflex/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const comprehensiveFixture = `{
  "account": {
    "id": "acc-1",
    "ledgers": [
      {"balance": -1250, "ledgerType": "ELECTRICITY_LEDGER"},
      {"balance": "4200", "ledgerType": "GAS_LEDGER"}
    ],
    "allProperties": [{
      "id": "prop-1",
      "electricityMalos": [{
        "maloNumber": "DE001",
        "meloNumber": "DE002",
        "meter": {"id": "m-el", "meterType": "SMART", "number": "1EMH", "shouldReceiveSmartMeterData": true},
        "referenceConsumption": 2800,
        "agreements": [{
          "product": {"code": "GO-24", "description": "Go", "fullName": "Octopus Go", "isTimeOfUse": true},
          "unitRateInformation": {
            "__typename": "TimeOfUseProductUnitRateInformation",
            "rates": [
              {"grossRateInformation": [{"grossRate": "21.5"}], "timeslotName": "GO", "timeslotActivationRules": [{"activeFromTime": "00:00:00", "activeToTime": "05:00:00"}]},
              {"grossRateInformation": {"grossRate": "32.1"}, "timeslotName": "STANDARD", "timeslotActivationRules": [{"activeFromTime": "05:00:00", "activeToTime": "00:00:00"}]}
            ]
          },
          "validFrom": "2026-01-01T00:00:00+01:00",
          "validTo": null
        }]
      }],
      "gasMalos": [{
        "maloNumber": "DE003",
        "meter": {"id": "m-gas"},
        "agreements": [{
          "product": {"code": "GAS-12", "fullName": "Octopus Gas", "isTimeOfUse": false},
          "unitRateInformation": {
            "__typename": "SimpleProductUnitRateInformation",
            "grossRateInformation": {"grossRate": "11.9"}
          },
          "validFrom": "2025-06-01",
          "validTo": "2026-06-01"
        }]
      }]
    }]
  },
  "completedDispatches": [
    {"deltaKwh": "-4.2", "startDt": "2026-03-01T01:00:00+00:00", "endDt": "2026-03-01T02:00:00+00:00", "meta": {"source": "smart-charge", "location": "AT_HOME"}}
  ],
  "devices": [{
    "id": "dev-1",
    "name": "Car",
    "deviceType": "ELECTRIC_VEHICLES",
    "provider": "TESLA",
    "status": {"current": "LIVE", "currentState": "SMART_CONTROL_CAPABLE", "isSuspended": false},
    "preferences": {"mode": "CHARGE", "unit": "PERCENTAGE", "schedules": [{"dayOfWeek": "MONDAY", "time": "07:30", "max": 80}]},
    "vehicleVariant": {"model": "Model 3", "batterySize": "57.5"}
  }]
}`

func response(t *testing.T, data string, errs ...domain.GraphQLErrorDetail) *ports.GraphQLResponse {
	t.Helper()
	require.True(t, json.Valid([]byte(data)))
	return &ports.GraphQLResponse{Data: json.RawMessage(data), Errors: errs}
}

func byOperation(name string) interface{} {
	return mock.MatchedBy(func(req ports.GraphQLRequest) bool { return req.OperationName == name })
}

func TestFetchSnapshotDecodesAccount(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, byOperation("ComprehensiveDataQuery")).
		Run(func(_ context.Context, req ports.GraphQLRequest) {
			assert.True(t, req.AllowPartial)
			assert.Equal(t, "A-1234", req.Variables["accountNumber"])
		}).
		Return(response(t, comprehensiveFixture), nil).Once()

	gateway := NewGateway(executor, WithMeterReadings(false), WithPlannedDispatches(false))
	snapshot, err := gateway.FetchSnapshot(context.Background(), "A-1234")
	require.NoError(t, err)

	electricity, ok := snapshot.Ledger(domain.LedgerElectricity)
	require.True(t, ok)
	assert.Equal(t, int64(-1250), electricity.BalanceCents)
	gas, ok := snapshot.Ledger(domain.LedgerGas)
	require.True(t, ok)
	assert.InDelta(t, 42.0, gas.BalanceEUR(), 0.001)

	require.Len(t, snapshot.Products, 2)
	tou, ok := domain.CurrentProduct(snapshot.Products, domain.FuelElectricity, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC))
	require.True(t, ok)
	rate, ok := tou.RateAt(time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 21.5, rate, 0.001)
	rate, ok = tou.RateAt(time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 32.1, rate, 0.001)

	gasProduct, ok := domain.CurrentProduct(snapshot.Products, domain.FuelGas, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.InDelta(t, 11.9, gasProduct.GrossRateCents, 0.001)
	assert.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), gasProduct.ValidTo)

	require.Len(t, snapshot.Devices, 1)
	device := snapshot.Devices[0]
	assert.True(t, device.SmartControlCapable)
	assert.True(t, domain.CapabilityAvailable(snapshot, "dev-1", domain.CapabilityBoostCharge))
	battery, ok := snapshot.VehicleBatterySizeKWh()
	require.True(t, ok)
	assert.InDelta(t, 57.5, battery, 0.001)

	require.Len(t, snapshot.CompletedDispatches, 1)
	assert.InDelta(t, -4.2, snapshot.CompletedDispatches[0].DeltaKWh, 0.001)
	assert.Equal(t, "smart-charge", snapshot.CompletedDispatches[0].Source)

	require.Len(t, snapshot.SupplyPoints, 2)
	assert.Equal(t, []string{"prop-1"}, snapshot.PropertyIDs)
}

func TestFetchSnapshotCollectsDispatchesAndReadings(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, byOperation("ComprehensiveDataQuery")).
		Return(response(t, comprehensiveFixture), nil).Once()
	executor.EXPECT().Execute(mock.Anything, byOperation("flexPlannedDispatches")).
		Run(func(_ context.Context, req ports.GraphQLRequest) {
			assert.Contains(t, req.Query, `deviceId: "dev-1"`)
		}).
		Return(response(t, `{"flexPlannedDispatches":[{"start":"2026-03-02T01:00:00Z","end":"2026-03-02T03:00:00Z","energyAddedKwh":"12.5","type":"SMART"}]}`), nil).Once()
	executor.EXPECT().Execute(mock.Anything, byOperation("ElectricityMeterReadings")).
		Return(response(t, `{"electricityMeterReadings":{"edges":[{"node":{"value":"1234.5","readAt":"2026-03-01T00:00:00Z","registerType":"CONSUMPTION"}}]}}`), nil).Once()
	executor.EXPECT().Execute(mock.Anything, byOperation("GasMeterReadings")).
		Return(nil, &domain.GraphQLError{Op: "GasMeterReadings", Errors: []domain.GraphQLErrorDetail{{Message: "boom"}}}).Once()

	snapshot, err := NewGateway(executor).FetchSnapshot(context.Background(), "A-1234")
	require.NoError(t, err)

	require.Len(t, snapshot.PlannedDispatches, 1)
	assert.Equal(t, "dev-1", snapshot.PlannedDispatches[0].DeviceID)
	assert.InDelta(t, 12.5, snapshot.PlannedDispatches[0].DeltaKWh, 0.001)

	reading, ok := snapshot.LatestReading(domain.FuelElectricity)
	require.True(t, ok)
	assert.InDelta(t, 1234.5, reading.Value, 0.001)
	assert.Equal(t, "m-el", reading.MeterID)

	_, ok = snapshot.LatestReading(domain.FuelGas)
	assert.False(t, ok)
	require.Len(t, snapshot.Warnings, 1)
	assert.Contains(t, snapshot.Warnings[0], "gas meter reading")
}

func TestFetchSnapshotTreatsMissingDevicesAsWarning(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, byOperation("ComprehensiveDataQuery")).
		Return(response(t, `{"account":{"ledgers":[]},"devices":null,"completedDispatches":null}`,
			domain.GraphQLErrorDetail{Message: "No devices", Path: []string{"devices"}, Code: domain.CodeResourceNotFound},
		), nil).Once()

	snapshot, err := NewGateway(executor).FetchSnapshot(context.Background(), "A-1234")
	require.NoError(t, err)
	assert.Empty(t, snapshot.Devices)
	assert.Equal(t, []string{"devices: No devices"}, snapshot.Warnings)
}

func TestFetchSnapshotFailsOnCriticalErrors(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, mock.Anything).
		Return(response(t, `{"account":null}`,
			domain.GraphQLErrorDetail{Message: "Unauthorized", Path: []string{"account"}, Code: "KT-CT-4178"},
		), nil).Once()

	_, err := NewGateway(executor).FetchSnapshot(context.Background(), "A-1234")
	var gqlErr *domain.GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	assert.True(t, gqlErr.HasCode("KT-CT-4178"))
}

func TestFetchSnapshotWithoutAccountIsMalformed(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, mock.Anything).Return(response(t, `{"devices":[]}`), nil).Once()

	_, err := NewGateway(executor).FetchSnapshot(context.Background(), "A-1234")
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestPlannedDispatchesNotFoundIsEmpty(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, mock.Anything).
		Return(nil, &domain.GraphQLError{Errors: []domain.GraphQLErrorDetail{{Code: domain.CodeResourceNotFound}}}).Once()

	dispatches, err := NewGateway(executor).PlannedDispatches(context.Background(), "dev-1")
	require.NoError(t, err)
	assert.Empty(t, dispatches)
}

func TestDeviceMutations(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, byOperation("ChangeDeviceSuspension")).
		Run(func(_ context.Context, req ports.GraphQLRequest) {
			assert.True(t, req.Mutation)
			assert.Equal(t, "SUSPEND", req.Variables["action"])
			assert.Equal(t, "dev-1", req.Variables["deviceId"])
		}).
		Return(response(t, `{"updateDeviceSmartControl":{"id":"dev-1"}}`), nil).Once()
	executor.EXPECT().Execute(mock.Anything, byOperation("triggerBoostCharge")).
		Run(func(_ context.Context, req ports.GraphQLRequest) {
			assert.Equal(t, map[string]any{"deviceId": "dev-1", "action": "CANCEL"}, req.Variables["input"])
		}).
		Return(response(t, `{"updateBoostCharge":null}`), nil).Once()
	executor.EXPECT().Execute(mock.Anything, byOperation("setDevicePreferences")).
		Run(func(_ context.Context, req ports.GraphQLRequest) {
			assert.Contains(t, req.Query, `deviceId: "dev-1"`)
			assert.Contains(t, req.Query, `{ dayOfWeek: SUNDAY, time: "07:30", max: 80 }`)
			assert.Contains(t, req.Query, "unit: PERCENTAGE")
		}).
		Return(response(t, `{"setDevicePreferences":{"id":"dev-1"}}`), nil).Once()

	gateway := NewGateway(executor)
	require.NoError(t, gateway.SetSmartControl(context.Background(), "dev-1", true))
	require.ErrorIs(t, gateway.SetBoostCharge(context.Background(), "dev-1", false), domain.ErrMalformedResponse)
	require.NoError(t, gateway.SetDevicePreferences(context.Background(), "dev-1", domain.ChargePreferences{TargetPercentage: 80, TargetTime: "07:30"}))
}

func TestDevicePreferencesQuotesDeviceID(t *testing.T) {
	t.Parallel()

	query, err := devicePreferencesMutation(`dev"}) { id } #`, domain.ChargePreferences{TargetPercentage: 50, TargetTime: "05:00"})
	require.NoError(t, err)
	assert.Contains(t, query, `deviceId: "dev\"}) { id } #"`)
}

func TestDiscoverAccounts(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, byOperation("viewerAccounts")).
		Return(response(t, `{"viewer":{"accounts":[{"number":"A-1","ledgers":[{"balance":100,"ledgerType":"ELECTRICITY_LEDGER"}]},{"number":""}]}}`), nil).Once()

	accounts, err := NewGateway(executor).DiscoverAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, domain.AccountNumber("A-1"), accounts[0].Number)
	assert.Equal(t, []domain.Ledger{{Type: domain.LedgerElectricity, BalanceCents: 100}}, accounts[0].Ledgers)
}

func TestUnknownDeviceStateWarnsOncePerChange(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	gateway := NewGateway(nil, WithGatewayLogger(zap.New(core)))

	device := domain.Device{ID: "dev-1", Status: domain.DeviceStatus{CurrentState: "FIRMWARE_UPDATE"}}
	gateway.noteDeviceState(device)
	gateway.noteDeviceState(device)
	device.Status.CurrentState = "SMART_CONTROL_CAPABLE"
	gateway.noteDeviceState(device)
	device.Status.CurrentState = "CALIBRATING"
	gateway.noteDeviceState(device)

	assert.Equal(t, 2, logs.FilterMessage("unknown device state").Len())
}

func TestFetchSnapshotReusesMeterReadingsWithinInterval(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, byOperation("ComprehensiveDataQuery")).
		Return(response(t, comprehensiveFixture), nil).Twice()
	executor.EXPECT().Execute(mock.Anything, byOperation("ElectricityMeterReadings")).
		Return(response(t, `{"electricityMeterReadings":{"edges":[{"node":{"value":"1234.5","readAt":"2026-03-01T00:00:00Z","registerType":"CONSUMPTION"}}]}}`), nil).Once()
	executor.EXPECT().Execute(mock.Anything, byOperation("GasMeterReadings")).
		Return(nil, &domain.GraphQLError{Op: "GasMeterReadings", Errors: []domain.GraphQLErrorDetail{{Message: "boom"}}}).Twice()

	gateway := NewGateway(executor, WithPlannedDispatches(false), WithMeterReadingsEvery(time.Hour))
	for i := 0; i < 2; i++ {
		snapshot, err := gateway.FetchSnapshot(context.Background(), "A-1234")
		require.NoError(t, err)

		reading, ok := snapshot.LatestReading(domain.FuelElectricity)
		require.True(t, ok, "poll %d", i)
		assert.InDelta(t, 1234.5, reading.Value, 0.001)
		require.Len(t, snapshot.Warnings, 1, "failed readings are retried on the next poll")
	}
}

func TestFetchSnapshotQueriesReadingsEveryPollWhenIntervalDisabled(t *testing.T) {
	t.Parallel()

	executor := mocks.NewMockExecutor(t)
	executor.EXPECT().Execute(mock.Anything, byOperation("ComprehensiveDataQuery")).
		Return(response(t, comprehensiveFixture), nil).Twice()
	executor.EXPECT().Execute(mock.Anything, byOperation("ElectricityMeterReadings")).
		Return(response(t, `{"electricityMeterReadings":{"edges":[]}}`), nil).Twice()
	executor.EXPECT().Execute(mock.Anything, byOperation("GasMeterReadings")).
		Return(response(t, `{"gasMeterReadings":{"edges":[]}}`), nil).Twice()

	gateway := NewGateway(executor, WithPlannedDispatches(false), WithMeterReadingsEvery(0))
	for i := 0; i < 2; i++ {
		_, err := gateway.FetchSnapshot(context.Background(), "A-1234")
		require.NoError(t, err)
	}
}
