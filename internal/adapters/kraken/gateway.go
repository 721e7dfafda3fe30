package kraken

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/octoflex/internal/adapters/logging"
	"github.com/bnema/octoflex/internal/cache"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/bnema/octoflex/internal/ports"
	"go.uber.org/zap"
)

// knownDeviceState reports currentState values the status view understands.
func knownDeviceState(state string) bool {
	switch state {
	case "", domain.StateBoost, domain.StateBoostCharging, domain.StateSmartControlCapable,
		"SMART_CONTROL_NOT_AVAILABLE", "SMART_CONTROL_IN_PROGRESS", "SMART_CONTROL_OFF",
		"AUTHENTICATION_PENDING", "AUTHENTICATION_FAILED", "AUTHENTICATION_COMPLETE",
		"TEST_CHARGE_IN_PROGRESS", "TEST_CHARGE_FAILED", "TEST_CHARGE_NOT_AVAILABLE",
		"SETUP_COMPLETE", "LOST_CONNECTION", "RETIRED":
		return true
	default:
		return false
	}
}

// DefaultReadingsInterval spaces meter reading queries; readings land at most a few times a day.
const DefaultReadingsInterval = 30 * time.Minute

type readingEntry struct {
	reading domain.MeterReading
	ok      bool
}

// Gateway maps Kraken operations onto the snapshot, control and discovery ports.
type Gateway struct {
	executor          ports.Executor
	logger            *zap.Logger
	meterReadings     bool
	plannedDispatches bool
	readingsEvery     time.Duration
	readings          *cache.TTLCache[string, readingEntry]

	mu         sync.Mutex
	seenStates map[string]string
}

var (
	_ ports.SnapshotFetcher   = (*Gateway)(nil)
	_ ports.DeviceController  = (*Gateway)(nil)
	_ ports.AccountDiscoverer = (*Gateway)(nil)
)

type GatewayOption func(*Gateway)

func WithGatewayLogger(logger *zap.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logging.Nop(logger).Named("gateway")
	}
}

func WithMeterReadings(enabled bool) GatewayOption {
	return func(g *Gateway) {
		g.meterReadings = enabled
	}
}

// WithMeterReadingsEvery sets how long a fetched meter reading is reused across polls.
// A non-positive interval queries readings on every poll.
func WithMeterReadingsEvery(every time.Duration) GatewayOption {
	return func(g *Gateway) {
		g.readingsEvery = every
	}
}

func WithPlannedDispatches(enabled bool) GatewayOption {
	return func(g *Gateway) {
		g.plannedDispatches = enabled
	}
}

func NewGateway(executor ports.Executor, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		executor:          executor,
		logger:            zap.NewNop(),
		meterReadings:     true,
		plannedDispatches: true,
		readingsEvery:     DefaultReadingsInterval,
		readings:          cache.NewTTLCache[string, readingEntry](),
		seenStates:        map[string]string{},
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

func (g *Gateway) FetchSnapshot(ctx context.Context, account domain.AccountNumber) (*domain.Snapshot, error) {
	const op = "ComprehensiveDataQuery"

	resp, err := g.executor.Execute(ctx, ports.GraphQLRequest{
		OperationName: op,
		Query:         comprehensiveQuery,
		Variables:     map[string]any{"accountNumber": account.String()},
		AllowPartial:  true,
	})
	if err != nil {
		return nil, err
	}

	warnings, critical := splitErrors(resp.Errors)
	if len(critical) > 0 {
		return nil, &domain.GraphQLError{Op: op, Errors: critical}
	}

	var payload comprehensivePayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: op, Err: fmt.Errorf("decode snapshot: %w", err)}
	}
	if payload.Account == nil {
		return nil, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: op, Err: errors.New("response carries no account")}
	}

	snapshot := &domain.Snapshot{
		AccountNumber: account,
		Ledgers:       ledgersToDomain(payload.Account.Ledgers),
		Warnings:      warnings,
	}
	for _, property := range payload.Account.AllProperties {
		snapshot.PropertyIDs = append(snapshot.PropertyIDs, property.ID)
		for _, malo := range property.ElectricityMalos {
			point, products := malo.toDomain(domain.FuelElectricity)
			snapshot.SupplyPoints = append(snapshot.SupplyPoints, point)
			snapshot.Products = append(snapshot.Products, products...)
		}
		for _, malo := range property.GasMalos {
			point, products := malo.toDomain(domain.FuelGas)
			snapshot.SupplyPoints = append(snapshot.SupplyPoints, point)
			snapshot.Products = append(snapshot.Products, products...)
		}
	}
	for _, dispatch := range payload.CompletedDispatches {
		snapshot.CompletedDispatches = append(snapshot.CompletedDispatches, dispatch.toDomain())
	}
	for _, raw := range payload.Devices {
		device := raw.toDomain()
		g.noteDeviceState(device)
		snapshot.Devices = append(snapshot.Devices, device)
	}

	if g.plannedDispatches {
		if err := g.collectPlannedDispatches(ctx, snapshot); err != nil {
			return nil, err
		}
	}
	if g.meterReadings {
		if err := g.collectMeterReadings(ctx, account, snapshot); err != nil {
			return nil, err
		}
	}

	return snapshot, nil
}

func (g *Gateway) collectPlannedDispatches(ctx context.Context, snapshot *domain.Snapshot) error {
	for _, device := range snapshot.Devices {
		if !device.ChargeCapable() {
			continue
		}

		dispatches, err := g.PlannedDispatches(ctx, device.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Warn("planned dispatches unavailable", zap.String("device_id", device.ID), zap.Error(err))
			snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("planned dispatches for %s: %s", device.ID, summarize(err)))
			continue
		}
		snapshot.PlannedDispatches = append(snapshot.PlannedDispatches, dispatches...)
	}

	return nil
}

func (g *Gateway) collectMeterReadings(ctx context.Context, account domain.AccountNumber, snapshot *domain.Snapshot) error {
	for _, point := range snapshot.SupplyPoints {
		if point.Meter == nil || point.Meter.ID == "" {
			continue
		}

		key := account.String() + "/" + string(point.Fuel) + "/" + point.Meter.ID
		if entry, hit := g.readings.Get(key); hit && g.readingsEvery > 0 {
			if entry.ok {
				snapshot.Readings = append(snapshot.Readings, entry.reading)
			}
			continue
		}

		reading, ok, err := g.LatestReading(ctx, account, point.Fuel, point.Meter.ID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Warn("meter reading unavailable", zap.String("fuel", string(point.Fuel)), zap.Error(err))
			snapshot.Warnings = append(snapshot.Warnings, fmt.Sprintf("%s meter reading: %s", point.Fuel, summarize(err)))
			continue
		}
		if g.readingsEvery > 0 {
			g.readings.Set(key, readingEntry{reading: reading, ok: ok}, g.readingsEvery)
		}
		if ok {
			snapshot.Readings = append(snapshot.Readings, reading)
		}
	}

	return nil
}

// PlannedDispatches returns the upcoming smart charge windows of one device.
// A device the upstream does not know yields no dispatches.
func (g *Gateway) PlannedDispatches(ctx context.Context, deviceID string) ([]domain.Dispatch, error) {
	query, err := plannedDispatchesQuery(deviceID)
	if err != nil {
		return nil, err
	}

	resp, err := g.executor.Execute(ctx, ports.GraphQLRequest{OperationName: "flexPlannedDispatches", Query: query})
	if err != nil {
		var gqlErr *domain.GraphQLError
		if errors.As(err, &gqlErr) && gqlErr.HasCode(domain.CodeResourceNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var payload struct {
		FlexPlannedDispatches []plannedDispatchPayload `json:"flexPlannedDispatches"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: "flexPlannedDispatches", Err: fmt.Errorf("decode planned dispatches: %w", err)}
	}

	dispatches := make([]domain.Dispatch, 0, len(payload.FlexPlannedDispatches))
	for _, p := range payload.FlexPlannedDispatches {
		dispatches = append(dispatches, p.toDomain(deviceID))
	}

	return dispatches, nil
}

func (g *Gateway) LatestReading(ctx context.Context, account domain.AccountNumber, fuel domain.Fuel, meterID string) (domain.MeterReading, bool, error) {
	op, query, field := "ElectricityMeterReadings", electricityReadingsQuery, "electricityMeterReadings"
	if fuel == domain.FuelGas {
		op, query, field = "GasMeterReadings", gasReadingsQuery, "gasMeterReadings"
	}

	resp, err := g.executor.Execute(ctx, ports.GraphQLRequest{
		OperationName: op,
		Query:         query,
		Variables:     map[string]any{"accountNumber": account.String(), "meterId": meterID},
	})
	if err != nil {
		return domain.MeterReading{}, false, err
	}

	var payload map[string]*readingsPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return domain.MeterReading{}, false, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: op, Err: fmt.Errorf("decode meter readings: %w", err)}
	}
	readings := payload[field]
	if readings == nil {
		return domain.MeterReading{}, false, nil
	}

	reading, ok := readings.latest(fuel, meterID)
	return reading, ok, nil
}

func (g *Gateway) SetSmartControl(ctx context.Context, deviceID string, suspend bool) error {
	action := "UNSUSPEND"
	if suspend {
		action = "SUSPEND"
	}

	return g.mutate(ctx, ports.GraphQLRequest{
		OperationName: "ChangeDeviceSuspension",
		Query:         smartControlMutation,
		Variables:     map[string]any{"deviceId": deviceID, "action": action},
	}, "updateDeviceSmartControl")
}

func (g *Gateway) SetBoostCharge(ctx context.Context, deviceID string, boost bool) error {
	action := "CANCEL"
	if boost {
		action = "BOOST"
	}

	return g.mutate(ctx, ports.GraphQLRequest{
		OperationName: "triggerBoostCharge",
		Query:         boostChargeMutation,
		Variables: map[string]any{
			"input": map[string]any{"deviceId": deviceID, "action": action},
		},
	}, "updateBoostCharge")
}

func (g *Gateway) SetDevicePreferences(ctx context.Context, deviceID string, prefs domain.ChargePreferences) error {
	query, err := devicePreferencesMutation(deviceID, prefs)
	if err != nil {
		return err
	}

	return g.mutate(ctx, ports.GraphQLRequest{OperationName: "setDevicePreferences", Query: query}, "setDevicePreferences")
}

// mutate runs a mutation whose result object must be present under field.
func (g *Gateway) mutate(ctx context.Context, req ports.GraphQLRequest, field string) error {
	req.Mutation = true
	resp, err := g.executor.Execute(ctx, req)
	if err != nil {
		return err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: req.OperationName, Err: fmt.Errorf("decode mutation result: %w", err)}
	}
	result, ok := payload[field]
	if !ok || len(result) == 0 || string(result) == "null" {
		return &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: req.OperationName, Err: fmt.Errorf("%s returned no result", field)}
	}

	return nil
}

func (g *Gateway) DiscoverAccounts(ctx context.Context) ([]domain.DiscoveredAccount, error) {
	resp, err := g.executor.Execute(ctx, ports.GraphQLRequest{OperationName: "viewerAccounts", Query: accountsQuery})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Viewer *struct {
			Accounts []struct {
				Number  string          `json:"number"`
				Ledgers []ledgerPayload `json:"ledgers"`
			} `json:"accounts"`
		} `json:"viewer"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: "viewerAccounts", Err: fmt.Errorf("decode accounts: %w", err)}
	}
	if payload.Viewer == nil {
		return nil, &domain.APIError{Kind: domain.APIErrorMalformedResponse, Op: "viewerAccounts", Err: errors.New("response carries no viewer")}
	}

	accounts := make([]domain.DiscoveredAccount, 0, len(payload.Viewer.Accounts))
	for _, account := range payload.Viewer.Accounts {
		if account.Number == "" {
			continue
		}
		accounts = append(accounts, domain.DiscoveredAccount{
			Number:  domain.AccountNumber(account.Number),
			Ledgers: ledgersToDomain(account.Ledgers),
		})
	}

	return accounts, nil
}

// noteDeviceState warns once each time a device reports a state value the
// status view does not know.
func (g *Gateway) noteDeviceState(device domain.Device) {
	state := device.Status.CurrentState
	if knownDeviceState(state) {
		return
	}

	g.mu.Lock()
	previous, seen := g.seenStates[device.ID]
	g.seenStates[device.ID] = state
	g.mu.Unlock()

	if seen && previous == state {
		return
	}
	g.logger.Warn("unknown device state", zap.String("device_id", device.ID), zap.String("state", state))
}

// splitErrors separates not-found errors on the optional device and dispatch
// roots from errors that invalidate the response.
func splitErrors(details []domain.GraphQLErrorDetail) (warnings []string, critical []domain.GraphQLErrorDetail) {
	for _, detail := range details {
		root := detail.PathRoot()
		if detail.Code == domain.CodeResourceNotFound && (root == "devices" || root == "completedDispatches") {
			warnings = append(warnings, fmt.Sprintf("%s: %s", root, detail.Message))
			continue
		}
		critical = append(critical, detail)
	}

	return warnings, critical
}

func summarize(err error) string {
	var gqlErr *domain.GraphQLError
	if errors.As(err, &gqlErr) {
		return gqlErr.Summary()
	}

	return err.Error()
}
