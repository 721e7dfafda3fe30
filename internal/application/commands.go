package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/octoflex/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CommandResult struct {
	ID        string
	Kind      domain.CommandKind
	Account   domain.AccountNumber
	DeviceID  string
	IssuedAt  time.Time
	Pending   *domain.PendingAction
	Refreshed bool
}

// IssueCommand validates params, runs the mutation and records an optimistic
// marker for toggles. A throttled refresh follows; its failure is logged and
// does not fail the command.
func (s *Session) IssueCommand(ctx context.Context, kind domain.CommandKind, params domain.CommandParams) (CommandResult, error) {
	params, err := domain.ValidateCommand(kind, params)
	if err != nil {
		s.metrics.IncCommand(string(kind), "invalid")
		return CommandResult{}, err
	}

	snapshot := s.coordinator.Latest()
	if snapshot == nil {
		return CommandResult{}, domain.ErrNoSnapshot
	}
	if _, ok := snapshot.Device(params.DeviceID); !ok {
		return CommandResult{}, fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, params.DeviceID)
	}
	if !domain.CapabilityAvailable(snapshot, params.DeviceID, kind.Capability()) {
		s.metrics.IncCommand(string(kind), "unavailable")
		return CommandResult{}, fmt.Errorf("%s on %s: %w", kind, params.DeviceID, domain.ErrCapabilityUnavailable)
	}

	if err := s.dispatch(ctx, kind, params); err != nil {
		s.metrics.IncCommand(string(kind), "failure")
		s.logger.Warn("command failed",
			zap.String("kind", string(kind)),
			zap.String("device_id", params.DeviceID),
			zap.Error(err),
		)
		return CommandResult{}, fmt.Errorf("issue %s: %w", kind, err)
	}
	s.metrics.IncCommand(string(kind), "success")

	issuedAt := s.clock.Now()
	result := CommandResult{
		ID:       uuid.NewString(),
		Kind:     kind,
		Account:  s.account,
		DeviceID: params.DeviceID,
		IssuedAt: issuedAt,
	}

	if action, ok := domain.NewPendingAction(s.account, params.DeviceID, kind, issuedAt); ok {
		s.pending.Mark(action)
		result.Pending = &action
	}

	_, fetched, err := s.coordinator.RequestRefresh(ctx)
	if err != nil {
		s.logger.Warn("refresh after command failed", zap.String("command_id", result.ID), zap.Error(err))
	}
	result.Refreshed = fetched && err == nil

	s.logger.Info("command issued",
		zap.String("command_id", result.ID),
		zap.String("kind", string(kind)),
		zap.String("device_id", params.DeviceID),
		zap.Bool("refreshed", result.Refreshed),
	)

	return result, nil
}

func (s *Session) dispatch(ctx context.Context, kind domain.CommandKind, params domain.CommandParams) error {
	switch kind {
	case domain.CommandSuspend:
		return s.controller.SetSmartControl(ctx, params.DeviceID, true)
	case domain.CommandResume:
		return s.controller.SetSmartControl(ctx, params.DeviceID, false)
	case domain.CommandBoostOn:
		return s.controller.SetBoostCharge(ctx, params.DeviceID, true)
	case domain.CommandBoostOff:
		return s.controller.SetBoostCharge(ctx, params.DeviceID, false)
	case domain.CommandSetDevicePreferences:
		return s.controller.SetDevicePreferences(ctx, params.DeviceID, domain.ChargePreferences{
			TargetPercentage: params.TargetPercentage,
			TargetTime:       params.TargetTime,
		})
	default:
		return &domain.ValidationError{Field: "kind", Value: string(kind), Message: "unsupported command"}
	}
}
