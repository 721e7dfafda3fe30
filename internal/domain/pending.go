package domain

import "time"

// PendingActionTimeout bounds how long an optimistic state overrides the snapshot.
const PendingActionTimeout = 5 * time.Minute

type PendingAction struct {
	Account    AccountNumber
	DeviceID   string
	Capability Capability
	Kind       CommandKind
	Desired    bool
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

func NewPendingAction(account AccountNumber, deviceID string, kind CommandKind, issuedAt time.Time) (PendingAction, bool) {
	desired, ok := kind.DesiredState()
	if !ok {
		return PendingAction{}, false
	}

	return PendingAction{
		Account:    account,
		DeviceID:   deviceID,
		Capability: kind.Capability(),
		Kind:       kind,
		Desired:    desired,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(PendingActionTimeout),
	}, true
}

func (p PendingAction) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// ConfirmedBy reports whether the device state already matches the desired state.
func (p PendingAction) ConfirmedBy(device Device) bool {
	return ControlState(device, p.Capability) == p.Desired
}

// ControlState is the on/off state of a capability as reported by the device.
func ControlState(device Device, capability Capability) bool {
	switch capability {
	case CapabilityBoostCharge:
		return device.BoostActive()
	default:
		return device.SmartControlEnabled()
	}
}
