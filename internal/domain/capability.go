package domain

import "fmt"

type Capability string

const (
	// CapabilitySmartControl backs the suspend and resume commands.
	CapabilitySmartControl Capability = "smart_control"
	CapabilityBoostCharge  Capability = "boost_charge"
)

func ParseCapability(raw string) (Capability, error) {
	capability := Capability(raw)
	switch capability {
	case CapabilitySmartControl, CapabilityBoostCharge:
		return capability, nil
	default:
		return "", fmt.Errorf("unsupported capability %q", raw)
	}
}

// CapabilityAvailable reports whether a device capability can be actioned
// given only the snapshot contents.
func CapabilityAvailable(snapshot *Snapshot, deviceID string, capability Capability) bool {
	device, ok := snapshot.Device(deviceID)
	if !ok {
		return false
	}

	switch capability {
	case CapabilitySmartControl:
		return true
	case CapabilityBoostCharge:
		return boostChargeAvailable(device)
	default:
		return false
	}
}

func boostChargeAvailable(device Device) bool {
	status := device.Status
	if status.Current != LiveStateLive {
		return false
	}
	if !device.ChargeCapable() {
		return false
	}
	if status.IsSuspended {
		return false
	}

	return device.SmartControlCapable ||
		status.CurrentState == StateBoost ||
		status.CurrentState == StateBoostCharging
}
