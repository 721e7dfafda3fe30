package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type CommandKind string

const (
	CommandSuspend              CommandKind = "suspend"
	CommandResume               CommandKind = "resume"
	CommandBoostOn              CommandKind = "boost_on"
	CommandBoostOff             CommandKind = "boost_off"
	CommandSetDevicePreferences CommandKind = "set_device_preferences"
)

// Charge target limits accepted by setDevicePreferences.
const (
	MinTargetPercentage  = 20
	MaxTargetPercentage  = 100
	TargetPercentageStep = 5
	earliestTargetTime   = 4 * time.Hour
	latestTargetTime     = 17 * time.Hour
)

func ParseCommandKind(raw string) (CommandKind, error) {
	kind := CommandKind(strings.TrimSpace(raw))
	if !kind.Valid() {
		return "", &ValidationError{Field: "kind", Value: raw, Message: "unsupported command"}
	}

	return kind, nil
}

func (k CommandKind) Valid() bool {
	switch k {
	case CommandSuspend, CommandResume, CommandBoostOn, CommandBoostOff, CommandSetDevicePreferences:
		return true
	default:
		return false
	}
}

func (k CommandKind) Capability() Capability {
	switch k {
	case CommandBoostOn, CommandBoostOff:
		return CapabilityBoostCharge
	default:
		return CapabilitySmartControl
	}
}

// DesiredState is the control state a successful toggle command leads to.
// ok is false for commands that do not toggle anything.
func (k CommandKind) DesiredState() (on bool, ok bool) {
	switch k {
	case CommandResume, CommandBoostOn:
		return true, true
	case CommandSuspend, CommandBoostOff:
		return false, true
	default:
		return false, false
	}
}

type CommandParams struct {
	DeviceID         string `json:"device_id"`
	TargetPercentage int    `json:"target_percentage,omitempty"`
	TargetTime       string `json:"target_time,omitempty"`
}

type ChargePreferences struct {
	TargetPercentage int
	TargetTime       string
}

// ValidateCommand checks params for kind and returns them normalized.
func ValidateCommand(kind CommandKind, params CommandParams) (CommandParams, error) {
	if !kind.Valid() {
		return CommandParams{}, &ValidationError{Field: "kind", Value: string(kind), Message: "unsupported command"}
	}

	params.DeviceID = strings.TrimSpace(params.DeviceID)
	if params.DeviceID == "" {
		return CommandParams{}, &ValidationError{Field: "device_id", Message: "device id is required"}
	}

	if kind != CommandSetDevicePreferences {
		return params, nil
	}

	if err := ValidateTargetPercentage(params.TargetPercentage); err != nil {
		return CommandParams{}, err
	}

	formatted, err := NormalizeTargetTime(params.TargetTime)
	if err != nil {
		return CommandParams{}, err
	}
	params.TargetTime = formatted

	return params, nil
}

func ValidateTargetPercentage(percentage int) error {
	value := strconv.Itoa(percentage)
	if percentage < MinTargetPercentage || percentage > MaxTargetPercentage {
		return &ValidationError{
			Field:   "target_percentage",
			Value:   value,
			Message: fmt.Sprintf("must be between %d and %d", MinTargetPercentage, MaxTargetPercentage),
		}
	}
	if percentage%TargetPercentageStep != 0 {
		return &ValidationError{
			Field:   "target_percentage",
			Value:   value,
			Message: fmt.Sprintf("must be in %d%% steps", TargetPercentageStep),
		}
	}

	return nil
}

// NormalizeTargetTime accepts HH:MM or HH:MM:SS and returns HH:MM inside the
// 04:00-17:00 charge window.
func NormalizeTargetTime(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", &ValidationError{Field: "target_time", Message: "target time is required"}
	}

	parts := strings.Split(trimmed, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return "", &ValidationError{Field: "target_time", Value: raw, Message: "use HH:MM format"}
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", &ValidationError{Field: "target_time", Value: raw, Message: "hours must be a number"}
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", &ValidationError{Field: "target_time", Value: raw, Message: "minutes must be a number"}
	}
	if hours < 0 || hours > 23 {
		return "", &ValidationError{Field: "target_time", Value: raw, Message: "hours must be between 0 and 23"}
	}
	if minutes < 0 || minutes > 59 {
		return "", &ValidationError{Field: "target_time", Value: raw, Message: "minutes must be between 0 and 59"}
	}

	offset := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if offset < earliestTargetTime || offset > latestTargetTime {
		return "", &ValidationError{Field: "target_time", Value: raw, Message: "must be between 04:00 and 17:00"}
	}

	return fmt.Sprintf("%02d:%02d", hours, minutes), nil
}
