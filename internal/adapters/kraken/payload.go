package kraken

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/octoflex/internal/domain"
)

// flexFloat accepts numbers, numeric strings and null.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = flexFloat{}
		return nil
	}
	if data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = flexFloat{}
			return nil
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", raw, err)
		}
		*f = flexFloat{Value: value, Set: true}
		return nil
	}

	var value float64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*f = flexFloat{Value: value, Set: true}
	return nil
}

func (f flexFloat) ptr() *float64 {
	if !f.Set {
		return nil
	}
	v := f.Value
	return &v
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime accepts RFC 3339 timestamps, naive timestamps (read as UTC) and dates.
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := parseTime(*raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}

	return time.Time{}, fmt.Errorf("parse time %q", raw)
}

type grossRate struct {
	GrossRate flexFloat `json:"grossRate"`
}

// grossRateList decodes grossRateInformation, which arrives either as one
// object or as a list of them.
type grossRateList []grossRate

func (l *grossRateList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*l = nil
		return nil
	case data[0] == '[':
		var items []grossRate
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		var item grossRate
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		*l = grossRateList{item}
		return nil
	}
}

func (l grossRateList) first() (float64, bool) {
	for _, item := range l {
		if item.GrossRate.Set {
			return item.GrossRate.Value, true
		}
	}

	return 0, false
}

type ledgerPayload struct {
	Balance    flexFloat `json:"balance"`
	LedgerType string    `json:"ledgerType"`
}

func (p ledgerPayload) toDomain() domain.Ledger {
	return domain.Ledger{
		Type:         domain.LedgerType(p.LedgerType),
		BalanceCents: int64(math.Round(p.Balance.Value)),
	}
}

func ledgersToDomain(payloads []ledgerPayload) []domain.Ledger {
	ledgers := make([]domain.Ledger, 0, len(payloads))
	for _, p := range payloads {
		if p.LedgerType == "" {
			continue
		}
		ledgers = append(ledgers, p.toDomain())
	}

	return ledgers
}

type comprehensivePayload struct {
	Account *struct {
		ID            string            `json:"id"`
		Ledgers       []ledgerPayload   `json:"ledgers"`
		AllProperties []propertyPayload `json:"allProperties"`
	} `json:"account"`
	CompletedDispatches []completedDispatchPayload `json:"completedDispatches"`
	Devices             []devicePayload            `json:"devices"`
}

type propertyPayload struct {
	ID               string        `json:"id"`
	ElectricityMalos []maloPayload `json:"electricityMalos"`
	GasMalos         []maloPayload `json:"gasMalos"`
}

type maloPayload struct {
	Agreements []agreementPayload `json:"agreements"`
	MaloNumber string             `json:"maloNumber"`
	MeloNumber string             `json:"meloNumber"`
	Meter      *struct {
		ID                          string `json:"id"`
		MeterType                   string `json:"meterType"`
		Number                      string `json:"number"`
		ShouldReceiveSmartMeterData bool   `json:"shouldReceiveSmartMeterData"`
		SubmitMeterReadingURL       string `json:"submitMeterReadingUrl"`
	} `json:"meter"`
	ReferenceConsumption flexFloat `json:"referenceConsumption"`
}

type agreementPayload struct {
	Product *struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		FullName    string `json:"fullName"`
		IsTimeOfUse bool   `json:"isTimeOfUse"`
	} `json:"product"`
	UnitRateGrossRateInformation grossRateList       `json:"unitRateGrossRateInformation"`
	UnitRateInformation          *unitRateInfoPayload `json:"unitRateInformation"`
	ValidFrom                    flexTime             `json:"validFrom"`
	ValidTo                      flexTime             `json:"validTo"`
}

type unitRateInfoPayload struct {
	TypeName                       string        `json:"__typename"`
	GrossRateInformation           grossRateList `json:"grossRateInformation"`
	LatestGrossUnitRateCentsPerKwh flexFloat     `json:"latestGrossUnitRateCentsPerKwh"`
	Rates                          []ratePayload `json:"rates"`
}

type ratePayload struct {
	GrossRateInformation           grossRateList `json:"grossRateInformation"`
	LatestGrossUnitRateCentsPerKwh flexFloat     `json:"latestGrossUnitRateCentsPerKwh"`
	TimeslotActivationRules        []struct {
		ActiveFromTime string `json:"activeFromTime"`
		ActiveToTime   string `json:"activeToTime"`
	} `json:"timeslotActivationRules"`
	TimeslotName string `json:"timeslotName"`
}

type completedDispatchPayload struct {
	Delta    flexFloat `json:"delta"`
	DeltaKwh flexFloat `json:"deltaKwh"`
	End      flexTime  `json:"end"`
	EndDt    flexTime  `json:"endDt"`
	Start    flexTime  `json:"start"`
	StartDt  flexTime  `json:"startDt"`
	Meta     *struct {
		Location string `json:"location"`
		Source   string `json:"source"`
	} `json:"meta"`
}

type plannedDispatchPayload struct {
	End            flexTime  `json:"end"`
	EnergyAddedKwh flexFloat `json:"energyAddedKwh"`
	Start          flexTime  `json:"start"`
	Type           string    `json:"type"`
}

type devicePayload struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	DeviceType          string `json:"deviceType"`
	Provider            string `json:"provider"`
	IntegrationDeviceID string `json:"integrationDeviceId"`
	Status              *struct {
		Current      string `json:"current"`
		CurrentState string `json:"currentState"`
		IsSuspended  bool   `json:"isSuspended"`
	} `json:"status"`
	Preferences *struct {
		Mode       string    `json:"mode"`
		TargetType string    `json:"targetType"`
		Unit       string    `json:"unit"`
		GridExport flexFloat `json:"gridExport"`
		Schedules  []struct {
			DayOfWeek string    `json:"dayOfWeek"`
			Time      string    `json:"time"`
			Min       flexFloat `json:"min"`
			Max       flexFloat `json:"max"`
		} `json:"schedules"`
	} `json:"preferences"`
	PreferenceSetting *struct {
		ID               string `json:"id"`
		DeviceType       string `json:"deviceType"`
		Mode             string `json:"mode"`
		Unit             string `json:"unit"`
		ScheduleSettings []struct {
			ID       string    `json:"id"`
			Min      flexFloat `json:"min"`
			Max      flexFloat `json:"max"`
			Step     flexFloat `json:"step"`
			TimeFrom string    `json:"timeFrom"`
			TimeTo   string    `json:"timeTo"`
			TimeStep flexFloat `json:"timeStep"`
		} `json:"scheduleSettings"`
	} `json:"preferenceSetting"`
	Alerts []struct {
		Message     string   `json:"message"`
		PublishedAt flexTime `json:"publishedAt"`
	} `json:"alerts"`
	VehicleVariant *struct {
		Model       string    `json:"model"`
		BatterySize flexFloat `json:"batterySize"`
	} `json:"vehicleVariant"`
}

type readingsPayload struct {
	Edges []struct {
		Node *struct {
			Value            flexFloat `json:"value"`
			ReadAt           flexTime  `json:"readAt"`
			RegisterObisCode string    `json:"registerObisCode"`
			RegisterType     string    `json:"registerType"`
			TypeOfRead       string    `json:"typeOfRead"`
			Origin           string    `json:"origin"`
			MeterID          string    `json:"meterId"`
		} `json:"node"`
	} `json:"edges"`
}

func (p devicePayload) toDomain() domain.Device {
	device := domain.Device{
		ID:                  p.ID,
		Name:                p.Name,
		Type:                domain.DeviceType(p.DeviceType),
		Provider:            p.Provider,
		IntegrationDeviceID: p.IntegrationDeviceID,
	}

	if p.Status != nil {
		device.Status = domain.DeviceStatus{
			Current:      p.Status.Current,
			CurrentState: p.Status.CurrentState,
			IsSuspended:  p.Status.IsSuspended,
		}
		device.SmartControlCapable = strings.Contains(p.Status.CurrentState, domain.StateSmartControlCapable)
	}

	if p.Preferences != nil {
		prefs := domain.DevicePreferences{
			Mode:       p.Preferences.Mode,
			TargetType: p.Preferences.TargetType,
			Unit:       p.Preferences.Unit,
			GridExport: p.Preferences.GridExport.ptr(),
		}
		for _, schedule := range p.Preferences.Schedules {
			prefs.Schedules = append(prefs.Schedules, domain.ChargeSchedule{
				DayOfWeek: schedule.DayOfWeek,
				Time:      schedule.Time,
				Min:       schedule.Min.ptr(),
				Max:       schedule.Max.ptr(),
			})
		}
		device.Preferences = prefs
	}

	if p.PreferenceSetting != nil {
		setting := &domain.PreferenceSetting{
			ID:         p.PreferenceSetting.ID,
			DeviceType: p.PreferenceSetting.DeviceType,
			Mode:       p.PreferenceSetting.Mode,
			Unit:       p.PreferenceSetting.Unit,
		}
		for _, s := range p.PreferenceSetting.ScheduleSettings {
			setting.ScheduleSettings = append(setting.ScheduleSettings, domain.ScheduleSetting{
				ID:       s.ID,
				Min:      s.Min.Value,
				Max:      s.Max.Value,
				Step:     s.Step.Value,
				TimeFrom: s.TimeFrom,
				TimeTo:   s.TimeTo,
				TimeStep: int(s.TimeStep.Value),
			})
		}
		device.PreferenceSetting = setting
	}

	for _, alert := range p.Alerts {
		device.Alerts = append(device.Alerts, domain.DeviceAlert{Message: alert.Message, PublishedAt: alert.PublishedAt.Time})
	}

	if p.VehicleVariant != nil {
		device.Vehicle = &domain.VehicleVariant{
			Model:          p.VehicleVariant.Model,
			BatterySizeKWh: p.VehicleVariant.BatterySize.ptr(),
		}
	}

	return device
}

func (p completedDispatchPayload) toDomain() domain.Dispatch {
	dispatch := domain.Dispatch{
		Start:    firstTime(p.StartDt.Time, p.Start.Time),
		End:      firstTime(p.EndDt.Time, p.End.Time),
		DeltaKWh: p.DeltaKwh.Value,
	}
	if !p.DeltaKwh.Set {
		dispatch.DeltaKWh = p.Delta.Value
	}
	if p.Meta != nil {
		dispatch.Source = p.Meta.Source
		dispatch.Location = p.Meta.Location
	}

	return dispatch
}

func (p plannedDispatchPayload) toDomain(deviceID string) domain.Dispatch {
	return domain.Dispatch{
		Start:    p.Start.Time,
		End:      p.End.Time,
		DeltaKWh: p.EnergyAddedKwh.Value,
		Type:     p.Type,
		DeviceID: deviceID,
	}
}

func (p maloPayload) toDomain(fuel domain.Fuel) (domain.SupplyPoint, []domain.Product) {
	point := domain.SupplyPoint{
		Fuel:                 fuel,
		MaloNumber:           p.MaloNumber,
		MeloNumber:           p.MeloNumber,
		ReferenceConsumption: p.ReferenceConsumption.ptr(),
	}
	if p.Meter != nil {
		point.Meter = &domain.Meter{
			ID:                          p.Meter.ID,
			Type:                        p.Meter.MeterType,
			Number:                      p.Meter.Number,
			ShouldReceiveSmartMeterData: p.Meter.ShouldReceiveSmartMeterData,
			SubmitReadingURL:            p.Meter.SubmitMeterReadingURL,
		}
	}

	products := make([]domain.Product, 0, len(p.Agreements))
	for _, agreement := range p.Agreements {
		if agreement.Product == nil {
			continue
		}
		products = append(products, agreement.toDomain(fuel))
	}

	return point, products
}

func (a agreementPayload) toDomain(fuel domain.Fuel) domain.Product {
	product := domain.Product{
		Fuel:        fuel,
		Code:        a.Product.Code,
		Description: a.Product.Description,
		FullName:    a.Product.FullName,
		TimeOfUse:   a.Product.IsTimeOfUse,
		ValidFrom:   a.ValidFrom.Time,
		ValidTo:     a.ValidTo.Time,
	}

	info := a.UnitRateInformation
	if info != nil && (info.TypeName == "TimeOfUseProductUnitRateInformation" || len(info.Rates) > 0) {
		product.TimeOfUse = true
		for _, rate := range info.Rates {
			slot := domain.TimeslotRate{Name: rate.TimeslotName}
			if value, ok := rate.GrossRateInformation.first(); ok {
				slot.GrossRateCents = value
			} else {
				slot.GrossRateCents = rate.LatestGrossUnitRateCentsPerKwh.Value
			}
			for _, rule := range rate.TimeslotActivationRules {
				slot.Activations = append(slot.Activations, domain.TimeslotActivation{
					From: defaultClock(rule.ActiveFromTime),
					To:   defaultClock(rule.ActiveToTime),
				})
			}
			product.Timeslots = append(product.Timeslots, slot)
		}
		return product
	}

	switch {
	case info != nil && len(info.GrossRateInformation) > 0:
		product.GrossRateCents, _ = info.GrossRateInformation.first()
	case info != nil && info.LatestGrossUnitRateCentsPerKwh.Set:
		product.GrossRateCents = info.LatestGrossUnitRateCentsPerKwh.Value
	default:
		product.GrossRateCents, _ = a.UnitRateGrossRateInformation.first()
	}

	return product
}

func (p readingsPayload) latest(fuel domain.Fuel, meterID string) (domain.MeterReading, bool) {
	for _, edge := range p.Edges {
		if edge.Node == nil {
			continue
		}
		reading := domain.MeterReading{
			Fuel:             fuel,
			MeterID:          edge.Node.MeterID,
			Value:            edge.Node.Value.Value,
			ReadAt:           edge.Node.ReadAt.Time,
			RegisterObisCode: edge.Node.RegisterObisCode,
			RegisterType:     edge.Node.RegisterType,
			TypeOfRead:       edge.Node.TypeOfRead,
			Origin:           edge.Node.Origin,
		}
		if reading.MeterID == "" {
			reading.MeterID = meterID
		}
		return reading, true
	}

	return domain.MeterReading{}, false
}

func firstTime(values ...time.Time) time.Time {
	for _, value := range values {
		if !value.IsZero() {
			return value
		}
	}

	return time.Time{}
}

func defaultClock(value string) string {
	if strings.TrimSpace(value) == "" {
		return "00:00:00"
	}

	return value
}
