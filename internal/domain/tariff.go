package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Fuel string

const (
	FuelElectricity Fuel = "electricity"
	FuelGas         Fuel = "gas"
)

type Product struct {
	Fuel        Fuel
	Code        string
	Description string
	FullName    string
	TimeOfUse   bool
	// GrossRateCents is the flat gross unit rate in cents per kWh. Zero for time-of-use products.
	GrossRateCents float64
	Timeslots      []TimeslotRate
	ValidFrom      time.Time
	ValidTo        time.Time
}

type TimeslotRate struct {
	Name           string
	GrossRateCents float64
	Activations    []TimeslotActivation
}

// TimeslotActivation is a daily local-time range; From after To wraps past midnight.
type TimeslotActivation struct {
	From string
	To   string
}

func (p Product) ValidAt(now time.Time) bool {
	if !p.ValidFrom.IsZero() && now.Before(p.ValidFrom) {
		return false
	}
	if !p.ValidTo.IsZero() && !now.Before(p.ValidTo) {
		return false
	}

	return true
}

// RateAt returns the gross unit rate in cents per kWh that applies at now.
func (p Product) RateAt(now time.Time) (float64, bool) {
	if !p.TimeOfUse {
		return p.GrossRateCents, p.GrossRateCents > 0
	}

	offset := sinceMidnight(now)
	for _, slot := range p.Timeslots {
		for _, activation := range slot.Activations {
			if activation.Covers(offset) {
				return slot.GrossRateCents, true
			}
		}
	}

	return 0, false
}

// DaysUntilExpiry counts whole days until ValidTo; ok is false for open-ended products.
func (p Product) DaysUntilExpiry(now time.Time) (int, bool) {
	if p.ValidTo.IsZero() {
		return 0, false
	}

	days := math.Floor(p.ValidTo.Sub(now).Hours() / 24)
	return int(days), true
}

func (a TimeslotActivation) Covers(offset time.Duration) bool {
	from, errFrom := parseClock(a.From)
	to, errTo := parseClock(a.To)
	if errFrom != nil || errTo != nil {
		return false
	}

	switch {
	case from == to:
		return true
	case from < to:
		return offset >= from && offset < to
	default:
		return offset >= from || offset < to
	}
}

// CurrentProduct picks the product of the given fuel that is valid at now,
// falling back to the most recently started one.
func CurrentProduct(products []Product, fuel Fuel, now time.Time) (Product, bool) {
	var fallback *Product
	for i := range products {
		product := products[i]
		if product.Fuel != fuel {
			continue
		}
		if product.ValidAt(now) {
			return product, true
		}
		if fallback == nil || product.ValidFrom.After(fallback.ValidFrom) {
			fallback = &product
		}
	}

	if fallback == nil {
		return Product{}, false
	}

	return *fallback, true
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

func parseClock(raw string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}

	values := make([]int, 3)
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid clock value %q: %w", raw, err)
		}
		values[i] = v
	}

	if values[0] == 24 && values[1] == 0 && values[2] == 0 {
		return 24 * time.Hour, nil
	}
	if values[0] < 0 || values[0] > 23 || values[1] < 0 || values[1] > 59 || values[2] < 0 || values[2] > 59 {
		return 0, fmt.Errorf("clock value %q out of range", raw)
	}

	return time.Duration(values[0])*time.Hour + time.Duration(values[1])*time.Minute + time.Duration(values[2])*time.Second, nil
}
