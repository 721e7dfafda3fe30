package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now        time.Time
	StaleAfter time.Duration
}

func renderView(overviews []application.AccountOverview, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Octopus Energy Accounts"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(overviews))),
	}

	if len(overviews) == 0 {
		lines = append(lines, s.empty.Render("No account data available."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, overview := range overviews {
		lines = append(lines, s.section.Render(renderAccount(overview, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccount(overview application.AccountOverview, opts RenderOptions, s styles) string {
	parts := []string{
		s.account.Render("Account " + overview.Account.String()),
		freshnessLine(overview.FetchedAt, opts, s),
	}

	for _, balance := range overview.Balances {
		parts = append(parts, keyValue(s, balance.Ledger.Label()+" balance:", s.detail.Render(formatEUR(balance.BalanceEUR))))
	}
	if line, ok := tariffLine("electricity", overview.Electricity, s); ok {
		parts = append(parts, line)
	}
	if line, ok := tariffLine("gas", overview.Gas, s); ok {
		parts = append(parts, line)
	}
	if overview.BatteryKWh != nil {
		parts = append(parts, keyValue(s, "battery:", s.detail.Render(fmt.Sprintf("%.1f kWh", *overview.BatteryKWh))))
	}
	for _, reading := range overview.LastReadings {
		parts = append(parts, keyValue(s, string(reading.Fuel)+" meter:", s.detail.Render(
			fmt.Sprintf("%.1f", reading.Value))+" "+s.meta.Render("("+formatClock(reading.ReadAt, opts.Now)+")")))
	}

	if len(overview.Devices) == 0 {
		parts = append(parts, s.empty.Render("no devices"))
	}
	for _, device := range overview.Devices {
		parts = append(parts, deviceLines(device, opts, s)...)
	}

	for _, warning := range overview.Warnings {
		parts = append(parts, s.warning.Render("! ")+s.meta.Render(warning))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func freshnessLine(fetchedAt time.Time, opts RenderOptions, s styles) string {
	if fetchedAt.IsZero() {
		return s.warning.Render("never updated")
	}
	if opts.Now.IsZero() {
		return s.header.Render("updated " + fetchedAt.Format(time.RFC3339))
	}

	age := opts.Now.Sub(fetchedAt)
	window := opts.StaleAfter
	if window <= 0 {
		window = 10 * time.Minute
	}
	color := interpolateColor(window.Seconds()-age.Seconds(), 0, window.Seconds())
	line := lipgloss.NewStyle().Foreground(color).Render("updated " + formatAge(age))
	if opts.StaleAfter > 0 && age > opts.StaleAfter {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

func tariffLine(label string, view *application.TariffView, s styles) (string, bool) {
	if view == nil {
		return "", false
	}

	name := strings.TrimSpace(view.Product.FullName)
	if name == "" {
		name = view.Product.Code
	}
	value := s.detail.Render(name)
	if view.CurrentRate != nil {
		value += " " + s.detail.Render(fmt.Sprintf("%.2f ct/kWh", *view.CurrentRate))
	}
	if view.Product.TimeOfUse {
		value += " " + s.meta.Render("[time of use]")
	}
	if view.DaysUntilExpiry != nil {
		value += " " + s.meta.Render(fmt.Sprintf("(%s)", formatDaysLeft(*view.DaysUntilExpiry)))
	}

	return keyValue(s, label+" tariff:", value), true
}

func deviceLines(state application.DeviceState, opts RenderOptions, s styles) []string {
	device := state.Device
	name := strings.TrimSpace(device.Name)
	if name == "" {
		name = device.ID
	}

	lines := []string{
		s.title.Render(name) + " " + s.meta.Render(fmt.Sprintf("(%s, %s, %s)", deviceTypeLabel(device.Type), orUnknown(device.Status.Current), device.ID)),
		"  " + controlLine("smart control:", state.SmartControl, opts, s),
		"  " + controlLine("boost charge:", state.BoostCharge, opts, s),
	}

	if line, ok := dispatchLine(state.Dispatches, opts, s); ok {
		lines = append(lines, "  "+line)
	}

	return lines
}

func controlLine(label string, view application.ControlView, opts RenderOptions, s styles) string {
	state := s.off.Render("off")
	if view.On {
		state = s.on.Render("on")
	}
	line := keyValue(s, label, state)

	if !view.Available {
		line += " " + s.meta.Render("(unavailable)")
	}
	if view.Source == application.ControlFromPending && view.Pending != nil {
		line += " " + s.pending.Render(fmt.Sprintf("[pending %s until %s]", view.Pending.Kind, formatClock(view.Pending.ExpiresAt, opts.Now)))
	}
	if view.Reverted {
		line += " " + s.warning.Render("[not confirmed]")
	}

	return line
}

func dispatchLine(window domain.DispatchWindow, opts RenderOptions, s styles) (string, bool) {
	switch {
	case window.Current != nil:
		current := window.Current
		progress := 0.0
		if total := current.End.Sub(current.Start); total > 0 && !opts.Now.IsZero() {
			progress = 100 * opts.Now.Sub(current.Start).Seconds() / total.Seconds()
		}
		return lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.key.Render("dispatching:"),
			" ",
			renderProgressBar(progress, 20, s),
			" ",
			s.meta.Render(fmt.Sprintf("until %s", formatClock(current.End, opts.Now))),
		), true
	case window.Next != nil:
		next := window.Next
		value := fmt.Sprintf("%s - %s", formatClock(next.Start, opts.Now), formatClock(next.End, opts.Now))
		if next.DeltaKWh != 0 {
			value += fmt.Sprintf(" (%.1f kWh)", math.Abs(next.DeltaKWh))
		}
		return keyValue(s, "next dispatch:", s.detail.Render(value)), true
	default:
		return "", false
	}
}

func keyValue(s styles, key, value string) string {
	return s.key.Render(key) + " " + value
}

func renderProgressBar(donePercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(donePercent) / 100))
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatEUR(amount float64) string {
	return fmt.Sprintf("%.2f EUR", amount)
}

func formatAge(age time.Duration) string {
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		minutes := int(age.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	default:
		hours := int(age.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
}

func formatDaysLeft(days int) string {
	switch {
	case days < 0:
		return "expired"
	case days == 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

// formatClock shows only the time for moments on the same day as now.
func formatClock(at, now time.Time) string {
	if at.IsZero() {
		return "unknown"
	}
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}

	yearA, monthA, dayA := now.Date()
	yearB, monthB, dayB := at.Date()
	if yearA == yearB && monthA == monthB && dayA == dayB {
		return at.Format("15:04")
	}

	return at.Format("15:04 on 02 Jan")
}

func deviceTypeLabel(deviceType domain.DeviceType) string {
	switch deviceType {
	case domain.DeviceTypeElectricVehicles:
		return "EV"
	case domain.DeviceTypeChargePoints:
		return "charge point"
	case "":
		return "device"
	default:
		return strings.ToLower(strings.ReplaceAll(string(deviceType), "_", " "))
	}
}

func orUnknown(value string) string {
	if strings.TrimSpace(value) == "" {
		return "unknown"
	}
	return value
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp: 240 faded at min, 255 bright at max.
	baseColor := 240.0
	targetColor := 255.0
	colorCode := int(baseColor + (targetColor-baseColor)*normalized)

	return lipgloss.Color(fmt.Sprintf("%d", colorCode))
}
