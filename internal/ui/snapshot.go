package ui

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/easycontrols/internal/protocol"
)

// SnapshotView is one unit's state as shown by status and watch
type SnapshotView struct {
	Name       string
	Host       string
	Snapshot   *protocol.Snapshot
	Available  bool
	LastUpdate time.Time
	LastError  error
	// Now is the reference time for ages and the filter schedule; time.Now when zero
	Now time.Time
}

type snapshotJSON struct {
	Device     string             `json:"device"`
	Host       string             `json:"host"`
	Available  bool               `json:"available"`
	LastUpdate *time.Time         `json:"last_update,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
	Snapshot   *protocol.Snapshot `json:"snapshot,omitempty"`
}

// RenderJSON renders the view as indented JSON
func RenderJSON(v SnapshotView) (string, error) {
	out := snapshotJSON{
		Device:    v.Name,
		Host:      v.Host,
		Available: v.Available,
		Snapshot:  v.Snapshot,
	}
	if !v.LastUpdate.IsZero() {
		last := v.LastUpdate
		out.LastUpdate = &last
	}
	if v.LastError != nil {
		out.LastError = v.LastError.Error()
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RenderSnapshot renders the detailed status box
func RenderSnapshot(v SnapshotView, width int) string {
	width = clampWidth(width)
	now := v.Now
	if now.IsZero() {
		now = time.Now()
	}

	badge := OnlineBadgeStyle.Render("ONLINE")
	if !v.Available {
		badge = OfflineBadgeStyle.Render("OFFLINE")
	}

	s := v.Snapshot
	if s == nil {
		lines := []string{
			HeaderTitleStyle.Render(strings.ToUpper(v.Name)) + "  " + badge,
			"",
			renderRow("Host", v.Host),
			NoteStyle.Render("No data received from the unit yet"),
		}
		if v.LastError != nil {
			lines = append(lines, ErrorMessageStyle.Render("Error: "+v.LastError.Error()))
		}
		return BoxStyle(width, MutedColor).Render(strings.Join(lines, "\n"))
	}

	title := HeaderTitleStyle.Render(strings.ToUpper(v.Name)) + "  " + badge
	subtitle := HeaderCommandStyle.Render(fmt.Sprintf("%s (%s) · serial %d · %s", s.Model, s.Type, s.SerialNumber, v.Host))

	power := "on"
	if !s.IsOn {
		power = "off"
	}

	sections := []string{
		lipgloss.JoinVertical(lipgloss.Left, title, subtitle),
		renderSection("Operation",
			[2]string{"Mode", s.Mode.DisplayName()},
			[2]string{"Power", power},
			[2]string{"Current fan speed", fmt.Sprintf("%d%%", s.CurrentFanSpeed)},
		),
		renderSection("Fan levels",
			[2]string{"At Home", fmt.Sprintf("%d%%", s.AtHomeFanSpeed)},
			[2]string{"Away", fmt.Sprintf("%d%%", s.AwayFanSpeed)},
			[2]string{"Intensive", fmt.Sprintf("%d%%", s.IntensiveFanSpeed)},
			[2]string{"Intensive duration", FormatMinutes(s.IntensiveDuration)},
		),
		renderSection("Climate",
			[2]string{"Outside air", formatTemperature(s.OutsideTemperature)},
			[2]string{"Supply air", formatTemperature(s.SupplyTemperature)},
			[2]string{"Extract air", formatTemperature(s.IndoorTemperature)},
			[2]string{"Exhaust air", formatTemperature(s.ExhaustTemperature)},
			[2]string{"Relative humidity", fmt.Sprintf("%d%%", s.RelativeHumidity)},
			[2]string{"CO2", formatCO2(s)},
		),
		renderFilter(s, now, width),
	}

	footer := fmt.Sprintf("Updated %s", FormatAge(now.Sub(v.LastUpdate)))
	if v.LastUpdate.IsZero() {
		footer = "Never updated"
	}
	if v.LastError != nil {
		footer += " · last read failed: " + v.LastError.Error()
	}
	sections = append(sections, NoteStyle.Render(footer))

	color := SuccessColor
	if !v.Available {
		color = ErrorColor
	}
	return BoxStyle(width, color).Render(strings.Join(sections, "\n\n"))
}

func renderSection(title string, rows ...[2]string) string {
	lines := []string{SectionTitleStyle.Render(title)}
	for _, row := range rows {
		lines = append(lines, "  "+renderRow(row[0], row[1]))
	}
	return strings.Join(lines, "\n")
}

func renderFilter(s *protocol.Snapshot, now time.Time, width int) string {
	remaining, elapsed := FilterProgress(s, now)

	due := fmt.Sprintf("%s (in %d days)", s.FilterDue.Format("2006-01-02"), remaining)
	switch {
	case remaining == 0:
		due = fmt.Sprintf("%s (today)", s.FilterDue.Format("2006-01-02"))
	case remaining < 0:
		due = WarningTitleStyle.Render(fmt.Sprintf("%s (overdue by %d days)", s.FilterDue.Format("2006-01-02"), -remaining))
	}

	barWidth := width - 12
	if barWidth > 50 {
		barWidth = 50
	}
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth))

	return strings.Join([]string{
		renderSection("Filter",
			[2]string{"Last change", s.FilterChanged.Format("2006-01-02")},
			[2]string{"Interval", fmt.Sprintf("%d days", s.FilterIntervalDays)},
			[2]string{"Next change", due},
		),
		"  " + bar.ViewAs(elapsed),
	}, "\n")
}

// FilterProgress returns the whole days until the filter is due (negative when
// overdue) and the elapsed share of the interval in [0, 1].
func FilterProgress(s *protocol.Snapshot, now time.Time) (remainingDays int, elapsed float64) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	remainingDays = int(math.Round(s.FilterDue.Sub(today).Hours() / 24))

	if s.FilterIntervalDays <= 0 {
		return remainingDays, 1
	}
	used := today.Sub(s.FilterChanged).Hours() / 24 / float64(s.FilterIntervalDays)
	return remainingDays, math.Max(0, math.Min(1, used))
}

// FormatMinutes renders a duration in minutes as "45m", "2h" or "1h 30m"
func FormatMinutes(minutes int) string {
	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// FormatAge renders how long ago something happened
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func formatTemperature(v float64) string {
	return fmt.Sprintf("%.1f °C", v)
}

func formatCO2(s *protocol.Snapshot) string {
	if !s.CO2Available() {
		return "no sensor"
	}
	return fmt.Sprintf("%d ppm", s.CO2)
}
