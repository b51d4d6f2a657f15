package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm shows a warning box and asks for "yes" on in. Anything else,
// including EOF, declines.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(fmt.Sprintf(" %s  WARNING  ─  %s", WarningMarker, title)), ""}
	for _, warning := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render(" • "+warning))
	}
	lines = append(lines, "")

	fmt.Fprintln(out, ResultBoxStyle(width, WarningColor).Render(strings.Join(lines, "\n")))
	fmt.Fprint(out, WarningTitleStyle.Render(`Type "yes" to continue: `))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(out)
		return false
	}
	if strings.EqualFold(strings.TrimSpace(input), "yes") {
		return true
	}

	fmt.Fprintln(out, NoteStyle.Render("  Cancelled."))
	return false
}

// ConfirmPowerOff asks before switching a unit off
func ConfirmPowerOff(in io.Reader, out io.Writer, device string) bool {
	return Confirm(in, out, "SWITCH OFF "+strings.ToUpper(device), []string{
		"The unit stops ventilating until it is switched on again",
		"Frost protection and humidity control are not active while off",
	})
}
