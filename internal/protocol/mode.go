package protocol

import (
	"fmt"
	"strings"
)

// OperatingMode is the logical ventilation mode of the unit.
type OperatingMode int

const (
	// ModeAtHome is the default mode (all raw flags zero)
	ModeAtHome OperatingMode = iota
	// ModeAway is selected by a non-zero A_CYC_STATE
	ModeAway
	// ModeIntensive is selected by a running boost timer
	ModeIntensive
	// ModeIndividual (fireplace boost) is selected by a running fireplace timer
	ModeIndividual
)

// Modes lists every valid mode in priority order, lowest first
var Modes = []OperatingMode{ModeAtHome, ModeAway, ModeIntensive, ModeIndividual}

// String returns the CLI/API name of the mode
func (m OperatingMode) String() string {
	switch m {
	case ModeAtHome:
		return "at-home"
	case ModeAway:
		return "away"
	case ModeIntensive:
		return "intensive"
	case ModeIndividual:
		return "individual"
	default:
		return fmt.Sprintf("OperatingMode(%d)", int(m))
	}
}

// DisplayName returns the human-readable name shown in Home Assistant
func (m OperatingMode) DisplayName() string {
	switch m {
	case ModeAtHome:
		return "At Home"
	case ModeAway:
		return "Away"
	case ModeIntensive:
		return "Intensive"
	case ModeIndividual:
		return "Individual"
	default:
		return m.String()
	}
}

// Valid reports whether m is one of the four known modes
func (m OperatingMode) Valid() bool {
	return m >= ModeAtHome && m <= ModeIndividual
}

// ParseMode accepts either the CLI name ("at-home") or the display name ("At Home"),
// case-insensitively.
func ParseMode(s string) (OperatingMode, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, m := range Modes {
		if needle == m.String() || needle == strings.ToLower(m.DisplayName()) {
			return m, nil
		}
	}
	switch needle {
	case "athome", "home":
		return ModeAtHome, nil
	case "fireplace":
		return ModeIndividual, nil
	}
	return 0, &InvalidModeError{Value: s}
}

// MarshalText implements encoding.TextMarshaler
func (m OperatingMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, &InvalidModeError{Value: m.String()}
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *OperatingMode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// modeOverlay is applied in order; a later entry whose flag is set overrides
// every earlier one. Priority: Individual > Intensive > Away > AtHome.
var modeOverlay = []struct {
	mode OperatingMode
	set  func(state, boost, fireplace byte) bool
}{
	{ModeAway, func(state, _, _ byte) bool { return state != 0 }},
	{ModeIntensive, func(_, boost, _ byte) bool { return boost != 0 }},
	{ModeIndividual, func(_, _, fireplace byte) bool { return fireplace != 0 }},
}

// DecodeMode derives the operating mode from A_CYC_STATE, A_CYC_BOOST_TIMER and
// A_CYC_FIREPLACE_TIMER. Several flags may be non-zero at once.
func DecodeMode(state, boostTimer, fireplaceTimer byte) OperatingMode {
	mode := ModeAtHome
	for _, layer := range modeOverlay {
		if layer.set(state, boostTimer, fireplaceTimer) {
			mode = layer.mode
		}
	}
	return mode
}
