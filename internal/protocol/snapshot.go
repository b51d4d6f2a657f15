package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// CO2Unavailable is the sentinel the device reports when no CO2 sensor is fitted
const CO2Unavailable = 0xffff

// Snapshot is the decoded device state of one status dump.
// A Snapshot is only ever produced whole by DecodeResponse.
type Snapshot struct {
	// Identity
	Model        string `json:"model"`
	Type         string `json:"type"`
	SerialNumber uint32 `json:"serial_number"`

	// Operating state
	Mode OperatingMode `json:"mode"`
	IsOn bool          `json:"is_on"`

	// Fan speeds in percent
	CurrentFanSpeed   int `json:"current_fan_speed"`
	AtHomeFanSpeed    int `json:"at_home_fan_speed"`
	AwayFanSpeed      int `json:"away_fan_speed"`
	IntensiveFanSpeed int `json:"intensive_fan_speed"`

	// IntensiveDuration is the configured intensive run time in minutes
	IntensiveDuration int `json:"intensive_duration_minutes"`

	// Temperatures in °C, one decimal
	OutsideTemperature float64 `json:"outside_temperature"`
	SupplyTemperature  float64 `json:"supply_temperature"`
	IndoorTemperature  float64 `json:"indoor_temperature"`
	ExhaustTemperature float64 `json:"exhaust_temperature"`

	// RelativeHumidity in percent
	RelativeHumidity int `json:"relative_humidity"`

	// CO2 in ppm; CO2Unavailable when no sensor is present.
	// Encoded as co2_ppm (null without a sensor) and co2_available.
	CO2 uint16 `json:"-"`

	// Filter schedule (dates at midnight UTC)
	FilterIntervalDays int       `json:"filter_interval_days"`
	FilterChanged      time.Time `json:"filter_changed"`
	FilterDue          time.Time `json:"filter_due"`
}

// CO2Available reports whether the unit has a CO2 sensor
func (s *Snapshot) CO2Available() bool {
	return s.CO2 != CO2Unavailable
}

type snapshotFields Snapshot

type snapshotJSON struct {
	snapshotFields
	CO2          *uint16 `json:"co2_ppm"`
	CO2Available bool    `json:"co2_available"`
}

// MarshalJSON encodes the CO2 sentinel as a null reading
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{snapshotFields: snapshotFields(s)}
	if s.CO2Available() {
		ppm := s.CO2
		out.CO2 = &ppm
		out.CO2Available = true
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the CO2 sentinel for a null or missing reading
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Snapshot(in.snapshotFields)
	s.CO2 = CO2Unavailable
	if in.CO2 != nil {
		s.CO2 = *in.CO2
	}
	return nil
}

// IntensiveDurationClock splits the intensive duration into hours and minutes
func (s *Snapshot) IntensiveDurationClock() (hours, minutes int) {
	return s.IntensiveDuration / 60, s.IntensiveDuration % 60
}

// FanSpeed returns the configured fan speed of a mode
func (s *Snapshot) FanSpeed(mode OperatingMode) (int, error) {
	switch mode {
	case ModeAtHome:
		return s.AtHomeFanSpeed, nil
	case ModeAway:
		return s.AwayFanSpeed, nil
	case ModeIntensive:
		return s.IntensiveFanSpeed, nil
	case ModeIndividual:
		return 0, &UnsupportedModeError{Mode: mode, Operation: "reading the fan speed"}
	default:
		return 0, &InvalidModeError{Value: mode.String()}
	}
}

// String returns a one-line summary
func (s *Snapshot) String() string {
	power := "on"
	if !s.IsOn {
		power = "off"
	}
	return fmt.Sprintf("Snapshot{model=%s, serial=%d, mode=%s, power=%s, fan=%d%%, outside=%.1f°C, rh=%d%%}",
		s.Model, s.SerialNumber, s.Mode, power, s.CurrentFanSpeed, s.OutsideTemperature, s.RelativeHumidity)
}
