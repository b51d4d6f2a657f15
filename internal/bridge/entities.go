package bridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/easycontrols/internal/protocol"
)

// Home Assistant MQTT components
const (
	componentSensor = "sensor"
	componentSelect = "select"
	componentNumber = "number"
	componentSwitch = "switch"
)

const (
	payloadOn  = "ON"
	payloadOff = "OFF"
	dateLayout = "2006-01-02"
)

// entity is one Home Assistant entity backed by a snapshot field
type entity struct {
	component   string
	key         string
	name        string
	deviceClass string
	stateClass  string
	unit        string
	icon        string

	// number range
	min, max, step float64

	// select options
	options []string

	// available reports whether the unit supports the entity; nil means always
	available func(*protocol.Snapshot) bool

	state   func(*protocol.Snapshot) string
	command func(ctx context.Context, d Device, payload string) error
}

func (e *entity) supported(snap *protocol.Snapshot) bool {
	return e.available == nil || e.available(snap)
}

func modeOptions() []string {
	options := make([]string, 0, len(protocol.Modes))
	for _, m := range protocol.Modes {
		options = append(options, m.DisplayName())
	}
	return options
}

func temperature(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func fanSpeedCommand(mode protocol.OperatingMode) func(context.Context, Device, string) error {
	return func(ctx context.Context, d Device, payload string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
		if err != nil {
			return fmt.Errorf("invalid fan speed %q: %w", payload, err)
		}
		return d.SetFanSpeed(ctx, v, mode)
	}
}

var entities = []*entity{
	{
		component:   componentSensor,
		key:         "relative_humidity",
		name:        "Relative Humidity",
		deviceClass: "humidity",
		stateClass:  "measurement",
		unit:        "%",
		state:       func(s *protocol.Snapshot) string { return strconv.Itoa(s.RelativeHumidity) },
	},
	{
		component:   componentSensor,
		key:         "outside_temperature",
		name:        "Outside Temperature",
		deviceClass: "temperature",
		stateClass:  "measurement",
		unit:        "°C",
		state:       func(s *protocol.Snapshot) string { return temperature(s.OutsideTemperature) },
	},
	{
		component:   componentSensor,
		key:         "supply_temperature",
		name:        "Supply Temperature",
		deviceClass: "temperature",
		stateClass:  "measurement",
		unit:        "°C",
		state:       func(s *protocol.Snapshot) string { return temperature(s.SupplyTemperature) },
	},
	{
		component:   componentSensor,
		key:         "indoor_temperature",
		name:        "Indoor Temperature",
		deviceClass: "temperature",
		stateClass:  "measurement",
		unit:        "°C",
		state:       func(s *protocol.Snapshot) string { return temperature(s.IndoorTemperature) },
	},
	{
		component:   componentSensor,
		key:         "exhaust_temperature",
		name:        "Exhaust Temperature",
		deviceClass: "temperature",
		stateClass:  "measurement",
		unit:        "°C",
		state:       func(s *protocol.Snapshot) string { return temperature(s.ExhaustTemperature) },
	},
	{
		component:  componentSensor,
		key:        "current_fan_speed",
		name:       "Current Fan Speed",
		stateClass: "measurement",
		unit:       "%",
		icon:       "mdi:fan",
		state:      func(s *protocol.Snapshot) string { return strconv.Itoa(s.CurrentFanSpeed) },
	},
	{
		component:   componentSensor,
		key:         "co2",
		name:        "CO2",
		deviceClass: "carbon_dioxide",
		stateClass:  "measurement",
		unit:        "ppm",
		available:   func(s *protocol.Snapshot) bool { return s.CO2Available() },
		state:       func(s *protocol.Snapshot) string { return strconv.Itoa(int(s.CO2)) },
	},
	{
		component:   componentSensor,
		key:         "filter_changed",
		name:        "Last Filter Change",
		deviceClass: "date",
		icon:        "mdi:calendar-sync-outline",
		state:       func(s *protocol.Snapshot) string { return s.FilterChanged.Format(dateLayout) },
	},
	{
		component:   componentSensor,
		key:         "filter_due",
		name:        "Next Filter Change",
		deviceClass: "date",
		icon:        "mdi:calendar-alert-outline",
		state:       func(s *protocol.Snapshot) string { return s.FilterDue.Format(dateLayout) },
	},
	{
		component: componentSelect,
		key:       "mode",
		name:      "Operating Mode",
		icon:      "mdi:home-export-outline",
		options:   modeOptions(),
		state:     func(s *protocol.Snapshot) string { return s.Mode.DisplayName() },
		command: func(ctx context.Context, d Device, payload string) error {
			mode, err := protocol.ParseMode(payload)
			if err != nil {
				return err
			}
			return d.SwitchMode(ctx, mode)
		},
	},
	{
		component: componentNumber,
		key:       "at_home_fan_speed",
		name:      "At Home Fan Speed",
		unit:      "%",
		icon:      "mdi:fan",
		min:       protocol.MinFanSpeed, max: protocol.MaxFanSpeed, step: 1,
		state:   func(s *protocol.Snapshot) string { return strconv.Itoa(s.AtHomeFanSpeed) },
		command: fanSpeedCommand(protocol.ModeAtHome),
	},
	{
		component: componentNumber,
		key:       "away_fan_speed",
		name:      "Away Fan Speed",
		unit:      "%",
		icon:      "mdi:fan-chevron-down",
		min:       protocol.MinFanSpeed, max: protocol.MaxFanSpeed, step: 1,
		state:   func(s *protocol.Snapshot) string { return strconv.Itoa(s.AwayFanSpeed) },
		command: fanSpeedCommand(protocol.ModeAway),
	},
	{
		component: componentNumber,
		key:       "intensive_fan_speed",
		name:      "Intensive Fan Speed",
		unit:      "%",
		icon:      "mdi:fan-chevron-up",
		min:       protocol.MinFanSpeed, max: protocol.MaxFanSpeed, step: 1,
		state:   func(s *protocol.Snapshot) string { return strconv.Itoa(s.IntensiveFanSpeed) },
		command: fanSpeedCommand(protocol.ModeIntensive),
	},
	{
		component:   componentNumber,
		key:         "intensive_duration",
		name:        "Intensive Duration",
		deviceClass: "duration",
		unit:        "min",
		icon:        "mdi:timer-outline",
		min:         protocol.MinIntensiveDuration, max: protocol.MaxIntensiveDuration, step: 1,
		state: func(s *protocol.Snapshot) string { return strconv.Itoa(s.IntensiveDuration) },
		command: func(ctx context.Context, d Device, payload string) error {
			v, err := strconv.ParseFloat(strings.TrimSpace(payload), 64)
			if err != nil {
				return fmt.Errorf("invalid duration %q: %w", payload, err)
			}
			return d.SetIntensiveDuration(ctx, v)
		},
	},
	{
		component: componentSwitch,
		key:       "power",
		name:      "Power",
		icon:      "mdi:power",
		state: func(s *protocol.Snapshot) string {
			if s.IsOn {
				return payloadOn
			}
			return payloadOff
		},
		command: func(ctx context.Context, d Device, payload string) error {
			switch strings.ToUpper(strings.TrimSpace(payload)) {
			case payloadOn:
				return d.SetPower(ctx, true)
			case payloadOff:
				return d.SetPower(ctx, false)
			default:
				return fmt.Errorf("invalid power payload %q (expected %s or %s)", payload, payloadOn, payloadOff)
			}
		},
	},
}
