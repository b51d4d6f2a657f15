package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/muurk/easycontrols/internal/protocol"
	"github.com/muurk/easycontrols/internal/version"
)

const manufacturer = "Helios"

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SerialNumber string   `json:"serial_number"`
	ViaDevice    string   `json:"via_device,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type availabilityTopic struct {
	Topic string `json:"topic"`
}

type discoveryConfig struct {
	UniqueID          string              `json:"unique_id"`
	ObjectID          string              `json:"object_id"`
	Name              string              `json:"name"`
	DeviceClass       string              `json:"device_class,omitempty"`
	StateClass        string              `json:"state_class,omitempty"`
	Icon              string              `json:"icon,omitempty"`
	UnitOfMeasurement string              `json:"unit_of_measurement,omitempty"`
	StateTopic        string              `json:"state_topic"`
	CommandTopic      string              `json:"command_topic,omitempty"`
	Options           []string            `json:"options,omitempty"`
	Min               *float64            `json:"min,omitempty"`
	Max               *float64            `json:"max,omitempty"`
	Step              *float64            `json:"step,omitempty"`
	Mode              string              `json:"mode,omitempty"`
	PayloadOn         string              `json:"payload_on,omitempty"`
	PayloadOff        string              `json:"payload_off,omitempty"`
	Availability      []availabilityTopic `json:"availability"`
	AvailabilityMode  string              `json:"availability_mode"`
	Device            discoveryDevice     `json:"device"`
}

// discoveryPayload renders the retained config message of an entity
func (b *Bridge) discoveryPayload(e *entity, snap *protocol.Snapshot) ([]byte, error) {
	serial := b.serial
	name := b.opts.Name
	if name == "" {
		name = snap.Model
	}

	cfg := discoveryConfig{
		UniqueID:          uniqueID(serial, e.key),
		ObjectID:          fmt.Sprintf("kwl_%s_%s", serial, e.key),
		Name:              e.name,
		DeviceClass:       e.deviceClass,
		StateClass:        e.stateClass,
		Icon:              e.icon,
		UnitOfMeasurement: e.unit,
		StateTopic:        b.stateTopic(e),
		Availability: []availabilityTopic{
			{Topic: StatusTopic(b.opts.TopicPrefix)},
			{Topic: b.availabilityTopic()},
		},
		AvailabilityMode: "all",
		Device: discoveryDevice{
			Identifiers:  []string{"easycontrols_" + serial},
			Name:         name,
			Manufacturer: manufacturer,
			Model:        fmt.Sprintf("%s (%s)", snap.Model, snap.Type),
			SerialNumber: serial,
			SWVersion:    version.Version,
		},
	}

	if e.available != nil {
		cfg.Availability = append(cfg.Availability, availabilityTopic{Topic: b.entityAvailabilityTopic(e)})
	}
	if e.command != nil {
		cfg.CommandTopic = b.commandTopic(e)
	}

	switch e.component {
	case componentSelect:
		cfg.Options = e.options
	case componentNumber:
		lo, hi, step := e.min, e.max, e.step
		cfg.Min, cfg.Max, cfg.Step = &lo, &hi, &step
		cfg.Mode = "box"
	case componentSwitch:
		cfg.PayloadOn, cfg.PayloadOff = payloadOn, payloadOff
	}

	return json.Marshal(cfg)
}

func uniqueID(serial, key string) string {
	return serial + "_" + key
}
