// Package protocoltest builds synthetic status dumps for tests and fakes that
// stand in for a KWL unit.
package protocoltest

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/muurk/easycontrols/internal/protocol"
)

// StatusFrame is a mutable status dump. The zero value is not usable; call NewStatusFrame.
type StatusFrame struct {
	data []byte
}

// NewStatusFrame returns a decodable status dump for a "KWL 300 / Standard"
// at home, powered on, with plausible sensor readings and no CO2 sensor.
func NewStatusFrame() *StatusFrame {
	f := &StatusFrame{data: make([]byte, protocol.MinStatusFrameSize)}
	return f.
		WithModel(0x02).
		WithType(0x00).
		WithSerial(12345678).
		WithCurrentFanSpeed(35).
		WithFanSpeeds(35, 20, 80).
		WithTemperatures(8.5, 18.2, 21.4, 20.6).
		WithHumidity(45).
		WithCO2(protocol.CO2Unavailable).
		WithFilter(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), 90).
		WithIntensiveDuration(30)
}

// Bytes returns a copy of the frame
func (f *StatusFrame) Bytes() []byte {
	return append([]byte(nil), f.data...)
}

// Response returns the frame as a ResponseFrame
func (f *StatusFrame) Response() protocol.ResponseFrame {
	return protocol.ResponseFrame(f.Bytes())
}

// Set writes a raw byte at an offset
func (f *StatusFrame) Set(offset int, v byte) *StatusFrame {
	f.data[offset] = v
	return f
}

// WithModel sets the raw model byte
func (f *StatusFrame) WithModel(raw byte) *StatusFrame {
	return f.Set(protocol.OffsetDeviceModel, raw)
}

// WithType sets the raw type byte
func (f *StatusFrame) WithType(raw byte) *StatusFrame {
	return f.Set(protocol.OffsetDeviceType, raw)
}

// WithSerial sets the serial number
func (f *StatusFrame) WithSerial(serial uint32) *StatusFrame {
	binary.BigEndian.PutUint32(f.data[protocol.OffsetSerial:], serial)
	return f
}

// WithModeFlags sets A_CYC_STATE, the boost timer and the fireplace timer
func (f *StatusFrame) WithModeFlags(state, boost, fireplace byte) *StatusFrame {
	return f.Set(protocol.OffsetCycleState, state).
		Set(protocol.OffsetBoostTimer, boost).
		Set(protocol.OffsetFireplaceTimer, fireplace)
}

// WithMode sets the mode flags so that the frame decodes to mode
func (f *StatusFrame) WithMode(mode protocol.OperatingMode) *StatusFrame {
	switch mode {
	case protocol.ModeAway:
		return f.WithModeFlags(1, 0, 0)
	case protocol.ModeIntensive:
		return f.WithModeFlags(0, 1, 0)
	case protocol.ModeIndividual:
		return f.WithModeFlags(0, 0, 1)
	default:
		return f.WithModeFlags(0, 0, 0)
	}
}

// WithPower sets the power state byte (0 means on)
func (f *StatusFrame) WithPower(on bool) *StatusFrame {
	if on {
		return f.Set(protocol.OffsetPowerState, 0)
	}
	return f.Set(protocol.OffsetPowerState, 1)
}

// WithCurrentFanSpeed sets the current fan speed in percent
func (f *StatusFrame) WithCurrentFanSpeed(percent byte) *StatusFrame {
	return f.Set(protocol.OffsetCurrentFan, percent)
}

// WithFanSpeeds sets the configured per-mode fan speeds
func (f *StatusFrame) WithFanSpeeds(atHome, away, intensive byte) *StatusFrame {
	return f.Set(protocol.OffsetAtHomeFan, atHome).
		Set(protocol.OffsetAwayFan, away).
		Set(protocol.OffsetIntensiveFan, intensive)
}

// WithTemperatureWord writes a raw centikelvin word at a temperature offset
func (f *StatusFrame) WithTemperatureWord(offset int, raw uint16) *StatusFrame {
	binary.BigEndian.PutUint16(f.data[offset:], raw)
	return f
}

// WithTemperatures sets outside, supply, indoor and exhaust temperatures in °C
func (f *StatusFrame) WithTemperatures(outside, supply, indoor, exhaust float64) *StatusFrame {
	return f.WithTemperatureWord(protocol.OffsetOutsideTemp, toCentikelvin(outside)).
		WithTemperatureWord(protocol.OffsetSupplyTemp, toCentikelvin(supply)).
		WithTemperatureWord(protocol.OffsetIndoorTemp, toCentikelvin(indoor)).
		WithTemperatureWord(protocol.OffsetExhaustTemp, toCentikelvin(exhaust))
}

// WithHumidity sets the relative humidity in percent
func (f *StatusFrame) WithHumidity(percent byte) *StatusFrame {
	return f.Set(protocol.OffsetHumidity, percent)
}

// WithCO2 sets the CO2 reading in ppm
func (f *StatusFrame) WithCO2(ppm uint16) *StatusFrame {
	binary.BigEndian.PutUint16(f.data[protocol.OffsetCO2:], ppm)
	return f
}

// WithFilter sets the last filter change date and the change interval in days
func (f *StatusFrame) WithFilter(changed time.Time, intervalDays byte) *StatusFrame {
	return f.Set(protocol.OffsetFilterDay, byte(changed.Day())).
		Set(protocol.OffsetFilterMonth, byte(changed.Month())).
		Set(protocol.OffsetFilterYear, byte(changed.Year()-2000)).
		Set(protocol.OffsetFilterInterval, intervalDays)
}

// WithIntensiveDuration sets the configured intensive duration in minutes
func (f *StatusFrame) WithIntensiveDuration(minutes byte) *StatusFrame {
	return f.Set(protocol.OffsetIntensiveTime, minutes)
}

func toCentikelvin(celsius float64) uint16 {
	return uint16(math.Round((celsius + 273.15) * 100))
}
