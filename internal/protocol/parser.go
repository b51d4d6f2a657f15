package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Byte offsets in the status dump returned for BuildReadRequest.
// Most single-byte fields are the low byte of a big-endian word (2*word+1).
const (
	OffsetSerial         = 14 * 2 // 4 bytes, big-endian
	OffsetDeviceType     = 16*2 + 1
	OffsetDeviceModel    = 17*2 + 1
	OffsetIndoorTemp     = 65 * 2 // 2 bytes, centikelvin
	OffsetExhaustTemp    = 66 * 2
	OffsetOutsideTemp    = 67 * 2
	OffsetSupplyTemp     = 69 * 2
	OffsetHumidity       = 74*2 + 1
	OffsetCurrentFan     = 129
	OffsetCO2            = 182 // 2 bytes, big-endian
	OffsetCycleState     = 107*2 + 1
	OffsetBoostTimer     = 110*2 + 1
	OffsetFireplaceTimer = 111*2 + 1
	OffsetPowerState     = 217
	OffsetFilterInterval = 239*2 + 1
	OffsetAwayFan        = 407
	OffsetAtHomeFan      = 419
	OffsetIntensiveFan   = 431
	OffsetIntensiveTime  = 493
	OffsetFilterDay      = 248*2 + 1
	OffsetFilterMonth    = 249*2 + 1
	OffsetFilterYear     = 250*2 + 1

	// MinStatusFrameSize covers the highest referenced offset (the filter year)
	MinStatusFrameSize = OffsetFilterYear + 1
)

// DecodeResponse decodes a status dump into a Snapshot.
// The frame is never partially applied: either a complete Snapshot or an error is returned.
func DecodeResponse(frame ResponseFrame) (*Snapshot, error) {
	data := []byte(frame)
	if len(data) < MinStatusFrameSize {
		return nil, &DecodeError{Kind: DecodeTruncated, Field: "frame", Offset: MinStatusFrameSize - 1, Value: len(data)}
	}

	model, ok := LookupModel(data[OffsetDeviceModel])
	if !ok {
		return nil, &DecodeError{Kind: DecodeUnknownLookup, Field: "device model", Offset: OffsetDeviceModel, Value: int(data[OffsetDeviceModel])}
	}
	deviceType, ok := LookupType(data[OffsetDeviceType])
	if !ok {
		return nil, &DecodeError{Kind: DecodeUnknownLookup, Field: "device type", Offset: OffsetDeviceType, Value: int(data[OffsetDeviceType])}
	}

	filterChanged, err := decodeFilterDate(data)
	if err != nil {
		return nil, err
	}
	filterInterval := int(data[OffsetFilterInterval])

	return &Snapshot{
		Model:        model,
		Type:         deviceType,
		SerialNumber: binary.BigEndian.Uint32(data[OffsetSerial : OffsetSerial+4]),

		Mode: DecodeMode(data[OffsetCycleState], data[OffsetBoostTimer], data[OffsetFireplaceTimer]),
		IsOn: data[OffsetPowerState] == 0,

		CurrentFanSpeed:   int(data[OffsetCurrentFan]),
		AtHomeFanSpeed:    int(data[OffsetAtHomeFan]),
		AwayFanSpeed:      int(data[OffsetAwayFan]),
		IntensiveFanSpeed: int(data[OffsetIntensiveFan]),
		IntensiveDuration: int(data[OffsetIntensiveTime]),

		OutsideTemperature: CentikelvinToCelsius(wordAt(data, OffsetOutsideTemp/2)),
		SupplyTemperature:  CentikelvinToCelsius(wordAt(data, OffsetSupplyTemp/2)),
		IndoorTemperature:  CentikelvinToCelsius(wordAt(data, OffsetIndoorTemp/2)),
		ExhaustTemperature: CentikelvinToCelsius(wordAt(data, OffsetExhaustTemp/2)),

		RelativeHumidity: int(lowByteAt(data, OffsetHumidity/2)),
		CO2:              binary.BigEndian.Uint16(data[OffsetCO2 : OffsetCO2+2]),

		FilterIntervalDays: filterInterval,
		FilterChanged:      filterChanged,
		FilterDue:          filterChanged.AddDate(0, 0, filterInterval),
	}, nil
}

// decodeFilterDate reads the last filter change. time.Date normalizes out-of-range
// values, so day and month are checked first.
func decodeFilterDate(data []byte) (time.Time, error) {
	day := int(data[OffsetFilterDay])
	month := int(data[OffsetFilterMonth])
	year := 2000 + int(data[OffsetFilterYear])

	if month < 1 || month > 12 {
		return time.Time{}, &DecodeError{Kind: DecodeInvalidField, Field: "filter change month", Offset: OffsetFilterMonth, Value: month}
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if day < 1 || date.Day() != day {
		return time.Time{}, &DecodeError{
			Kind:   DecodeInvalidField,
			Field:  "filter change day",
			Offset: OffsetFilterDay,
			Value:  day,
			Err:    fmt.Errorf("%04d-%02d has no day %d", year, month, day),
		}
	}

	return date, nil
}
