package protocol

import (
	"errors"
	"fmt"
)

// DecodeErrorKind categorizes a failure to decode a response frame
type DecodeErrorKind int

const (
	// DecodeTruncated means the frame is shorter than the highest referenced offset
	DecodeTruncated DecodeErrorKind = iota
	// DecodeUnknownLookup means a model or type byte has no table entry
	DecodeUnknownLookup
	// DecodeInvalidField means a field holds a value that cannot be represented (e.g. month 0)
	DecodeInvalidField
)

// String returns a human-readable name for the kind
func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeTruncated:
		return "truncated"
	case DecodeUnknownLookup:
		return "unknown lookup"
	case DecodeInvalidField:
		return "invalid field"
	default:
		return fmt.Sprintf("DecodeErrorKind(%d)", int(k))
	}
}

// DecodeError is returned by DecodeResponse
type DecodeError struct {
	Kind   DecodeErrorKind
	Field  string // Field being decoded when the error occurred
	Offset int    // Byte offset of the field
	Value  int    // Offending raw value (UnknownLookup/InvalidField) or frame length (Truncated)
	Err    error  // Underlying error, if any
}

// Error implements the error interface
func (e *DecodeError) Error() string {
	switch e.Kind {
	case DecodeTruncated:
		return fmt.Sprintf("decode: frame truncated: %d bytes (minimum %d)", e.Value, e.Offset+1)
	case DecodeUnknownLookup:
		return fmt.Sprintf("decode: unknown %s 0x%02x at offset %d", e.Field, e.Value, e.Offset)
	default:
		if e.Err != nil {
			return fmt.Sprintf("decode: invalid %s at offset %d: %v", e.Field, e.Offset, e.Err)
		}
		return fmt.Sprintf("decode: invalid %s 0x%02x at offset %d", e.Field, e.Value, e.Offset)
	}
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnsupportedModeError is returned when an operation is not available in a mode,
// e.g. setting the fan speed of the Individual mode.
type UnsupportedModeError struct {
	Mode      OperatingMode
	Operation string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("%s is not supported in mode %s", e.Operation, e.Mode)
}

// InvalidModeError is returned for a mode outside the known enumeration
type InvalidModeError struct {
	Value string
}

func (e *InvalidModeError) Error() string {
	return fmt.Sprintf("invalid operating mode %q (expected at-home, away, intensive or individual)", e.Value)
}

// IsDecodeError reports whether err is (or wraps) a DecodeError
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsModeError reports whether err is an UnsupportedModeError or InvalidModeError
func IsModeError(err error) bool {
	var unsupported *UnsupportedModeError
	var invalid *InvalidModeError
	return errors.As(err, &unsupported) || errors.As(err, &invalid)
}
