package protocol

import (
	"fmt"
	"math"
)

// Frame constructors for commands sent to the KWL unit.
// Register addresses are written little-endian, as the device expects.

const (
	regCycleState     = 0x1201 // A_CYC_STATE: 0 at home, 1 away
	regPower          = 0x1202 // 0 on, 5 off
	regBoostTimer     = 0x1204 // A_CYC_BOOST_TIMER, minutes
	regFireplaceTimer = 0x1205 // A_CYC_FIREPLACE_TIMER, minutes
	regBoostDuration  = 0x5040 // Configured intensive duration, minutes

	// fireplaceTimerValue is the timer value written to enter Individual mode
	fireplaceTimerValue = 0x0096

	// MinIntensiveDuration and MaxIntensiveDuration bound the intensive duration in minutes.
	// More than a day (0x5A0) makes no sense for the device.
	MinIntensiveDuration = 1
	MaxIntensiveDuration = 0x5a0
)

// BuildReadRequest returns the frame that requests a full status dump
//
//	03 00 f6 00 00 00 f9 00
func BuildReadRequest() RequestFrame {
	return cloneFrame(readRequestFrame)
}

// BuildSwitchModeFrame constructs the command that puts the unit in the target mode
//
// Frame templates:
//
//	AtHome      08 00 f9 00 01 12 00 00 04 12 00 00 05 12 00 00 0b 37
//	Away        08 00 f9 00 01 12 01 00 04 12 00 00 05 12 00 00 0c 37
//	Intensive   06 00 f9 00 04 12 <d LE16> 05 12 00 00 <d+0x2508 LE16>
//	Individual  06 00 f9 00 04 12 00 00 05 12 96 00 9e 25
//
// intensiveMinutes is only used for ModeIntensive and must lie in
// [MinIntensiveDuration, MaxIntensiveDuration].
func BuildSwitchModeFrame(target OperatingMode, intensiveMinutes int) (RequestFrame, error) {
	b := newFrameBuilder(opcodeWrite)

	switch target {
	case ModeAtHome:
		b.set(regCycleState, 0).set(regBoostTimer, 0).set(regFireplaceTimer, 0)
	case ModeAway:
		b.set(regCycleState, 1).set(regBoostTimer, 0).set(regFireplaceTimer, 0)
	case ModeIntensive:
		if intensiveMinutes < MinIntensiveDuration || intensiveMinutes > MaxIntensiveDuration {
			return nil, fmt.Errorf("intensive duration %d out of range [%d, %d]",
				intensiveMinutes, MinIntensiveDuration, MaxIntensiveDuration)
		}
		b.set(regBoostTimer, uint16(intensiveMinutes)).set(regFireplaceTimer, 0)
	case ModeIndividual:
		b.set(regBoostTimer, 0).set(regFireplaceTimer, fireplaceTimerValue)
	default:
		return nil, &InvalidModeError{Value: target.String()}
	}

	return b.frame(), nil
}

// ClampIntensiveDuration limits a requested duration in minutes to
// [MinIntensiveDuration, MaxIntensiveDuration], rounding in between
func ClampIntensiveDuration(requested float64) int {
	switch {
	case math.IsNaN(requested) || requested < MinIntensiveDuration:
		return MinIntensiveDuration
	case requested > MaxIntensiveDuration:
		return MaxIntensiveDuration
	default:
		return int(math.Round(requested))
	}
}

// BuildIntensiveDurationFrame constructs the command that configures how long
// the intensive mode runs
//
//	04 00 f9 00 40 50 <d LE16> <d+0x513D LE16>
func BuildIntensiveDurationFrame(minutes int) (RequestFrame, error) {
	if minutes < MinIntensiveDuration || minutes > MaxIntensiveDuration {
		return nil, fmt.Errorf("intensive duration %d out of range [%d, %d]",
			minutes, MinIntensiveDuration, MaxIntensiveDuration)
	}

	return newFrameBuilder(opcodeWrite).
		word(regBoostDuration).
		word(uint16(minutes)).
		frame(), nil
}

// BuildPowerFrame constructs the power command
//
//	on   04 00 f9 00 02 12 00 00 ff 12
//	off  04 00 f9 00 02 12 05 00 04 13
func BuildPowerFrame(on bool) RequestFrame {
	if on {
		return cloneFrame(powerOnFrame)
	}
	return cloneFrame(powerOffFrame)
}

// VerifyAck compares a response byte-for-byte against the generic acknowledgement
//
//	02 00 f5 00 f7 00
func VerifyAck(frame ResponseFrame) bool {
	return frame.IsAck()
}

// ValidateChecksum checks the count and checksum words of a frame. It is used to
// describe unexpected acknowledgements; VerifyAck stays byte-exact.
func ValidateChecksum(frame []byte) error {
	if len(frame) < 6 || len(frame)%2 != 0 {
		return fmt.Errorf("frame length %d is not a whole number of words (minimum 6 bytes)", len(frame))
	}

	words := make([]uint16, len(frame)/2)
	for i := range words {
		words[i] = uint16(frame[2*i]) | uint16(frame[2*i+1])<<8
	}

	if int(words[0]) != len(words)-1 {
		return fmt.Errorf("word count %d does not match frame (%d words follow)", words[0], len(words)-1)
	}

	want := checksum(words[:len(words)-1])
	if got := words[len(words)-1]; got != want {
		return fmt.Errorf("checksum 0x%04x does not match computed 0x%04x", got, want)
	}

	return nil
}
