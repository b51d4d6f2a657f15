// Package protocol implements the Helios easyControls 3.0 binary protocol.
//
// This package handles construction of command frames and decoding of the
// status dump sent by KWL ventilation units. Frames travel as single binary
// WebSocket messages; the transport lives in package transport.
//
// # Frame Format
//
// Every frame is a sequence of little-endian 16-bit words:
//   - Count: number of words that follow
//   - Opcode: 0xf6 read, 0xf5 acknowledgement, 0xf9 write
//   - Payload: register address / value pairs
//   - Checksum: 16-bit sum of all preceding words
//
// The read request is fixed:
//
//	03 00 f6 00 00 00 f9 00
//
// and every accepted write is answered with the generic acknowledgement:
//
//	02 00 f5 00 f7 00
//
// # Status Dump
//
// The response to a read is a fixed-offset record with no length prefix.
// Temperatures are big-endian centikelvin words, most other values the low
// byte of a word. DecodeResponse applies the offset table and returns a
// Snapshot, or a DecodeError if the frame is truncated, names an unknown
// device identity, or holds an impossible filter date.
//
// # Operating Modes
//
// The unit has no single mode register. The mode is derived from three
// overlapping raw values with a fixed priority:
//
//	Individual (fireplace timer) > Intensive (boost timer) > Away (cycle state) > At Home
//
// # Usage Example
//
//	frame, err := protocol.BuildSwitchModeFrame(protocol.ModeIntensive, 45)
//	if err != nil {
//	    return err
//	}
//	resp, err := exchanger.Exchange(ctx, frame)
//	if err != nil {
//	    return err
//	}
//	if !protocol.VerifyAck(resp) {
//	    logging.Warn("unexpected acknowledgement")
//	}
//
// # Thread Safety
//
// All construction and decoding functions are stateless and safe for concurrent use.
package protocol
