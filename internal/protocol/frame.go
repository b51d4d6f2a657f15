package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// RequestFrame is a byte sequence built by the client and sent to the device.
type RequestFrame []byte

// ResponseFrame is a byte sequence received from the device.
type ResponseFrame []byte

// Fixed frames (must match byte-for-byte for interoperability)
var (
	readRequestFrame = []byte{0x03, 0x00, 0xf6, 0x00, 0x00, 0x00, 0xf9, 0x00}
	ackFrame         = []byte{0x02, 0x00, 0xf5, 0x00, 0xf7, 0x00}
	powerOffFrame    = []byte{0x04, 0x00, 0xf9, 0x00, 0x02, 0x12, 0x05, 0x00, 0x04, 0x13}
	powerOnFrame     = []byte{0x04, 0x00, 0xf9, 0x00, 0x02, 0x12, 0x00, 0x00, 0xff, 0x12}
)

// Hex returns the lowercase hex encoding of the frame
func (f RequestFrame) Hex() string {
	return hex.EncodeToString(f)
}

// String returns a debug representation of the frame
func (f RequestFrame) String() string {
	return fmt.Sprintf("RequestFrame{len=%d, hex=%s}", len(f), f.Hex())
}

// Hex returns the lowercase hex encoding of the frame
func (f ResponseFrame) Hex() string {
	return hex.EncodeToString(f)
}

// String returns a debug representation of the frame
func (f ResponseFrame) String() string {
	if len(f) > 32 {
		return fmt.Sprintf("ResponseFrame{len=%d, head=%s...}", len(f), hex.EncodeToString(f[:32]))
	}
	return fmt.Sprintf("ResponseFrame{len=%d, hex=%s}", len(f), f.Hex())
}

// IsAck reports whether the frame is the generic acknowledgement
func (f ResponseFrame) IsAck() bool {
	return bytes.Equal(f, ackFrame)
}

// AckFrame returns a copy of the generic acknowledgement frame.
// Useful for fakes and tests that stand in for a device.
func AckFrame() ResponseFrame {
	return append(ResponseFrame(nil), ackFrame...)
}

// Frame layout shared by every request, acknowledgement and command:
//
//	[0-1]   count          Number of 16-bit words that follow (little-endian)
//	[2-3]   opcode         0xf6 read, 0xf5 ack, 0xf9 write
//	[4..]   words          Register addresses and values, little-endian
//	[N-2:N] checksum       16-bit sum of every preceding word
const (
	opcodeRead  = 0xf6
	opcodeAck   = 0xf5
	opcodeWrite = 0xf9
)

// frameBuilder assembles a request frame from little-endian 16-bit words.
// The count and checksum words are derived, never written by hand.
type frameBuilder struct {
	opcode uint16
	words  []uint16
}

func newFrameBuilder(opcode uint16) *frameBuilder {
	return &frameBuilder{opcode: opcode}
}

// word appends a raw 16-bit value
func (b *frameBuilder) word(v uint16) *frameBuilder {
	b.words = append(b.words, v)
	return b
}

// set appends a register address followed by its value
func (b *frameBuilder) set(register, value uint16) *frameBuilder {
	return b.word(register).word(value)
}

func (b *frameBuilder) frame() RequestFrame {
	all := make([]uint16, 0, len(b.words)+3)
	all = append(all, uint16(len(b.words)+2), b.opcode)
	all = append(all, b.words...)
	all = append(all, checksum(all))

	out := make([]byte, 0, 2*len(all))
	for _, w := range all {
		out = binary.LittleEndian.AppendUint16(out, w)
	}
	return RequestFrame(out)
}

// checksum is the wrapping 16-bit sum of the words
func checksum(words []uint16) uint16 {
	var sum uint16
	for _, w := range words {
		sum += w
	}
	return sum
}

// cloneFrame copies a fixed frame so callers can't mutate the package constants
func cloneFrame(src []byte) RequestFrame {
	out := make(RequestFrame, len(src))
	copy(out, src)
	return out
}
