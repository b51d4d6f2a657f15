package protocoltest

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/muurk/easycontrols/internal/protocol"
)

// Register addresses understood by Unit
const (
	registerCycleState        = 0x1201
	registerPower             = 0x1202
	registerBoostTimer        = 0x1204
	registerFireplaceTimer    = 0x1205
	registerAtHomeFan         = 0x501b
	registerAwayFan           = 0x5015
	registerIntensiveFan      = 0x5021
	registerIntensiveDuration = 0x5040
)

var nak = []byte{0x02, 0x00, 0xf5, 0x01, 0xf8, 0x00}

// Unit is an in-memory KWL unit implementing transport.Exchanger.
// It answers read requests with its status dump and applies write frames to it.
type Unit struct {
	mu sync.Mutex

	status   *StatusFrame
	requests [][]byte

	err   error
	ack   []byte
	delay time.Duration

	active    int
	maxActive int
}

// NewUnit returns a unit serving NewStatusFrame()
func NewUnit() *Unit {
	return &Unit{status: NewStatusFrame()}
}

// WithStatus replaces the status dump
func (u *Unit) WithStatus(f *StatusFrame) *Unit {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = f
	return u
}

// Fail makes every exchange return err; nil restores normal operation
func (u *Unit) Fail(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.err = err
}

// Ack replaces the acknowledgement sent for writes
func (u *Unit) Ack(frame []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.ack = frame
}

// Delay makes every exchange take at least d
func (u *Unit) Delay(d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.delay = d
}

// Status returns the current status dump
func (u *Unit) Status() *StatusFrame {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Requests returns a copy of every frame received
func (u *Unit) Requests() [][]byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([][]byte, len(u.requests))
	copy(out, u.requests)
	return out
}

// RequestCount returns how many frames were received
func (u *Unit) RequestCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.requests)
}

// ReadCount returns how many read requests were received
func (u *Unit) ReadCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, r := range u.requests {
		if bytes.Equal(r, protocol.BuildReadRequest()) {
			n++
		}
	}
	return n
}

// MaxConcurrent returns the highest number of overlapping exchanges seen
func (u *Unit) MaxConcurrent() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.maxActive
}

// Exchange implements transport.Exchanger
func (u *Unit) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	u.mu.Lock()
	u.requests = append(u.requests, append([]byte(nil), frame...))
	u.active++
	if u.active > u.maxActive {
		u.maxActive = u.active
	}
	delay := u.delay
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.active--
		u.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.err != nil {
		return nil, u.err
	}
	if bytes.Equal(frame, protocol.BuildReadRequest()) {
		return u.status.Bytes(), nil
	}
	if err := protocol.ValidateChecksum(frame); err != nil {
		return append([]byte(nil), nak...), nil
	}

	u.apply(frame)
	if u.ack != nil {
		return append([]byte(nil), u.ack...), nil
	}
	return protocol.AckFrame(), nil
}

// apply writes register/value pairs of a write frame into the status dump
func (u *Unit) apply(frame []byte) {
	words := len(frame) / 2
	word := func(i int) uint16 { return binary.LittleEndian.Uint16(frame[2*i:]) }

	// count, opcode, pairs..., checksum
	for i := 2; i+2 < words; i += 2 {
		register, value := word(i), word(i+1)
		switch register {
		case registerCycleState:
			u.status.Set(protocol.OffsetCycleState, lowByte(value))
		case registerPower:
			u.status.Set(protocol.OffsetPowerState, lowByte(value))
		case registerBoostTimer:
			u.status.Set(protocol.OffsetBoostTimer, lowByte(value))
		case registerFireplaceTimer:
			u.status.Set(protocol.OffsetFireplaceTimer, lowByte(value))
		case registerAtHomeFan:
			u.status.Set(protocol.OffsetAtHomeFan, lowByte(value))
		case registerAwayFan:
			u.status.Set(protocol.OffsetAwayFan, lowByte(value))
		case registerIntensiveFan:
			u.status.Set(protocol.OffsetIntensiveFan, lowByte(value))
		case registerIntensiveDuration:
			u.status.Set(protocol.OffsetIntensiveTime, lowByte(value))
		}
	}
}

// lowByte saturates so that a running timer never reads back as zero
func lowByte(v uint16) byte {
	if v > 0xff {
		return 0xff
	}
	return byte(v)
}
