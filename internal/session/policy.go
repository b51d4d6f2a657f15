// Package session decides when a KWL unit is read and when it counts as offline.
//
// The unit rejects frequent polling and its web interface holds a single
// connection, so reads are throttled: a cached snapshot is served until it is
// older than MinReadInterval or a command has made it dirty. A unit that has
// not answered a read for OfflineThreshold is reported unavailable.
package session

import (
	"time"

	"github.com/muurk/easycontrols/internal/protocol"
)

const (
	// MinReadInterval is the minimum age of a snapshot before it is re-read
	MinReadInterval = 60 * time.Second

	// OfflineThreshold is how long reads may fail before the unit is unavailable
	OfflineThreshold = 10 * time.Minute
)

// State is the per-client session state. It is not safe for concurrent use;
// the owning client serializes access.
type State struct {
	// Snapshot is the last successfully decoded status, nil until the first read
	Snapshot *protocol.Snapshot

	// LastUpdate is the time of the last successful read; zero means never
	LastUpdate time.Time

	// Dirty is set after a command so the next refresh reads regardless of age
	Dirty bool

	// Available reports whether the unit is considered reachable
	Available bool
}

// NewState returns the initial state: no snapshot, available until proven otherwise
func NewState() *State {
	return &State{Available: true}
}

// Policy applies the read throttling and availability rules
type Policy struct {
	MinReadInterval  time.Duration
	OfflineThreshold time.Duration
}

// DefaultPolicy returns the policy with the standard intervals
func DefaultPolicy() Policy {
	return Policy{
		MinReadInterval:  MinReadInterval,
		OfflineThreshold: OfflineThreshold,
	}
}

// ShouldRead reports whether a refresh at now must contact the unit
func (p Policy) ShouldRead(now time.Time, s *State) bool {
	if s.LastUpdate.IsZero() || s.Dirty {
		return true
	}
	return now.Sub(s.LastUpdate) > p.MinReadInterval
}

// RecordSuccess installs a freshly decoded snapshot
func (p Policy) RecordSuccess(now time.Time, s *State, snap *protocol.Snapshot) {
	s.Snapshot = snap
	s.LastUpdate = now
	s.Available = true
	s.Dirty = false
}

// RecordFailure applies the availability rule after a failed read.
// The snapshot and LastUpdate are left untouched.
func (p Policy) RecordFailure(now time.Time, s *State) {
	if s.LastUpdate.IsZero() || now.Sub(s.LastUpdate) > p.OfflineThreshold {
		s.Available = false
	}
}

// MarkDirty forces the next refresh to read
func (p Policy) MarkDirty(s *State) {
	s.Dirty = true
}

// Age returns how old the snapshot is at now, or zero if there is none
func (s *State) Age(now time.Time) time.Duration {
	if s.LastUpdate.IsZero() {
		return 0
	}
	return now.Sub(s.LastUpdate)
}
