package session

import (
	"testing"
	"time"

	"github.com/muurk/easycontrols/internal/protocol"
)

var t0 = time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)

func TestNewState(t *testing.T) {
	s := NewState()
	if s.Snapshot != nil || !s.LastUpdate.IsZero() || s.Dirty {
		t.Errorf("NewState() = %+v", s)
	}
	if !s.Available {
		t.Error("new state should be available")
	}
}

func TestShouldRead(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name  string
		state State
		now   time.Time
		want  bool
	}{
		{name: "never read", state: State{}, now: t0, want: true},
		{name: "fresh", state: State{LastUpdate: t0}, now: t0.Add(30 * time.Second), want: false},
		{name: "exactly at interval", state: State{LastUpdate: t0}, now: t0.Add(MinReadInterval), want: false},
		{name: "stale", state: State{LastUpdate: t0}, now: t0.Add(MinReadInterval + time.Second), want: true},
		{name: "fresh but dirty", state: State{LastUpdate: t0, Dirty: true}, now: t0.Add(time.Second), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.state
			if got := p.ShouldRead(tt.now, &s); got != tt.want {
				t.Errorf("ShouldRead() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordSuccess(t *testing.T) {
	p := DefaultPolicy()
	s := &State{Dirty: true, Available: false}
	snap := &protocol.Snapshot{Model: "KWL 300"}

	p.RecordSuccess(t0, s, snap)

	if s.Snapshot != snap || !s.LastUpdate.Equal(t0) || s.Dirty || !s.Available {
		t.Errorf("state after success = %+v", s)
	}
	if p.ShouldRead(t0.Add(time.Second), s) {
		t.Error("ShouldRead() right after success should be false")
	}
}

func TestRecordFailure(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name          string
		lastUpdate    time.Time
		failAt        time.Time
		wantAvailable bool
	}{
		{name: "first read fails", failAt: t0, wantAvailable: false},
		{name: "fails five minutes after success", lastUpdate: t0, failAt: t0.Add(5 * time.Minute), wantAvailable: true},
		{name: "fails at the threshold", lastUpdate: t0, failAt: t0.Add(OfflineThreshold), wantAvailable: true},
		{name: "fails eleven minutes after success", lastUpdate: t0, failAt: t0.Add(11 * time.Minute), wantAvailable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &protocol.Snapshot{}
			s := &State{Snapshot: snap, LastUpdate: tt.lastUpdate, Available: true}

			p.RecordFailure(tt.failAt, s)

			if s.Available != tt.wantAvailable {
				t.Errorf("Available = %v, want %v", s.Available, tt.wantAvailable)
			}
			if s.Snapshot != snap || !s.LastUpdate.Equal(tt.lastUpdate) {
				t.Error("failure must not touch the snapshot or LastUpdate")
			}
		})
	}
}

func TestRecordFailure_StaysUnavailableUntilSuccess(t *testing.T) {
	p := DefaultPolicy()
	s := NewState()

	p.RecordFailure(t0, s)
	p.RecordFailure(t0.Add(time.Minute), s)
	if s.Available {
		t.Fatal("unit should be unavailable after failures without any success")
	}

	p.RecordSuccess(t0.Add(2*time.Minute), s, &protocol.Snapshot{})
	if !s.Available {
		t.Error("success should restore availability")
	}
}

func TestMarkDirty(t *testing.T) {
	p := DefaultPolicy()
	s := &State{LastUpdate: t0, Available: true}

	p.MarkDirty(s)
	if !s.Dirty {
		t.Fatal("Dirty = false after MarkDirty")
	}
	if !p.ShouldRead(t0.Add(time.Second), s) {
		t.Error("dirty state should be read")
	}
}

func TestAge(t *testing.T) {
	s := NewState()
	if s.Age(t0) != 0 {
		t.Error("Age() without update should be zero")
	}
	s.LastUpdate = t0
	if got := s.Age(t0.Add(90 * time.Second)); got != 90*time.Second {
		t.Errorf("Age() = %v", got)
	}
}
