package kwl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/muurk/easycontrols/internal/logging"
	"github.com/muurk/easycontrols/internal/protocol"
	"github.com/muurk/easycontrols/internal/session"
	"github.com/muurk/easycontrols/internal/transport"
	"go.uber.org/zap"
)

// Client talks to one KWL unit. All exchanges and session state changes are
// serialized by a single mutex, so a Client may be shared between goroutines.
type Client struct {
	host      string
	exchanger transport.Exchanger
	timeout   time.Duration
	policy    session.Policy
	now       func() time.Time

	mu      sync.Mutex
	state   *session.State
	lastErr error
}

// Option configures a Client
type Option func(*Client)

// WithExchanger replaces the WebSocket transport
func WithExchanger(e transport.Exchanger) Option {
	return func(c *Client) {
		c.exchanger = e
	}
}

// WithTimeout sets the per-exchange timeout of the default WebSocket transport.
// It has no effect together with WithExchanger.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithPolicy replaces the read throttling and availability policy
func WithPolicy(p session.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client for the unit at host. No connection is made until the
// first Refresh or command.
func New(host string, opts ...Option) *Client {
	c := &Client{
		host:   host,
		policy: session.DefaultPolicy(),
		now:    time.Now,
		state:  session.NewState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.exchanger == nil {
		var wsOpts []transport.Option
		if c.timeout > 0 {
			wsOpts = append(wsOpts, transport.WithTimeout(c.timeout))
		}
		c.exchanger = transport.NewWebSocket(host, wsOpts...)
	}
	return c
}

// Host returns the unit address
func (c *Client) Host() string {
	return c.host
}

// State returns a copy of the last snapshot, whether one exists, and whether
// the unit is available.
func (c *Client) State() (snap protocol.Snapshot, ok bool, available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Snapshot != nil {
		snap, ok = *c.state.Snapshot, true
	}
	return snap, ok, c.state.Available
}

// Available reports whether the unit is considered reachable
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Available
}

// LastUpdate returns the time of the last successful read
func (c *Client) LastUpdate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LastUpdate
}

// LastError returns the error of the most recent failed read, or nil after a success
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Refresh reads the unit if the snapshot is stale or dirty.
//
// Transport failures are absorbed: they are logged, recorded in LastError and
// fed to the availability rule, and Refresh returns nil. A frame that cannot be
// decoded is reported to the caller as a *protocol.DecodeError. Either way the
// previous snapshot is kept.
func (c *Client) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.policy.ShouldRead(now, c.state) {
		logging.Debug("Serving cached snapshot",
			zap.String("host", c.host),
			zap.Duration("age", c.state.Age(now)),
		)
		return nil
	}

	snap, err := c.readLocked(ctx)
	now = c.now()
	if err != nil {
		wasAvailable := c.state.Available
		c.lastErr = err
		c.policy.RecordFailure(now, c.state)

		logging.Warn("Status read failed",
			zap.String("host", c.host),
			zap.Bool("available", c.state.Available),
			zap.Error(err),
		)
		if wasAvailable && !c.state.Available {
			logging.Warn("Unit is offline", zap.String("host", c.host))
		}

		if protocol.IsDecodeError(err) {
			return err
		}
		return nil
	}

	c.lastErr = nil
	c.policy.RecordSuccess(now, c.state, snap)
	logging.Debug("Status read", zap.String("host", c.host), zap.Stringer("snapshot", snap))
	return nil
}

// TestConnection performs one unconditional read without touching the session
func (c *Client) TestConnection(ctx context.Context) (*protocol.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readLocked(ctx)
}

// SwitchMode puts the unit into mode. Switching to Intensive runs for the
// duration configured on the unit (one minute if it has not been read yet).
func (c *Client) SwitchMode(ctx context.Context, mode protocol.OperatingMode) error {
	return c.command(ctx, "switch mode", func(s *session.State) (protocol.RequestFrame, error) {
		minutes := protocol.MinIntensiveDuration
		if s.Snapshot != nil {
			minutes = protocol.ClampIntensiveDuration(float64(s.Snapshot.IntensiveDuration))
		}
		return protocol.BuildSwitchModeFrame(mode, minutes)
	}, zap.Stringer("mode", mode))
}

// StartIntensive switches to Intensive for the given minutes, clamped to [1, 1440]
func (c *Client) StartIntensive(ctx context.Context, minutes float64) error {
	d := protocol.ClampIntensiveDuration(minutes)
	return c.command(ctx, "start intensive", func(*session.State) (protocol.RequestFrame, error) {
		return protocol.BuildSwitchModeFrame(protocol.ModeIntensive, d)
	}, zap.Int("minutes", d))
}

// SetFanSpeed sets the fan speed of mode. percent is clamped to [1, 100].
func (c *Client) SetFanSpeed(ctx context.Context, percent float64, mode protocol.OperatingMode) error {
	speed := protocol.ClampFanSpeed(percent)
	return c.command(ctx, "set fan speed", func(*session.State) (protocol.RequestFrame, error) {
		return protocol.BuildSetFanSpeedFrame(speed, mode)
	}, zap.Stringer("mode", mode), zap.Int("percent", speed))
}

// SetAtHomeFanSpeed sets the At Home fan speed
func (c *Client) SetAtHomeFanSpeed(ctx context.Context, percent float64) error {
	return c.SetFanSpeed(ctx, percent, protocol.ModeAtHome)
}

// SetAwayFanSpeed sets the Away fan speed
func (c *Client) SetAwayFanSpeed(ctx context.Context, percent float64) error {
	return c.SetFanSpeed(ctx, percent, protocol.ModeAway)
}

// SetIntensiveFanSpeed sets the Intensive fan speed
func (c *Client) SetIntensiveFanSpeed(ctx context.Context, percent float64) error {
	return c.SetFanSpeed(ctx, percent, protocol.ModeIntensive)
}

// SetIntensiveDuration configures how long Intensive runs, clamped to [1, 1440] minutes
func (c *Client) SetIntensiveDuration(ctx context.Context, minutes float64) error {
	d := protocol.ClampIntensiveDuration(minutes)
	return c.command(ctx, "set intensive duration", func(*session.State) (protocol.RequestFrame, error) {
		return protocol.BuildIntensiveDurationFrame(d)
	}, zap.Int("minutes", d))
}

// SetPower switches the unit on or off
func (c *Client) SetPower(ctx context.Context, on bool) error {
	return c.command(ctx, "set power", func(*session.State) (protocol.RequestFrame, error) {
		return protocol.BuildPowerFrame(on), nil
	}, zap.Bool("on", on))
}

// command builds a frame under the lock, sends it and checks the acknowledgement.
// Build errors are returned before anything is sent. After an exchange the
// session is marked dirty whatever the outcome.
func (c *Client) command(ctx context.Context, name string, build func(*session.State) (protocol.RequestFrame, error), fields ...zap.Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frame, err := build(c.state)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	resp, err := c.exchanger.Exchange(ctx, frame)
	c.policy.MarkDirty(c.state)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	ack := protocol.ResponseFrame(resp)
	if !protocol.VerifyAck(ack) {
		detail := "valid frame"
		if err := protocol.ValidateChecksum(resp); err != nil {
			detail = err.Error()
		}
		logging.Warn("Unexpected acknowledgement",
			append(fields,
				zap.String("host", c.host),
				zap.String("command", name),
				zap.String("sent", frame.Hex()),
				zap.String("received", ack.Hex()),
				zap.String("detail", detail),
			)...,
		)
		return nil
	}

	logging.Info("Command accepted", append(fields, zap.String("host", c.host), zap.String("command", name))...)
	return nil
}

func (c *Client) readLocked(ctx context.Context) (*protocol.Snapshot, error) {
	resp, err := c.exchanger.Exchange(ctx, protocol.BuildReadRequest())
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	snap, err := protocol.DecodeResponse(protocol.ResponseFrame(resp))
	if err != nil {
		logging.LogRawBytes("Undecodable status dump", resp)
		return nil, fmt.Errorf("read status: %w", err)
	}
	return snap, nil
}
