package bridge

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/muurk/easycontrols/internal/logging"
	"github.com/muurk/easycontrols/internal/protocol"
	"go.uber.org/zap"
)

const (
	payloadOnline  = "online"
	payloadOffline = "offline"

	// DefaultCommandTimeout bounds a command received over MQTT including the follow-up read
	DefaultCommandTimeout = 30 * time.Second
)

// Device is the part of kwl.Client the bridge drives
type Device interface {
	Host() string
	Refresh(ctx context.Context) error
	State() (snap protocol.Snapshot, ok bool, available bool)
	SwitchMode(ctx context.Context, mode protocol.OperatingMode) error
	SetFanSpeed(ctx context.Context, percent float64, mode protocol.OperatingMode) error
	SetIntensiveDuration(ctx context.Context, minutes float64) error
	SetPower(ctx context.Context, on bool) error
}

// Publisher is the part of mqtt.Client the bridge uses
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// Options configures topics and naming of a Bridge
type Options struct {
	DiscoveryPrefix string
	TopicPrefix     string
	// Name is the Home Assistant device name; the model name when empty
	Name           string
	CommandTimeout time.Duration
}

// Bridge publishes one KWL unit to Home Assistant via MQTT discovery and
// applies commands received on its command topics.
//
// Nothing is published until the first successful read: every topic contains
// the serial number of the unit.
type Bridge struct {
	device Device
	client Publisher
	opts   Options

	mu         sync.Mutex
	serial     string
	registered map[string]bool
	subscribed bool
	published  map[string]string
}

// New creates a bridge for device publishing through client
func New(device Device, client Publisher, opts Options) *Bridge {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	return &Bridge{
		device:     device,
		client:     client,
		opts:       opts,
		registered: make(map[string]bool),
		published:  make(map[string]string),
	}
}

// StatusTopic is the bridge-wide availability topic carrying the MQTT last will
func StatusTopic(prefix string) string {
	return prefix + "/bridge/status"
}

func (b *Bridge) baseTopic() string {
	return b.opts.TopicPrefix + "/" + b.serial
}

func (b *Bridge) availabilityTopic() string {
	return b.baseTopic() + "/availability"
}

func (b *Bridge) stateTopic(e *entity) string {
	return b.baseTopic() + "/" + e.key + "/state"
}

func (b *Bridge) commandTopic(e *entity) string {
	return b.baseTopic() + "/" + e.key + "/set"
}

func (b *Bridge) discoveryTopic(e *entity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", b.opts.DiscoveryPrefix, e.component, b.serial, e.key)
}

// Poll refreshes the device and publishes discovery, availability and state.
// Registration and subscription happen on the first poll that yields a snapshot.
func (b *Bridge) Poll(ctx context.Context) error {
	if err := b.device.Refresh(ctx); err != nil {
		logging.Warn("Failed to refresh KWL unit",
			zap.String("host", b.device.Host()),
			zap.Error(err),
		)
	}

	snap, ok, available := b.device.State()
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.serial = strconv.FormatUint(uint64(snap.SerialNumber), 10)

	if err := b.registerLocked(&snap); err != nil {
		return err
	}
	if err := b.subscribeLocked(); err != nil {
		return err
	}
	return b.publishStateLocked(&snap, available)
}

// Run polls every interval until ctx is done, then marks the unit offline
func (b *Bridge) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := b.Poll(ctx); err != nil {
			logging.Error("Failed to publish to MQTT", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			b.markOffline()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Resubscribe subscribes the command topics again, used after a reconnect
func (b *Bridge) Resubscribe() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribed = false
	if b.serial == "" {
		return nil
	}
	return b.subscribeLocked()
}

func (b *Bridge) markOffline() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.serial == "" {
		return
	}
	if err := b.publishLocked(b.availabilityTopic(), payloadOffline); err != nil {
		logging.Warn("Failed to publish offline state", zap.Error(err))
	}
}

func (b *Bridge) registerLocked(snap *protocol.Snapshot) error {
	for _, e := range entities {
		if b.registered[e.key] || !e.supported(snap) {
			continue
		}
		payload, err := b.discoveryPayload(e, snap)
		if err != nil {
			return fmt.Errorf("encode discovery config for %s: %w", e.key, err)
		}
		if err := b.publish(b.discoveryTopic(e), payload); err != nil {
			return fmt.Errorf("publish discovery config for %s: %w", e.key, err)
		}
		b.registered[e.key] = true
		logging.Debug("Registered Home Assistant entity",
			zap.String("component", e.component),
			zap.String("unique_id", uniqueID(b.serial, e.key)),
		)
	}
	return nil
}

func (b *Bridge) subscribeLocked() error {
	if b.subscribed {
		return nil
	}
	for _, e := range entities {
		if e.command == nil {
			continue
		}
		topic := b.commandTopic(e)
		t := b.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			go b.handleCommand(e, string(msg.Payload()))
		})
		if t.Wait() && t.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, t.Error())
		}
	}
	b.subscribed = true
	return nil
}

func (b *Bridge) publishStateLocked(snap *protocol.Snapshot, available bool) error {
	availability := payloadOffline
	if available {
		availability = payloadOnline
	}
	if err := b.publishLocked(b.availabilityTopic(), availability); err != nil {
		return err
	}

	for _, e := range entities {
		if !b.registered[e.key] {
			continue
		}
		if e.available != nil {
			supported := e.supported(snap)
			entityAvailability := payloadOffline
			if supported {
				entityAvailability = payloadOnline
			}
			if err := b.publishLocked(b.entityAvailabilityTopic(e), entityAvailability); err != nil {
				return err
			}
			if !supported {
				// Keep the last real reading rather than the sentinel
				continue
			}
		}
		if err := b.publishLocked(b.stateTopic(e), e.state(snap)); err != nil {
			return err
		}
	}
	return nil
}

// publishLocked publishes a retained payload unless it equals the last one sent to topic
func (b *Bridge) publishLocked(topic, payload string) error {
	if last, ok := b.published[topic]; ok && last == payload {
		return nil
	}
	if err := b.publish(topic, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	b.published[topic] = payload
	return nil
}

func (b *Bridge) publish(topic string, payload interface{}) error {
	t := b.client.Publish(topic, 1, true, payload)
	if t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func (b *Bridge) handleCommand(e *entity, payload string) {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.CommandTimeout)
	defer cancel()

	logging.Info("Command received",
		zap.String("entity", e.key),
		zap.String("payload", payload),
		zap.String("host", b.device.Host()),
	)

	if err := e.command(ctx, b.device, payload); err != nil {
		logging.Warn("Command failed",
			zap.String("entity", e.key),
			zap.String("payload", payload),
			zap.Error(err),
		)
		return
	}

	// Commands mark the snapshot dirty, so this reads the new state
	if err := b.Poll(ctx); err != nil {
		logging.Error("Failed to publish state after command", zap.Error(err))
	}
}
