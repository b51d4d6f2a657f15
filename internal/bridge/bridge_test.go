package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/muurk/easycontrols/internal/kwl"
	"github.com/muurk/easycontrols/internal/protocol"
	"github.com/muurk/easycontrols/internal/protocol/protocoltest"
)

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 1 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeBroker records publishes and subscriptions
type fakeBroker struct {
	mu         sync.Mutex
	publishes  int
	subscribes int
	retained   map[string]string
	handlers   map[string]mqtt.MessageHandler
	publishErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		retained: make(map[string]string),
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeBroker) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return &fakeToken{err: f.publishErr}
	}
	f.publishes++
	switch p := payload.(type) {
	case string:
		f.retained[topic] = p
	case []byte:
		f.retained[topic] = string(p)
	default:
		f.retained[topic] = fmt.Sprint(p)
	}
	return &fakeToken{}
}

func (f *fakeBroker) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	f.handlers[topic] = callback
	return &fakeToken{}
}

func (f *fakeBroker) get(topic string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.retained[topic]
	return v, ok
}

func (f *fakeBroker) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.publishes
}

func (f *fakeBroker) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s", topic)
	}
	h(nil, &fakeMessage{topic: topic, payload: []byte(payload)})
}

func (f *fakeBroker) waitFor(t *testing.T, topic, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := f.get(topic); got == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	got, _ := f.get(topic)
	t.Fatalf("%s = %q, want %q", topic, got, want)
}

var testOptions = Options{
	DiscoveryPrefix: "homeassistant",
	TopicPrefix:     "easycontrols",
	Name:            "Ventilation",
}

func newTestBridge(status *protocoltest.StatusFrame) (*Bridge, *fakeBroker, *protocoltest.Unit) {
	unit := protocoltest.NewUnit().WithStatus(status)
	device := kwl.New("kwl.local", kwl.WithExchanger(unit))
	broker := newFakeBroker()
	return New(device, broker, testOptions), broker, unit
}

func TestPoll_RegistersEntities(t *testing.T) {
	b, broker, _ := newTestBridge(protocoltest.NewStatusFrame())

	if err := b.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	raw, ok := broker.get("homeassistant/sensor/12345678/outside_temperature/config")
	if !ok {
		t.Fatal("outside temperature discovery config not published")
	}
	var cfg discoveryConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("decode discovery config: %v", err)
	}
	if cfg.UniqueID != "12345678_outside_temperature" {
		t.Errorf("unique_id = %s", cfg.UniqueID)
	}
	if cfg.StateTopic != "easycontrols/12345678/outside_temperature/state" {
		t.Errorf("state_topic = %s", cfg.StateTopic)
	}
	if cfg.CommandTopic != "" {
		t.Errorf("sensor has command_topic %s", cfg.CommandTopic)
	}
	if cfg.DeviceClass != "temperature" || cfg.UnitOfMeasurement != "°C" {
		t.Errorf("device_class = %s, unit = %s", cfg.DeviceClass, cfg.UnitOfMeasurement)
	}
	if len(cfg.Availability) != 2 || cfg.AvailabilityMode != "all" {
		t.Errorf("availability = %+v, mode %s", cfg.Availability, cfg.AvailabilityMode)
	}
	if cfg.Device.Name != "Ventilation" || cfg.Device.Manufacturer != "Helios" || cfg.Device.Identifiers[0] != "easycontrols_12345678" {
		t.Errorf("device = %+v", cfg.Device)
	}

	raw, _ = broker.get("homeassistant/select/12345678/mode/config")
	var sel discoveryConfig
	if err := json.Unmarshal([]byte(raw), &sel); err != nil {
		t.Fatalf("decode select config: %v", err)
	}
	if len(sel.Options) != 4 || sel.Options[0] != "At Home" {
		t.Errorf("options = %v", sel.Options)
	}
	if sel.CommandTopic != "easycontrols/12345678/mode/set" {
		t.Errorf("command_topic = %s", sel.CommandTopic)
	}

	raw, _ = broker.get("homeassistant/number/12345678/intensive_duration/config")
	var num discoveryConfig
	if err := json.Unmarshal([]byte(raw), &num); err != nil {
		t.Fatalf("decode number config: %v", err)
	}
	if num.Min == nil || *num.Min != 1 || num.Max == nil || *num.Max != 1440 {
		t.Errorf("range = %v..%v", num.Min, num.Max)
	}

	if _, ok := broker.get("homeassistant/sensor/12345678/co2/config"); ok {
		t.Error("co2 registered for a unit without sensor")
	}
}

func TestPoll_PublishesState(t *testing.T) {
	b, broker, _ := newTestBridge(protocoltest.NewStatusFrame())

	if err := b.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	want := map[string]string{
		"easycontrols/12345678/availability":              "online",
		"easycontrols/12345678/outside_temperature/state": "8.5",
		"easycontrols/12345678/indoor_temperature/state":  "21.4",
		"easycontrols/12345678/relative_humidity/state":   "45",
		"easycontrols/12345678/current_fan_speed/state":   "35",
		"easycontrols/12345678/away_fan_speed/state":      "20",
		"easycontrols/12345678/intensive_duration/state":  "30",
		"easycontrols/12345678/mode/state":                "At Home",
		"easycontrols/12345678/power/state":               "ON",
		"easycontrols/12345678/filter_changed/state":      "2024-03-01",
		"easycontrols/12345678/filter_due/state":          "2024-05-30",
	}
	for topic, v := range want {
		if got, _ := broker.get(topic); got != v {
			t.Errorf("%s = %q, want %q", topic, got, v)
		}
	}
}

func TestPoll_CO2Sensor(t *testing.T) {
	b, broker, _ := newTestBridge(protocoltest.NewStatusFrame().WithCO2(612))

	if err := b.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if _, ok := broker.get("homeassistant/sensor/12345678/co2/config"); !ok {
		t.Error("co2 not registered")
	}
	if got, _ := broker.get("easycontrols/12345678/co2/state"); got != "612" {
		t.Errorf("co2 state = %q", got)
	}
}

func TestPoll_CO2AvailabilityFollowsSensor(t *testing.T) {
	b, broker, unit := newTestBridge(protocoltest.NewStatusFrame().WithCO2(612))
	ctx := context.Background()

	if err := b.Poll(ctx); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}

	raw, _ := broker.get("homeassistant/sensor/12345678/co2/config")
	var cfg discoveryConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		t.Fatalf("decode co2 config: %v", err)
	}
	if len(cfg.Availability) != 3 || cfg.Availability[2].Topic != "easycontrols/12345678/co2/availability" {
		t.Errorf("co2 availability = %+v", cfg.Availability)
	}
	if got, _ := broker.get("easycontrols/12345678/co2/availability"); got != "online" {
		t.Errorf("co2 availability = %q, want online", got)
	}

	steps := []struct {
		name             string
		ppm              uint16
		wantState        string
		wantAvailability string
	}{
		{name: "sensor stops reporting", ppm: protocol.CO2Unavailable, wantState: "612", wantAvailability: "offline"},
		{name: "sensor reports again", ppm: 700, wantState: "700", wantAvailability: "online"},
	}
	for _, step := range steps {
		unit.Status().WithCO2(step.ppm)
		// A command marks the snapshot dirty so the next poll reads
		if err := b.device.SetPower(ctx, true); err != nil {
			t.Fatalf("%s: SetPower() error = %v", step.name, err)
		}
		if err := b.Poll(ctx); err != nil {
			t.Fatalf("%s: Poll() error = %v", step.name, err)
		}
		if got, _ := broker.get("easycontrols/12345678/co2/state"); got != step.wantState {
			t.Errorf("%s: co2 state = %q, want %q", step.name, got, step.wantState)
		}
		if got, _ := broker.get("easycontrols/12345678/co2/availability"); got != step.wantAvailability {
			t.Errorf("%s: co2 availability = %q, want %q", step.name, got, step.wantAvailability)
		}
	}
}

func TestPoll_NothingBeforeFirstRead(t *testing.T) {
	b, broker, unit := newTestBridge(protocoltest.NewStatusFrame())
	unit.Fail(errors.New("connection refused"))

	if err := b.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if n := broker.publishCount(); n != 0 {
		t.Errorf("published %d messages without a snapshot", n)
	}
}

func TestPoll_OnlyChangesArePublished(t *testing.T) {
	b, broker, _ := newTestBridge(protocoltest.NewStatusFrame())
	ctx := context.Background()

	if err := b.Poll(ctx); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	first := broker.publishCount()

	if err := b.Poll(ctx); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if n := broker.publishCount(); n != first {
		t.Errorf("second poll published %d messages", n-first)
	}
}

func TestPoll_PublishError(t *testing.T) {
	b, broker, _ := newTestBridge(protocoltest.NewStatusFrame())
	broker.publishErr = errors.New("not connected")

	if err := b.Poll(context.Background()); err == nil {
		t.Fatal("Poll() should fail when publishing fails")
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		key, payload string
		check        func(*protocol.Snapshot) bool
	}{
		{key: "mode", payload: "Away", check: func(s *protocol.Snapshot) bool { return s.Mode == protocol.ModeAway }},
		{key: "mode", payload: "Individual", check: func(s *protocol.Snapshot) bool { return s.Mode == protocol.ModeIndividual }},
		{key: "at_home_fan_speed", payload: "50", check: func(s *protocol.Snapshot) bool { return s.AtHomeFanSpeed == 50 }},
		{key: "away_fan_speed", payload: "12.6", check: func(s *protocol.Snapshot) bool { return s.AwayFanSpeed == 13 }},
		{key: "intensive_fan_speed", payload: "100", check: func(s *protocol.Snapshot) bool { return s.IntensiveFanSpeed == 100 }},
		{key: "intensive_duration", payload: "45", check: func(s *protocol.Snapshot) bool { return s.IntensiveDuration == 45 }},
		{key: "power", payload: "OFF", check: func(s *protocol.Snapshot) bool { return !s.IsOn }},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.payload, func(t *testing.T) {
			b, broker, _ := newTestBridge(protocoltest.NewStatusFrame())
			if err := b.Poll(context.Background()); err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			e := lookupEntity(t, tt.key)

			broker.deliver(t, b.commandTopic(e), tt.payload)

			deadline := time.Now().Add(2 * time.Second)
			for {
				snap, _, _ := b.device.State()
				if tt.check(&snap) {
					break
				}
				if time.Now().After(deadline) {
					t.Fatalf("snapshot not updated: %s", snap.String())
				}
				time.Sleep(5 * time.Millisecond)
			}

			snap, _, _ := b.device.State()
			broker.waitFor(t, b.stateTopic(e), e.state(&snap))
		})
	}
}

func TestCommand_InvalidPayloadSendsNothing(t *testing.T) {
	payloads := map[string]string{
		"mode":               "turbo",
		"at_home_fan_speed":  "fast",
		"intensive_duration": "",
		"power":              "maybe",
	}

	for key, payload := range payloads {
		t.Run(key, func(t *testing.T) {
			b, _, unit := newTestBridge(protocoltest.NewStatusFrame())
			if err := b.Poll(context.Background()); err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			before := unit.RequestCount()

			b.handleCommand(lookupEntity(t, key), payload)

			if n := unit.RequestCount(); n != before {
				t.Errorf("%d frames sent for invalid payload %q", n-before, payload)
			}
		})
	}
}

func TestResubscribe(t *testing.T) {
	b, broker, _ := newTestBridge(protocoltest.NewStatusFrame())

	if err := b.Resubscribe(); err != nil {
		t.Fatalf("Resubscribe() before first poll error = %v", err)
	}
	if broker.subscribes != 0 {
		t.Errorf("subscribed %d topics before serial was known", broker.subscribes)
	}

	if err := b.Poll(context.Background()); err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	first := broker.subscribes
	if first != 6 {
		t.Errorf("subscribed %d command topics, want 6", first)
	}

	if err := b.Resubscribe(); err != nil {
		t.Fatalf("Resubscribe() error = %v", err)
	}
	if broker.subscribes != 2*first {
		t.Errorf("subscribes after reconnect = %d, want %d", broker.subscribes, 2*first)
	}
}

func TestRun_MarksOfflineOnShutdown(t *testing.T) {
	b, broker, _ := newTestBridge(protocoltest.NewStatusFrame())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, time.Hour) }()

	broker.waitFor(t, "easycontrols/12345678/availability", "online")
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return")
	}
	if got, _ := broker.get("easycontrols/12345678/availability"); got != "offline" {
		t.Errorf("availability = %q, want offline", got)
	}
}

func TestEntityKeysUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, e := range entities {
		if seen[e.key] {
			t.Errorf("duplicate entity key %s", e.key)
		}
		seen[e.key] = true
		if e.state == nil {
			t.Errorf("%s has no state function", e.key)
		}
		if e.component != componentSensor && e.command == nil {
			t.Errorf("%s %s has no command", e.component, e.key)
		}
	}
}

func lookupEntity(t *testing.T, key string) *entity {
	t.Helper()
	for _, e := range entities {
		if e.key == key {
			return e
		}
	}
	t.Fatalf("no entity %s", key)
	return nil
}
