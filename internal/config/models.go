package config

import "time"

// CurrentVersion is the config file schema version
const CurrentVersion = 1

// Defaults applied by NewConfig and by Load for missing sections
const (
	DefaultPollInterval    = 60 * time.Second
	DefaultExchangeTimeout = 10 * time.Second
	DefaultHTTPListen      = ":8080"
	DefaultBroker          = "tcp://localhost:1883"
	DefaultClientID        = "easycontrols"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultTopicPrefix     = "easycontrols"
)

// Config represents the entire user configuration file.
type Config struct {
	Version       int                `yaml:"version"`
	DefaultDevice string             `yaml:"default_device,omitempty"` // Name used when --device is not given
	Devices       map[string]*Device `yaml:"devices,omitempty"`        // Keyed by user-chosen name
	MQTT          *MQTTConfig        `yaml:"mqtt,omitempty"`
	HTTP          *HTTPConfig        `yaml:"http,omitempty"`
	Poll          *PollConfig        `yaml:"poll,omitempty"`
}

// Device is one KWL unit.
type Device struct {
	Host     string        `yaml:"host"`                // IP address or host name of the easyControls interface
	Nickname string        `yaml:"nickname,omitempty"`  // Display name
	Timeout  time.Duration `yaml:"timeout,omitempty"`   // Per-exchange timeout, Poll.Timeout when zero
	Serial   uint32        `yaml:"serial,omitempty"`    // Last seen serial number
	Model    string        `yaml:"model,omitempty"`     // Last seen model name
	LastSeen time.Time     `yaml:"last_seen,omitempty"` // Last successful connection
}

// MQTTConfig configures the Home Assistant bridge.
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"` // e.g. tcp://homeassistant.local:1883
	ClientID        string `yaml:"client_id"`
	Username        string `yaml:"username,omitempty"`
	Password        string `yaml:"password,omitempty"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	TopicPrefix     string `yaml:"topic_prefix"`
}

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// PollConfig controls how often serve mode refreshes units.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Devices: make(map[string]*Device),
		MQTT: &MQTTConfig{
			Broker:          DefaultBroker,
			ClientID:        DefaultClientID,
			DiscoveryPrefix: DefaultDiscoveryPrefix,
			TopicPrefix:     DefaultTopicPrefix,
		},
		HTTP: &HTTPConfig{
			Listen: DefaultHTTPListen,
		},
		Poll: &PollConfig{
			Interval: DefaultPollInterval,
			Timeout:  DefaultExchangeTimeout,
		},
	}
}

// applyDefaults fills sections and fields missing from a loaded file
func (c *Config) applyDefaults() {
	defaults := NewConfig()

	if c.Devices == nil {
		c.Devices = make(map[string]*Device)
	}
	if c.MQTT == nil {
		c.MQTT = defaults.MQTT
	}
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = DefaultBroker
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}
	if c.MQTT.DiscoveryPrefix == "" {
		c.MQTT.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.HTTP == nil {
		c.HTTP = defaults.HTTP
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = DefaultHTTPListen
	}
	if c.Poll == nil {
		c.Poll = defaults.Poll
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = DefaultPollInterval
	}
	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = DefaultExchangeTimeout
	}
}

// GetDevice retrieves a device by name.
// Returns nil if the device doesn't exist.
func (c *Config) GetDevice(name string) *Device {
	return c.Devices[name]
}

// EnsureDevice returns the named device, creating it with host if missing.
func (c *Config) EnsureDevice(name, host string) *Device {
	if c.Devices == nil {
		c.Devices = make(map[string]*Device)
	}
	if device, exists := c.Devices[name]; exists {
		if host != "" {
			device.Host = host
		}
		return device
	}
	device := &Device{Host: host}
	c.Devices[name] = device
	if c.DefaultDevice == "" {
		c.DefaultDevice = name
	}
	return device
}

// RemoveDevice deletes a device and clears the default if it pointed to it.
func (c *Config) RemoveDevice(name string) bool {
	if _, ok := c.Devices[name]; !ok {
		return false
	}
	delete(c.Devices, name)
	if c.DefaultDevice == name {
		c.DefaultDevice = ""
	}
	return true
}

// RecordSeen stores identity details of a device after a successful read.
func (c *Config) RecordSeen(name string, serial uint32, model string, at time.Time) {
	device := c.GetDevice(name)
	if device == nil {
		return
	}
	device.Serial = serial
	device.Model = model
	device.LastSeen = at
}

// ExchangeTimeout returns the effective per-exchange timeout of a device.
func (c *Config) ExchangeTimeout(d *Device) time.Duration {
	if d != nil && d.Timeout > 0 {
		return d.Timeout
	}
	if c.Poll != nil && c.Poll.Timeout > 0 {
		return c.Poll.Timeout
	}
	return DefaultExchangeTimeout
}

// DisplayName returns the nickname, falling back to the device name.
func (d *Device) DisplayName(name string) string {
	if d.Nickname != "" {
		return d.Nickname
	}
	return name
}
