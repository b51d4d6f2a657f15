package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "easycontrols"
	configFile = "config.yaml"
)

// fileMutex serializes writes of the config file within the process
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/easycontrols or $HOME/.config/easycontrols
//   - macOS: $HOME/.config/easycontrols
//   - Windows: %LOCALAPPDATA%\easycontrols
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path.
// If the file doesn't exist, returns a new default config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", cfg.Version, CurrentVersion)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadDefault reads the configuration from GetConfigPath.
func LoadDefault() (*Config, string, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Save writes the config to path.
// Performs an atomic write to prevent corruption on crash.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	// The file may hold an MQTT password, so the directory is user-only
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# easycontrols configuration file
# Devices are Helios KWL units with an easyControls 3.0 web interface.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the tools cannot work with.
// All problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if c.Version != CurrentVersion {
		problems = append(problems, fmt.Sprintf("version must be %d", CurrentVersion))
	}
	if c.DefaultDevice != "" && c.GetDevice(c.DefaultDevice) == nil {
		problems = append(problems, fmt.Sprintf("default_device %q is not defined", c.DefaultDevice))
	}
	for _, name := range c.DeviceNames() {
		d := c.Devices[name]
		switch {
		case d == nil:
			problems = append(problems, fmt.Sprintf("device %q is empty", name))
		case strings.TrimSpace(d.Host) == "":
			problems = append(problems, fmt.Sprintf("device %q has no host", name))
		case strings.ContainsAny(d.Host, "/ "):
			problems = append(problems, fmt.Sprintf("device %q: host %q must be an address, not a URL", name, d.Host))
		}
		if d != nil && d.Timeout < 0 {
			problems = append(problems, fmt.Sprintf("device %q: timeout must not be negative", name))
		}
	}

	if c.MQTT != nil && c.MQTT.Enabled {
		u, err := url.Parse(c.MQTT.Broker)
		if err != nil || u.Host == "" {
			problems = append(problems, fmt.Sprintf("mqtt.broker %q must be a URL like tcp://host:1883", c.MQTT.Broker))
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
			problems = append(problems, "mqtt.topic_prefix must be set and must not contain wildcards")
		}
	}

	if c.HTTP != nil && c.HTTP.Enabled {
		if _, _, err := net.SplitHostPort(c.HTTP.Listen); err != nil {
			problems = append(problems, fmt.Sprintf("http.listen %q: %v", c.HTTP.Listen, err))
		}
	}

	if c.Poll != nil {
		if c.Poll.Interval < 0 || c.Poll.Timeout < 0 {
			problems = append(problems, "poll interval and timeout must not be negative")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// DeviceNames returns the device names in sorted order.
func (c *Config) DeviceNames() []string {
	names := make([]string, 0, len(c.Devices))
	for name := range c.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveDevice finds the device for a --device argument.
// An empty argument selects the default device (or the only device); a name
// selects a configured device; anything else is taken as a host address.
func (c *Config) ResolveDevice(arg string) (name string, device *Device, err error) {
	if arg == "" {
		switch {
		case c.DefaultDevice != "":
			arg = c.DefaultDevice
		case len(c.Devices) == 1:
			arg = c.DeviceNames()[0]
		default:
			return "", nil, errors.New("no device given and no default device configured (use --device or 'kwlctl config add')")
		}
	}

	if d := c.GetDevice(arg); d != nil {
		return arg, d, nil
	}
	if strings.ContainsAny(arg, ".:") {
		return arg, &Device{Host: arg}, nil
	}
	return "", nil, fmt.Errorf("unknown device %q (configured: %s)", arg, strings.Join(c.DeviceNames(), ", "))
}
