package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		t.Skip("XDG_CONFIG_HOME only applies on Linux and other Unix systems")
	}

	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join("/tmp/xdg", "easycontrols") {
		t.Errorf("GetConfigDir() = %s", dir)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/kwl")
	dir, err = GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if dir != filepath.Join("/home/kwl", ".config", "easycontrols") {
		t.Errorf("GetConfigDir() = %s", dir)
	}
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", path)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", cfg.Version, CurrentVersion)
	}
	if cfg.Devices == nil {
		t.Error("Devices should not be nil")
	}
	if cfg.Poll.Interval != 60*time.Second || cfg.Poll.Timeout != 10*time.Second {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if cfg.MQTT.DiscoveryPrefix != "homeassistant" || cfg.MQTT.TopicPrefix != "easycontrols" {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
	if cfg.HTTP.Listen != ":8080" {
		t.Errorf("HTTP.Listen = %s", cfg.HTTP.Listen)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Version != CurrentVersion || len(cfg.Devices) != 0 {
		t.Errorf("Load() of missing file = %+v", cfg)
	}
}

func TestLoad_FillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `version: 1
devices:
    cellar:
        host: 192.168.1.50
        timeout: 3s
mqtt:
    enabled: true
    broker: tcp://broker:1883
poll:
    interval: 2m
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if d := cfg.GetDevice("cellar"); d == nil || d.Host != "192.168.1.50" || d.Timeout != 3*time.Second {
		t.Errorf("cellar = %+v", d)
	}
	if cfg.Poll.Interval != 2*time.Minute || cfg.Poll.Timeout != DefaultExchangeTimeout {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if cfg.MQTT.TopicPrefix != DefaultTopicPrefix || cfg.MQTT.ClientID != DefaultClientID {
		t.Errorf("MQTT defaults not applied: %+v", cfg.MQTT)
	}
	if cfg.HTTP == nil || cfg.HTTP.Listen != DefaultHTTPListen {
		t.Errorf("HTTP = %+v", cfg.HTTP)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad yaml", content: "version: [1", wantErr: "failed to parse"},
		{name: "wrong version", content: "version: 2\n", wantErr: "unsupported config version"},
		{name: "missing version", content: "devices: {}\n", wantErr: "unsupported config version"},
		{name: "bad duration", content: "version: 1\npoll:\n    interval: soon\n", wantErr: "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	seen := time.Date(2025, time.March, 4, 18, 30, 0, 0, time.UTC)

	cfg := NewConfig()
	cfg.EnsureDevice("cellar", "192.168.1.50").Nickname = "Cellar KWL"
	cfg.RecordSeen("cellar", 12345678, "KWL 300", seen)
	cfg.MQTT.Enabled = true
	cfg.MQTT.Username = "ha"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	raw, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(raw), "# easycontrols configuration file") {
		t.Error("header comment missing")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	d := loaded.GetDevice("cellar")
	if d == nil {
		t.Fatal("device missing after reload")
	}
	if d.Host != "192.168.1.50" || d.Nickname != "Cellar KWL" || d.Serial != 12345678 || d.Model != "KWL 300" {
		t.Errorf("device = %+v", d)
	}
	if !d.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", d.LastSeen, seen)
	}
	if loaded.DefaultDevice != "cellar" {
		t.Errorf("DefaultDevice = %q", loaded.DefaultDevice)
	}
	if !loaded.MQTT.Enabled || loaded.MQTT.Username != "ha" {
		t.Errorf("MQTT = %+v", loaded.MQTT)
	}
	if loaded.Poll.Interval != DefaultPollInterval {
		t.Errorf("Poll.Interval = %v", loaded.Poll.Interval)
	}
}

func TestEnsureAndRemoveDevice(t *testing.T) {
	cfg := NewConfig()

	first := cfg.EnsureDevice("cellar", "10.0.0.1")
	if again := cfg.EnsureDevice("cellar", ""); again != first || again.Host != "10.0.0.1" {
		t.Error("EnsureDevice() should return the existing device and keep its host")
	}
	cfg.EnsureDevice("cellar", "10.0.0.2")
	if first.Host != "10.0.0.2" {
		t.Errorf("Host = %s, want updated host", first.Host)
	}
	cfg.EnsureDevice("attic", "10.0.0.3")
	if cfg.DefaultDevice != "cellar" {
		t.Errorf("DefaultDevice = %q, want the first device", cfg.DefaultDevice)
	}

	if !cfg.RemoveDevice("cellar") || cfg.DefaultDevice != "" {
		t.Error("RemoveDevice() should remove the default device and clear the default")
	}
	if cfg.RemoveDevice("cellar") {
		t.Error("RemoveDevice() of a missing device should return false")
	}
	if got := cfg.DeviceNames(); len(got) != 1 || got[0] != "attic" {
		t.Errorf("DeviceNames() = %v", got)
	}
}

func TestResolveDevice(t *testing.T) {
	cfg := NewConfig()
	cfg.EnsureDevice("cellar", "10.0.0.1")
	cfg.EnsureDevice("attic", "10.0.0.2")

	tests := []struct {
		name     string
		arg      string
		wantName string
		wantHost string
		wantErr  bool
	}{
		{name: "default", arg: "", wantName: "cellar", wantHost: "10.0.0.1"},
		{name: "by name", arg: "attic", wantName: "attic", wantHost: "10.0.0.2"},
		{name: "ad hoc address", arg: "192.168.7.7", wantName: "192.168.7.7", wantHost: "192.168.7.7"},
		{name: "ad hoc host and port", arg: "kwl.local:8080", wantName: "kwl.local:8080", wantHost: "kwl.local:8080"},
		{name: "unknown name", arg: "garage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, d, err := cfg.ResolveDevice(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveDevice(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if name != tt.wantName || d.Host != tt.wantHost {
				t.Errorf("ResolveDevice(%q) = %s, %s", tt.arg, name, d.Host)
			}
		})
	}

	empty := NewConfig()
	if _, _, err := empty.ResolveDevice(""); err == nil {
		t.Error("ResolveDevice() without devices should fail")
	}

	single := NewConfig()
	single.Devices["only"] = &Device{Host: "10.1.1.1"}
	if name, _, err := single.ResolveDevice(""); err != nil || name != "only" {
		t.Errorf("ResolveDevice() with one device = %s, %v", name, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) { c.EnsureDevice("cellar", "10.0.0.1") }},
		{name: "missing default", mutate: func(c *Config) { c.DefaultDevice = "ghost" }, wantErr: "default_device"},
		{name: "empty host", mutate: func(c *Config) { c.Devices["x"] = &Device{} }, wantErr: "has no host"},
		{name: "url host", mutate: func(c *Config) { c.Devices["x"] = &Device{Host: "ws://10.0.0.1/"} }, wantErr: "not a URL"},
		{name: "negative device timeout", mutate: func(c *Config) { c.Devices["x"] = &Device{Host: "h.local", Timeout: -1} }, wantErr: "timeout"},
		{name: "bad broker", mutate: func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "localhost" }, wantErr: "mqtt.broker"},
		{name: "wildcard prefix", mutate: func(c *Config) { c.MQTT.Enabled = true; c.MQTT.TopicPrefix = "kwl/#" }, wantErr: "topic_prefix"},
		{name: "disabled mqtt not checked", mutate: func(c *Config) { c.MQTT.Broker = "" }},
		{name: "bad listen", mutate: func(c *Config) { c.HTTP.Enabled = true; c.HTTP.Listen = "8080" }, wantErr: "http.listen"},
		{name: "negative poll", mutate: func(c *Config) { c.Poll.Interval = -time.Second }, wantErr: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestExchangeTimeout(t *testing.T) {
	cfg := NewConfig()
	if got := cfg.ExchangeTimeout(&Device{}); got != DefaultExchangeTimeout {
		t.Errorf("ExchangeTimeout() = %v", got)
	}
	if got := cfg.ExchangeTimeout(&Device{Timeout: 2 * time.Second}); got != 2*time.Second {
		t.Errorf("ExchangeTimeout() = %v", got)
	}
	cfg.Poll.Timeout = 4 * time.Second
	if got := cfg.ExchangeTimeout(nil); got != 4*time.Second {
		t.Errorf("ExchangeTimeout(nil) = %v", got)
	}
}
