// Package config provides user configuration management for easycontrols.
//
// This package manages a YAML configuration file listing the KWL units to
// talk to, plus the settings of the Home Assistant MQTT bridge, the HTTP API
// and the poll loop used by "kwlctl serve".
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/easycontrols/config.yaml or $HOME/.config/easycontrols/config.yaml
//   - macOS: $HOME/.config/easycontrols/config.yaml
//   - Windows: %LOCALAPPDATA%\easycontrols\config.yaml
//
// # Example
//
//	version: 1
//	default_device: cellar
//	devices:
//	    cellar:
//	        host: 192.168.1.50
//	        nickname: Cellar KWL
//	mqtt:
//	    enabled: true
//	    broker: tcp://homeassistant.local:1883
//	    client_id: easycontrols
//	    discovery_prefix: homeassistant
//	    topic_prefix: easycontrols
//	http:
//	    enabled: true
//	    listen: :8080
//	poll:
//	    interval: 60s
//	    timeout: 10s
//
// # Usage Example
//
//	cfg, path, err := config.LoadDefault()
//	if err != nil {
//	    return err
//	}
//	cfg.EnsureDevice("cellar", "192.168.1.50")
//	if err := cfg.Save(path); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// A Config is not safe for concurrent mutation. Save is serialized within the
// process and replaces the file atomically.
package config
