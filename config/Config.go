// Package config holds the node's startup configuration: listen/dial
// timing, the diagnostics API bind address, and the maximum peer count.
// Grounded on PeernetOfficial-core/Settings.go's loadConfig/saveConfig
// pattern — a missing or empty file falls back to the embedded default
// rather than failing startup.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Duration wraps time.Duration with YAML marshalling via the usual
// Go duration string syntax ("5s", "500ms"), since yaml.v3 otherwise
// treats a time.Duration as its bare int64 nanosecond count.
type Duration time.Duration

// AsDuration returns d as a plain time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the node's full startup configuration.
type Config struct {
	// PeerRequestInterval is how often the requester sends 0x01.
	PeerRequestInterval Duration `yaml:"PeerRequestInterval"`

	// ArchiveRequestEvery is every Nth requester tick that also sends 0x03.
	ArchiveRequestEvery int `yaml:"ArchiveRequestEvery"`

	// ReadTimeout is the per-peer idle read timeout before eviction.
	ReadTimeout Duration `yaml:"ReadTimeout"`

	// DialTimeout bounds an outbound connect attempt.
	DialTimeout Duration `yaml:"DialTimeout"`

	// MaxPeers caps simultaneously accepted inbound connections.
	MaxPeers int `yaml:"MaxPeers"`

	// DiagnosticsListen is the IP:Port the statusapi HTTP/WS server binds
	// to. Empty disables the diagnostics server entirely.
	DiagnosticsListen string `yaml:"DiagnosticsListen"`
}

// Load reads path as YAML into a Config. A missing or empty file falls
// back to the built-in default (default.yaml, embedded at build time)
// rather than treating it as fatal, matching loadConfig's behavior of
// preferring forward progress over a hard failure on a missing file.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		raw = defaultYAML
	}
	if len(raw) == 0 {
		raw = defaultYAML
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshalling: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
