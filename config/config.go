// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads, saves and validates the gateway configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file name inside the data directory.
const FileName = "config.yaml"

// Config is the top-level gateway configuration.
type Config struct {
	DataDir     string `yaml:"data_dir"`
	ListenAddr  string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"` // empty disables the metrics listener
	Network     string `yaml:"network"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`

	RPC     RPCConfig     `yaml:"rpc"`
	Storage StorageConfig `yaml:"storage"`
	Anchor  AnchorConfig  `yaml:"anchor"`
	DNS     DNSConfig     `yaml:"dns"`
}

// RPCConfig holds ledger node credentials. Empty fields fall back to
// environment variables and network presets.
type RPCConfig struct {
	URL      string `yaml:"url"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// StorageConfig lists the storage backends in priority order:
// the network API first, then mirrors, then the local fallback.
type StorageConfig struct {
	NetworkAPI     string         `yaml:"network_api"`
	NetworkToken   string         `yaml:"network_token"`
	Mirrors        []MirrorConfig `yaml:"mirrors"`
	AttemptTimeout time.Duration  `yaml:"attempt_timeout"`
	DNSLinkDomain  string         `yaml:"dnslink_domain"`
}

// MirrorConfig describes one HTTP gateway mirror.
type MirrorConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	ReadOnly bool   `yaml:"read_only,omitempty"`
}

// AnchorConfig controls storage order placement on the ledger.
type AnchorConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Unit           string        `yaml:"unit"`
	PricePerMiB    uint64        `yaml:"price_per_mib"`
	OrderDuration  time.Duration `yaml:"order_duration"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	StreamURL      string        `yaml:"stream_url"` // empty selects polling
	FeeRate        uint64        `yaml:"fee_rate"`   // satoshis per KB
}

// DNSConfig controls DNSLink lookups.
type DNSConfig struct {
	Upstream string `yaml:"upstream"`
	DNSSEC   bool   `yaml:"dnssec"`
}

// DefaultDataDir returns ~/.anchorgate, or ./.anchorgate when the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".anchorgate"
	}
	return filepath.Join(home, ".anchorgate")
}

// DefaultConfig returns a configuration with every field at its default.
func DefaultConfig() Config {
	return Config{
		DataDir:    DefaultDataDir(),
		ListenAddr: ":8080",
		Network:    "mainnet",
		LogLevel:   "info",
		Storage: StorageConfig{
			NetworkAPI:     "http://127.0.0.1:5001",
			AttemptTimeout: 10 * time.Second,
		},
		Anchor: AnchorConfig{
			Unit:           "CRU",
			PricePerMiB:    1000,
			OrderDuration:  180 * 24 * time.Hour,
			ConfirmTimeout: 10 * time.Minute,
			PollInterval:   15 * time.Second,
			FeeRate:        1,
		},
		DNS: DNSConfig{
			Upstream: "8.8.8.8:53",
		},
	}
}

// ConfigPath returns the config file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// LoadConfig reads the YAML file at path on top of DefaultConfig, so keys
// absent from the file keep their defaults. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfigFile, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML to path, creating parent directories.
// The file is created with 0600 permissions since it may hold credentials.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}

	out := append([]byte("# anchorgate configuration\n"), body...)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
