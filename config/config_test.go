// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// DefaultConfig tests
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ListenAddr", cfg.ListenAddr, ":8080"},
		{"MetricsAddr", cfg.MetricsAddr, ""},
		{"Network", cfg.Network, "mainnet"},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFile", cfg.LogFile, ""},
		{"AttemptTimeout", cfg.Storage.AttemptTimeout, 10 * time.Second},
		{"AnchorUnit", cfg.Anchor.Unit, "CRU"},
		{"AnchorEnabled", cfg.Anchor.Enabled, false},
		{"DNSUpstream", cfg.DNS.Upstream, "8.8.8.8:53"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
}

// ---------------------------------------------------------------------------
// SaveConfig / LoadConfig round-trip tests
// ---------------------------------------------------------------------------

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	original := DefaultConfig()
	original.DataDir = "/tmp/test-anchorgate"
	original.ListenAddr = ":9000"
	original.MetricsAddr = "127.0.0.1:9100"
	original.Network = "testnet"
	original.LogLevel = "debug"
	original.LogFile = "/tmp/anchorgate.log"
	original.Storage.Mirrors = []MirrorConfig{
		{URL: "https://mirror-a.example", Token: "tok"},
		{URL: "https://mirror-b.example", ReadOnly: true},
	}
	original.Storage.AttemptTimeout = 3 * time.Second
	original.Anchor.Enabled = true
	original.Anchor.StreamURL = "wss://events.example/ws"

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"DataDir", loaded.DataDir, original.DataDir},
		{"ListenAddr", loaded.ListenAddr, original.ListenAddr},
		{"MetricsAddr", loaded.MetricsAddr, original.MetricsAddr},
		{"Network", loaded.Network, original.Network},
		{"LogLevel", loaded.LogLevel, original.LogLevel},
		{"LogFile", loaded.LogFile, original.LogFile},
		{"MirrorCount", len(loaded.Storage.Mirrors), 2},
		{"MirrorToken", loaded.Storage.Mirrors[0].Token, "tok"},
		{"MirrorReadOnly", loaded.Storage.Mirrors[1].ReadOnly, true},
		{"AttemptTimeout", loaded.Storage.AttemptTimeout, 3 * time.Second},
		{"AnchorEnabled", loaded.Anchor.Enabled, true},
		{"StreamURL", loaded.Anchor.StreamURL, original.Anchor.StreamURL},
		{"OrderDuration", loaded.Anchor.OrderDuration, original.Anchor.OrderDuration},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %v, want %v", tc.got, tc.want)
			}
		})
	}
}

func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", FileName)

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig should create parent dirs: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Config file not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

// ---------------------------------------------------------------------------
// LoadConfig error tests
// ---------------------------------------------------------------------------

func TestLoadConfigNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("LoadConfig nonexistent: got %v, want ErrConfigNotFound", err)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	if err := os.WriteFile(path, []byte("network: [unterminated\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfigFile) {
		t.Errorf("LoadConfig bad yaml: got %v, want ErrInvalidConfigFile", err)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	content := `# comment
network: testnet
log_level: debug
storage:
  mirrors:
    - url: https://gw.example
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want default %q", cfg.ListenAddr, ":8080")
	}
	if cfg.Storage.AttemptTimeout != 10*time.Second {
		t.Errorf("AttemptTimeout = %v, want default 10s", cfg.Storage.AttemptTimeout)
	}
	if len(cfg.Storage.Mirrors) != 1 || cfg.Storage.Mirrors[0].URL != "https://gw.example" {
		t.Errorf("Mirrors = %+v", cfg.Storage.Mirrors)
	}
}

func TestLoadConfigDurationStrings(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	content := "storage:\n  attempt_timeout: 2500ms\nanchor:\n  poll_interval: 1m\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Storage.AttemptTimeout != 2500*time.Millisecond {
		t.Errorf("AttemptTimeout = %v", cfg.Storage.AttemptTimeout)
	}
	if cfg.Anchor.PollInterval != time.Minute {
		t.Errorf("PollInterval = %v", cfg.Anchor.PollInterval)
	}
}

func TestLoadConfigUnknownKeysIgnored(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	content := "futurekey: futurevalue\nnetwork: testnet\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig with unknown key: %v", err)
	}
	if cfg.Network != "testnet" {
		t.Errorf("Network = %q, want %q", cfg.Network, "testnet")
	}
}

func TestSaveConfig_OutputContainsHeader(t *testing.T) {
	dir := t.TempDir()
	path := ConfigPath(dir)

	if err := SaveConfig(path, DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# anchorgate configuration") {
		t.Error("saved config should start with the header comment")
	}
	for _, key := range []string{"data_dir:", "listen_addr:", "storage:", "anchor:", "attempt_timeout: 10s"} {
		if !strings.Contains(content, key) {
			t.Errorf("saved config should contain %q", key)
		}
	}
}

// ---------------------------------------------------------------------------
// ValidateConfig tests
// ---------------------------------------------------------------------------

func TestValidateConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("ValidateConfig(DefaultConfig()) = %v, want nil", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "empty_datadir",
			modify:  func(c *Config) { c.DataDir = "" },
			wantErr: ErrEmptyDataDir,
		},
		{
			name:    "bad_network",
			modify:  func(c *Config) { c.Network = "devnet" },
			wantErr: ErrInvalidNetwork,
		},
		{
			name:    "bad_listen_addr",
			modify:  func(c *Config) { c.ListenAddr = "not-a-valid-addr" },
			wantErr: ErrInvalidListenAddr,
		},
		{
			name:    "bad_metrics_addr",
			modify:  func(c *Config) { c.MetricsAddr = "9100" },
			wantErr: ErrInvalidListenAddr,
		},
		{
			name:    "bad_loglevel",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: ErrInvalidLogLevel,
		},
		{
			name:    "bad_network_api",
			modify:  func(c *Config) { c.Storage.NetworkAPI = "ftp://node" },
			wantErr: ErrInvalidBackendURL,
		},
		{
			name:    "bad_mirror",
			modify:  func(c *Config) { c.Storage.Mirrors = []MirrorConfig{{URL: "gw.example"}} },
			wantErr: ErrInvalidBackendURL,
		},
		{
			name:    "zero_attempt_timeout",
			modify:  func(c *Config) { c.Storage.AttemptTimeout = 0 },
			wantErr: ErrInvalidDuration,
		},
		{
			name: "anchor_empty_unit",
			modify: func(c *Config) {
				c.Anchor.Enabled = true
				c.Anchor.Unit = ""
			},
			wantErr: ErrInvalidAnchor,
		},
		{
			name: "anchor_bad_stream",
			modify: func(c *Config) {
				c.Anchor.Enabled = true
				c.Anchor.StreamURL = "http://events"
			},
			wantErr: ErrInvalidAnchor,
		},
		{
			name: "anchor_zero_poll",
			modify: func(c *Config) {
				c.Anchor.Enabled = true
				c.Anchor.PollInterval = 0
			},
			wantErr: ErrInvalidDuration,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			err := ValidateConfig(cfg)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateConfig: got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateConfig_AnchorDisabledSkipsChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Anchor.Unit = ""
	cfg.Anchor.PollInterval = 0
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("disabled anchor should not be validated: %v", err)
	}
}

func TestValidateConfig_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"INFO", "Debug", "WARN", "Error"} {
		t.Run(level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level
			if err := ValidateConfig(cfg); err != nil {
				t.Errorf("ValidateConfig with loglevel %q: %v", level, err)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

func TestConfigPath(t *testing.T) {
	got := ConfigPath("/home/user/.anchorgate")
	want := filepath.Join("/home/user/.anchorgate", "config.yaml")
	if got != want {
		t.Errorf("ConfigPath = %q, want %q", got, want)
	}
}

func TestDefaultDataDir(t *testing.T) {
	dir := DefaultDataDir()
	if !strings.HasSuffix(dir, ".anchorgate") {
		t.Errorf("DefaultDataDir() = %q, want suffix %q", dir, ".anchorgate")
	}
}
