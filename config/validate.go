// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}
	if cfg.MetricsAddr != "" {
		if err := validateAddr(cfg.MetricsAddr); err != nil {
			return fmt.Errorf("%w: metrics: %w", ErrInvalidListenAddr, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if err := validateStorage(cfg.Storage); err != nil {
		return err
	}
	if err := validateAnchor(cfg.Anchor); err != nil {
		return err
	}

	if cfg.DNS.Upstream != "" {
		if err := validateAddr(cfg.DNS.Upstream); err != nil {
			return fmt.Errorf("%w: dns upstream: %w", ErrInvalidListenAddr, err)
		}
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	if s.NetworkAPI != "" {
		if err := validateURL(s.NetworkAPI); err != nil {
			return fmt.Errorf("%w: network_api: %w", ErrInvalidBackendURL, err)
		}
	}
	for i, m := range s.Mirrors {
		if err := validateURL(m.URL); err != nil {
			return fmt.Errorf("%w: mirrors[%d]: %w", ErrInvalidBackendURL, i, err)
		}
	}
	if s.AttemptTimeout <= 0 {
		return fmt.Errorf("%w: attempt_timeout", ErrInvalidDuration)
	}
	return nil
}

func validateAnchor(a AnchorConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.Unit == "" {
		return fmt.Errorf("%w: unit must not be empty", ErrInvalidAnchor)
	}
	if a.OrderDuration <= 0 || a.ConfirmTimeout <= 0 || a.PollInterval <= 0 {
		return fmt.Errorf("%w: anchor", ErrInvalidDuration)
	}
	if a.StreamURL != "" {
		u, err := url.Parse(a.StreamURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("%w: stream_url must be ws:// or wss://", ErrInvalidAnchor)
		}
	}
	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}

// validateURL checks that raw is an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
