// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidListenAddr indicates the listen or metrics address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigFile indicates the config file is not valid YAML for Config.
	ErrInvalidConfigFile = errors.New("config: invalid configuration file")

	// ErrInvalidBackendURL indicates a storage API or mirror URL is malformed.
	ErrInvalidBackendURL = errors.New("config: invalid backend URL")

	// ErrInvalidDuration indicates a timeout or interval is not positive.
	ErrInvalidDuration = errors.New("config: durations must be positive")

	// ErrInvalidAnchor indicates the anchor section is inconsistent.
	ErrInvalidAnchor = errors.New("config: invalid anchor settings")
)
