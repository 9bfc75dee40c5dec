package network

import (
	"fmt"
	"os"
)

// Environment variables that override RPC settings.
const (
	EnvRPCURL  = "ANCHORGATE_RPC_URL"
	EnvRPCUser = "ANCHORGATE_RPC_USER"
	EnvRPCPass = "ANCHORGATE_RPC_PASS"
)

// RPCConfig locates and authenticates a ledger node.
type RPCConfig struct {
	URL      string `json:"url"`
	User     string `json:"user"`
	Password string `json:"password"`
	Network  string `json:"network"`
}

// NetworkPresets are local-node defaults. Mainnet has none so a mainnet
// gateway never anchors against a node nobody configured.
var NetworkPresets = map[string]RPCConfig{
	"regtest": {URL: "http://localhost:18332", User: "anchorgate", Password: "anchorgate"},
	"testnet": {URL: "http://localhost:18333", User: "anchorgate", Password: "anchorgate"},
}

// overlay copies the non-empty fields of o onto c.
func (c *RPCConfig) overlay(o RPCConfig) {
	if o.URL != "" {
		c.URL = o.URL
	}
	if o.User != "" {
		c.User = o.User
	}
	if o.Password != "" {
		c.Password = o.Password
	}
}

// ResolveConfig layers the network preset, then env, then explicit, each
// non-empty field overriding the previous layer. A result without a URL is
// an error.
func ResolveConfig(explicit *RPCConfig, env map[string]string, network string) (*RPCConfig, error) {
	cfg := NetworkPresets[network]
	cfg.overlay(RPCConfig{URL: env[EnvRPCURL], User: env[EnvRPCUser], Password: env[EnvRPCPass]})
	if explicit != nil {
		cfg.overlay(*explicit)
	}
	cfg.Network = network

	if cfg.URL == "" {
		return nil, fmt.Errorf("network: no RPC URL for %s: set rpc.url, --rpc-url or %s", network, EnvRPCURL)
	}
	return &cfg, nil
}

// EnvFromOS reads the override variables that are set and non-empty.
func EnvFromOS() map[string]string {
	env := map[string]string{}
	for _, k := range []string{EnvRPCURL, EnvRPCUser, EnvRPCPass} {
		if v := os.Getenv(k); v != "" {
			env[k] = v
		}
	}
	return env
}
