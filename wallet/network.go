package wallet

import "fmt"

// NetworkConfig selects how anchoring addresses are encoded.
type NetworkConfig struct {
	Name string

	// AddressVersion is the base58check version byte of P2PKH addresses.
	AddressVersion byte
}

// Known networks. Testnet and regtest share address encoding.
var (
	MainNet = NetworkConfig{Name: "mainnet", AddressVersion: 0x00}
	TestNet = NetworkConfig{Name: "testnet", AddressVersion: 0x6f}
	RegTest = NetworkConfig{Name: "regtest", AddressVersion: 0x6f}
)

// IsMainnet reports whether addresses use the mainnet version byte.
func (n *NetworkConfig) IsMainnet() bool {
	return n.AddressVersion == MainNet.AddressVersion
}

// GetNetwork returns the known network called name, or ErrInvalidNetwork.
func GetNetwork(name string) (*NetworkConfig, error) {
	for _, n := range []*NetworkConfig{&MainNet, &TestNet, &RegTest} {
		if n.Name == name {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, name)
}
