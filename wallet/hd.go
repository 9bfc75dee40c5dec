package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	PurposeBIP44  = 44
	CoinType      = 236
	AnchorAccount = 0

	ExternalChain = 0 // receive and order-signing keys

	// MaxIndex is the largest non-hardened child index.
	MaxIndex = 1<<31 - 1

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet is the HD tree of the anchoring account.
type Wallet struct {
	master  *bip32.ExtendedKey
	network *NetworkConfig
}

// KeyPair holds a derived key pair and its derivation path.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"`
}

// NewWallet builds the tree for a BIP39 seed. A nil network means MainNet.
func NewWallet(seed []byte, network *NetworkConfig) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == nil {
		network = &MainNet
	}

	params := &chaincfg.TestNet
	if network.IsMainnet() {
		params = &chaincfg.MainNet
	}
	master, err := bip32.NewMaster(seed, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Wallet{master: master, network: network}, nil
}

// Network returns the wallet's network configuration.
func (w *Wallet) Network() *NetworkConfig {
	return w.network
}

// derive walks a path of child indices from the master key.
func (w *Wallet) derive(path ...uint32) (*bip32.ExtendedKey, error) {
	k := w.master
	for depth, idx := range path {
		var err error
		if k, err = k.Child(idx); err != nil {
			return nil, fmt.Errorf("%w: depth %d: %w", ErrDerivationFailed, depth, err)
		}
	}
	return k, nil
}

// DeriveAnchorKey derives the order-signing key at m/44'/236'/0'/0/index.
// Change from anchoring transactions returns to the same address.
func (w *Wallet) DeriveAnchorKey(index uint32) (*KeyPair, error) {
	if index > MaxIndex {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	k, err := w.derive(PurposeBIP44+Hardened, CoinType+Hardened, AnchorAccount+Hardened, ExternalChain, index)
	if err != nil {
		return nil, err
	}
	return toKeyPair(k, fmt.Sprintf("m/%d'/%d'/%d'/%d/%d", PurposeBIP44, CoinType, AnchorAccount, ExternalChain, index))
}

// Address returns the P2PKH address of kp on the wallet's network.
func (w *Wallet) Address(kp *KeyPair) (string, error) {
	if kp == nil || kp.PublicKey == nil {
		return "", fmt.Errorf("%w: nil key pair", ErrDerivationFailed)
	}
	addr, err := script.NewAddressFromPublicKey(kp.PublicKey, w.network.IsMainnet())
	if err != nil {
		return "", fmt.Errorf("wallet: address: %w", err)
	}
	return addr.AddressString, nil
}

func toKeyPair(k *bip32.ExtendedKey, path string) (*KeyPair, error) {
	priv, err := k.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: private key: %w", ErrDerivationFailed, err)
	}
	return &KeyPair{PrivateKey: priv, PublicKey: priv.PubKey(), Path: path}, nil
}
