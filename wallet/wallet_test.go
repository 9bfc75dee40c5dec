package wallet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mnemonic tests ---

func TestGenerateMnemonic_12Words(t *testing.T) {
	mnemonic, err := GenerateMnemonic(Mnemonic12Words)
	require.NoError(t, err)

	words := strings.Fields(mnemonic)
	assert.Len(t, words, 12, "12-word mnemonic should have 12 words")
	assert.True(t, ValidateMnemonic(mnemonic), "generated mnemonic should be valid")
}

func TestGenerateMnemonic_24Words(t *testing.T) {
	mnemonic, err := GenerateMnemonic(Mnemonic24Words)
	require.NoError(t, err)

	words := strings.Fields(mnemonic)
	assert.Len(t, words, 24, "24-word mnemonic should have 24 words")
	assert.True(t, ValidateMnemonic(mnemonic), "generated mnemonic should be valid")
}

func TestGenerateMnemonic_InvalidEntropy(t *testing.T) {
	_, err := GenerateMnemonic(64) // invalid
	assert.ErrorIs(t, err, ErrInvalidEntropy)

	_, err = GenerateMnemonic(192) // invalid
	assert.ErrorIs(t, err, ErrInvalidEntropy)
}

func TestGenerateMnemonic_Unique(t *testing.T) {
	m1, err := GenerateMnemonic(Mnemonic12Words)
	require.NoError(t, err)

	m2, err := GenerateMnemonic(Mnemonic12Words)
	require.NoError(t, err)

	assert.NotEqual(t, m1, m2, "two generated mnemonics should be different")
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		valid    bool
	}{
		{"valid 12-word", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about", true},
		{"invalid words", "foo bar baz qux quux corge grault garply waldo fred plugh xyzzy", false},
		{"empty", "", false},
		{"partial", "abandon abandon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateMnemonic(tt.mnemonic))
		})
	}
}

// --- Seed derivation tests ---

func TestSeedFromMnemonic_Deterministic(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	seed1, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	seed2, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	assert.Equal(t, seed1, seed2, "same mnemonic+passphrase should produce same seed")
	assert.Len(t, seed1, 64, "BIP39 seed should be 64 bytes")
}

func TestSeedFromMnemonic_DifferentPassphrase(t *testing.T) {
	mnemonic := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

	seed1, err := SeedFromMnemonic(mnemonic, "")
	require.NoError(t, err)

	seed2, err := SeedFromMnemonic(mnemonic, "my secret passphrase")
	require.NoError(t, err)

	assert.NotEqual(t, seed1, seed2, "different passphrases should produce different seeds")
}

func TestSeedFromMnemonic_InvalidMnemonic(t *testing.T) {
	_, err := SeedFromMnemonic("invalid mnemonic words here", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

// --- Seed encryption tests ---

func TestEncryptDecryptSeed_RoundTrip(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}

	password := "test-password-123"

	encrypted, err := EncryptSeed(seed, password)
	require.NoError(t, err)
	assert.Greater(t, len(encrypted), len(seed), "encrypted should be larger than seed")

	decrypted, err := DecryptSeed(encrypted, password)
	require.NoError(t, err)
	assert.Equal(t, seed, decrypted, "decrypted seed should match original")
}

func TestDecryptSeed_WrongPassword(t *testing.T) {
	seed := make([]byte, 64)
	password := "correct-password"

	encrypted, err := EncryptSeed(seed, password)
	require.NoError(t, err)

	_, err = DecryptSeed(encrypted, "wrong-password")
	assert.ErrorIs(t, err, ErrDecryptionFailed, "wrong password should fail")
}

func TestEncryptSeed_EmptySeed(t *testing.T) {
	_, err := EncryptSeed([]byte{}, "password")
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestDecryptSeed_TooShort(t *testing.T) {
	_, err := DecryptSeed([]byte{0x01, 0x02, 0x03}, "password")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncryptSeed_DifferentCiphertexts(t *testing.T) {
	seed := make([]byte, 64)
	password := "same-password"

	enc1, err := EncryptSeed(seed, password)
	require.NoError(t, err)

	enc2, err := EncryptSeed(seed, password)
	require.NoError(t, err)

	// Should differ due to random salt and nonce
	assert.NotEqual(t, enc1, enc2, "same seed+password should produce different ciphertexts")

	// But both should decrypt correctly
	dec1, err := DecryptSeed(enc1, password)
	require.NoError(t, err)
	assert.Equal(t, seed, dec1)

	dec2, err := DecryptSeed(enc2, password)
	require.NoError(t, err)
	assert.Equal(t, seed, dec2)
}

func TestDecryptSeed_CorruptedCiphertext(t *testing.T) {
	seed := make([]byte, 64)
	for i := range seed {
		seed[i] = byte(i)
	}

	encrypted, err := EncryptSeed(seed, "correct-password")
	require.NoError(t, err)

	corrupted := append([]byte(nil), encrypted...)
	corrupted[SaltLen+NonceLen+5] ^= 0xFF

	_, err = DecryptSeed(corrupted, "correct-password")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptSeed_CorruptedSalt(t *testing.T) {
	seed := make([]byte, 32)
	encrypted, err := EncryptSeed(seed, "pw")
	require.NoError(t, err)

	encrypted[0] ^= 0x01
	_, err = DecryptSeed(encrypted, "pw")
	assert.ErrorIs(t, err, ErrDecryptionFailed, "salt feeds the key derivation")
}

func TestEncryptSeed_OutputLength(t *testing.T) {
	seed := make([]byte, 64)
	encrypted, err := EncryptSeed(seed, "format-test")
	require.NoError(t, err)

	// GCM appends a 16-byte tag.
	assert.Len(t, encrypted, SaltLen+NonceLen+len(seed)+ChecksumLen+16)
}

// --- HD derivation tests ---

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newTestWallet(t *testing.T, network *NetworkConfig) *Wallet {
	t.Helper()
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	w, err := NewWallet(seed, network)
	require.NoError(t, err)
	return w
}

func TestNewWallet(t *testing.T) {
	w := newTestWallet(t, &TestNet)
	assert.Equal(t, "testnet", w.Network().Name)
}

func TestNewWallet_EmptySeed(t *testing.T) {
	_, err := NewWallet(nil, &MainNet)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestNewWallet_NilNetworkIsMainnet(t *testing.T) {
	w := newTestWallet(t, nil)
	assert.Equal(t, "mainnet", w.Network().Name)
}

func TestDeriveAnchorKey(t *testing.T) {
	w := newTestWallet(t, &MainNet)

	kp, err := w.DeriveAnchorKey(0)
	require.NoError(t, err)
	assert.Equal(t, "m/44'/236'/0'/0/0", kp.Path)
	require.NotNil(t, kp.PrivateKey)
	assert.Equal(t, kp.PrivateKey.PubKey().Compressed(), kp.PublicKey.Compressed())
}

func TestDeriveAnchorKey_Deterministic(t *testing.T) {
	a, err := newTestWallet(t, &MainNet).DeriveAnchorKey(7)
	require.NoError(t, err)
	b, err := newTestWallet(t, &MainNet).DeriveAnchorKey(7)
	require.NoError(t, err)

	assert.Equal(t, a.PublicKey.Compressed(), b.PublicKey.Compressed())
}

func TestDeriveKeys_DistinctPerIndex(t *testing.T) {
	w := newTestWallet(t, &MainNet)

	a0, err := w.DeriveAnchorKey(0)
	require.NoError(t, err)
	a1, err := w.DeriveAnchorKey(1)
	require.NoError(t, err)

	assert.Equal(t, "m/44'/236'/0'/0/1", a1.Path)
	assert.NotEqual(t, a0.PublicKey.Compressed(), a1.PublicKey.Compressed())
}

func TestDeriveKeys_PassphraseChangesTree(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic, "other")
	require.NoError(t, err)
	other, err := NewWallet(seed, &MainNet)
	require.NoError(t, err)

	a, err := newTestWallet(t, &MainNet).DeriveAnchorKey(0)
	require.NoError(t, err)
	b, err := other.DeriveAnchorKey(0)
	require.NoError(t, err)
	assert.NotEqual(t, a.PublicKey.Compressed(), b.PublicKey.Compressed())
}

func TestDeriveKey_IndexOutOfRange(t *testing.T) {
	w := newTestWallet(t, &MainNet)

	_, err := w.DeriveAnchorKey(MaxIndex + 1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestDeriveKey_MaxIndex(t *testing.T) {
	w := newTestWallet(t, &MainNet)

	kp, err := w.DeriveAnchorKey(MaxIndex)
	require.NoError(t, err)
	assert.NotNil(t, kp.PublicKey)
}

// --- Address tests ---

func TestAddress_Mainnet(t *testing.T) {
	w := newTestWallet(t, &MainNet)
	kp, err := w.DeriveAnchorKey(0)
	require.NoError(t, err)

	addr, err := w.Address(kp)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(addr, "1"), "mainnet P2PKH address: %s", addr)

	decoded, err := script.NewAddressFromString(addr)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey.Hash(), []byte(decoded.PublicKeyHash))
}

func TestAddress_Testnet(t *testing.T) {
	w := newTestWallet(t, &RegTest)
	kp, err := w.DeriveAnchorKey(0)
	require.NoError(t, err)

	addr, err := w.Address(kp)
	require.NoError(t, err)
	assert.Contains(t, "mn", addr[:1], "testnet P2PKH address: %s", addr)
}

func TestAddress_SameKeyDiffersByNetwork(t *testing.T) {
	main := newTestWallet(t, &MainNet)
	test := newTestWallet(t, &TestNet)

	kp, err := main.DeriveAnchorKey(0)
	require.NoError(t, err)

	a1, err := main.Address(kp)
	require.NoError(t, err)
	a2, err := test.Address(kp)
	require.NoError(t, err)
	assert.NotEqual(t, a1, a2)
}

func TestAddress_NilKeyPair(t *testing.T) {
	w := newTestWallet(t, &MainNet)
	_, err := w.Address(nil)
	assert.ErrorIs(t, err, ErrDerivationFailed)
}

// --- Network tests ---

func TestGetNetwork(t *testing.T) {
	tests := []struct {
		name    string
		netName string
		wantErr bool
	}{
		{"mainnet", "mainnet", false},
		{"testnet", "testnet", false},
		{"regtest", "regtest", false},
		{"unknown", "foonet", true},
		{"case sensitive", "MainNet", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			net, err := GetNetwork(tt.netName)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidNetwork)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.netName, net.Name)
		})
	}
}

func TestIsMainnet(t *testing.T) {
	assert.True(t, MainNet.IsMainnet())
	assert.False(t, TestNet.IsMainnet())
	assert.False(t, RegTest.IsMainnet())
}

func TestNetworkAddressVersions(t *testing.T) {
	assert.Equal(t, byte(0x00), MainNet.AddressVersion)
	assert.Equal(t, TestNet.AddressVersion, RegTest.AddressVersion)

	custom := NetworkConfig{Name: "private", AddressVersion: 0x6f}
	assert.False(t, custom.IsMainnet())
}

// --- Keystore tests ---

func TestSaveLoadSeed(t *testing.T) {
	path := KeystorePath(filepath.Join(t.TempDir(), "data"))
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	require.NoError(t, SaveSeed(path, seed, "pw"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadSeed(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, seed, loaded)
}

func TestSaveSeed_RefusesOverwrite(t *testing.T) {
	path := KeystorePath(t.TempDir())
	require.NoError(t, SaveSeed(path, []byte{1, 2, 3}, "pw"))

	err := SaveSeed(path, []byte{4, 5, 6}, "pw")
	assert.ErrorIs(t, err, ErrKeystoreExists)

	loaded, err := LoadSeed(path, "pw")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, loaded)
}

func TestLoadSeed_NotFound(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "nope.enc"), "pw")
	assert.ErrorIs(t, err, ErrKeystoreNotFound)
}

func TestLoadSeed_WrongPassword(t *testing.T) {
	path := KeystorePath(t.TempDir())
	require.NoError(t, SaveSeed(path, []byte{9, 9, 9}, "right"))

	_, err := LoadSeed(path, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestOpen(t *testing.T) {
	path := KeystorePath(t.TempDir())
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	require.NoError(t, SaveSeed(path, seed, "pw"))

	w, err := Open(path, "pw", &TestNet)
	require.NoError(t, err)

	got, err := w.DeriveAnchorKey(0)
	require.NoError(t, err)
	want, err := newTestWallet(t, &TestNet).DeriveAnchorKey(0)
	require.NoError(t, err)
	assert.Equal(t, want.PublicKey.Compressed(), got.PublicKey.Compressed())
}
