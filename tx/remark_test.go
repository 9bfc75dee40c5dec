package tx

import (
	"bytes"
	"strings"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeyPair(t *testing.T) (*ec.PrivateKey, *ec.PublicKey) {
	t.Helper()
	privKey, err := ec.NewPrivateKey()
	require.NoError(t, err)
	return privKey, privKey.PubKey()
}

func testRemark() Remark {
	return Remark{
		ContentID: "bafkreihdwdcefgh4dqkjv67uzcmw7ojee6xedzdetojuzjevtenxquvyku",
		Size:      1 << 20,
		ExpiresAt: 1767225600,
		Price:     1000,
	}
}

func fundedUTXO(t *testing.T, priv *ec.PrivateKey, amount uint64, seed byte) *UTXO {
	t.Helper()
	lock, err := BuildP2PKHScript(priv.PubKey())
	require.NoError(t, err)
	return &UTXO{
		TxID:         bytes.Repeat([]byte{seed}, TxIDLen),
		Vout:         0,
		Amount:       amount,
		ScriptPubKey: lock,
		PrivateKey:   priv,
	}
}

// --- Remark data tests ---

func TestBuildRemarkData(t *testing.T) {
	pushes, err := BuildRemarkData(testRemark())
	require.NoError(t, err)
	require.Len(t, pushes, 5)
	assert.Equal(t, RemarkFlagBytes, pushes[0])
	assert.Equal(t, RemarkFlag, string(pushes[0]))
	assert.Equal(t, testRemark().ContentID, string(pushes[1]))
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0x10, 0, 0}, pushes[2])
	assert.Len(t, pushes[3], 8)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0x03, 0xe8}, pushes[4])
}

func TestBuildRemarkData_Invalid(t *testing.T) {
	_, err := BuildRemarkData(Remark{})
	assert.ErrorIs(t, err, ErrInvalidRemark)

	_, err = BuildRemarkData(Remark{ContentID: strings.Repeat("x", MaxContentIDLen+1)})
	assert.ErrorIs(t, err, ErrInvalidRemark)
}

func TestParseRemarkData_RoundTrip(t *testing.T) {
	pushes, err := BuildRemarkData(testRemark())
	require.NoError(t, err)
	got, err := ParseRemarkData(pushes)
	require.NoError(t, err)
	assert.Equal(t, testRemark(), *got)
}

func TestParseRemarkData_Errors(t *testing.T) {
	good, err := BuildRemarkData(testRemark())
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func([][]byte) [][]byte
		wantErr error
	}{
		{"too few pushes", func(p [][]byte) [][]byte { return p[:4] }, ErrInvalidOPReturn},
		{"wrong flag", func(p [][]byte) [][]byte { p[0] = []byte("meta"); return p }, ErrNotRemarkTx},
		{"empty content id", func(p [][]byte) [][]byte { p[1] = nil; return p }, ErrInvalidOPReturn},
		{"short size", func(p [][]byte) [][]byte { p[2] = []byte{1}; return p }, ErrInvalidOPReturn},
		{"long price", func(p [][]byte) [][]byte { p[4] = make([]byte, 9); return p }, ErrInvalidOPReturn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pushes := make([][]byte, len(good))
			copy(pushes, good)
			_, err := ParseRemarkData(tt.mutate(pushes))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

// --- Fee estimation tests ---

func TestEstimateFee(t *testing.T) {
	assert.Equal(t, uint64(1), EstimateFee(1, 1))
	assert.Equal(t, uint64(1), EstimateFee(1000, 1))
	assert.Equal(t, uint64(2), EstimateFee(1001, 1))
	assert.Equal(t, uint64(50), EstimateFee(1000, 50))
	assert.Equal(t, EstimateFee(250, DefaultFeeRate), EstimateFee(250, 0))
}

func TestEstimateRemarkTxSize_MatchesSigned(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	in := fundedUTXO(t, priv, 100000, 0x01)
	rtx, err := BuildRemarkTx(&RemarkTxParams{
		Remark:       testRemark(),
		Inputs:       []*UTXO{in},
		ChangeScript: in.ScriptPubKey,
	})
	require.NoError(t, err)
	_, err = SignRemarkTx(rtx, []*UTXO{in})
	require.NoError(t, err)

	pushes, _ := BuildRemarkData(testRemark())
	est := EstimateRemarkTxSize(1, true, pushes)
	// DER signatures vary by a byte or two.
	assert.InDelta(t, len(rtx.RawTx), est, 4)
}

// --- BuildRemarkTx tests ---

func TestBuildRemarkTx(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	in := fundedUTXO(t, priv, 100000, 0x01)

	rtx, err := BuildRemarkTx(&RemarkTxParams{
		Remark:       testRemark(),
		Inputs:       []*UTXO{in},
		ChangeScript: in.ScriptPubKey,
		FeeRate:      1,
	})
	require.NoError(t, err)
	require.NotNil(t, rtx.ChangeUTXO)
	assert.Equal(t, uint32(1), rtx.ChangeUTXO.Vout)
	assert.Equal(t, in.Amount-rtx.Fee, rtx.ChangeUTXO.Amount)

	parsed, err := transaction.NewTransactionFromBytes(rtx.RawTx)
	require.NoError(t, err)
	require.Len(t, parsed.Outputs, 2)
	assert.True(t, parsed.Outputs[0].LockingScript.IsData())
	assert.Equal(t, uint64(0), parsed.Outputs[0].Satoshis)

	got, err := ExtractRemark(rtx.RawTx)
	require.NoError(t, err)
	assert.Equal(t, testRemark(), *got)
}

func TestBuildRemarkTx_DustChangeDropped(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	in := fundedUTXO(t, priv, 500, 0x01)

	rtx, err := BuildRemarkTx(&RemarkTxParams{
		Remark:       testRemark(),
		Inputs:       []*UTXO{in},
		ChangeScript: in.ScriptPubKey,
	})
	require.NoError(t, err)
	assert.Nil(t, rtx.ChangeUTXO)
	assert.Equal(t, in.Amount, rtx.Fee)

	parsed, err := transaction.NewTransactionFromBytes(rtx.RawTx)
	require.NoError(t, err)
	assert.Len(t, parsed.Outputs, 1)
}

func TestBuildRemarkTx_MultipleInputs(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	a := fundedUTXO(t, priv, 3000, 0x01)
	b := fundedUTXO(t, priv, 4000, 0x02)

	rtx, err := BuildRemarkTx(&RemarkTxParams{
		Remark:       testRemark(),
		Inputs:       []*UTXO{a, b},
		ChangeScript: a.ScriptPubKey,
	})
	require.NoError(t, err)
	require.NotNil(t, rtx.ChangeUTXO)
	assert.Equal(t, uint64(7000)-rtx.Fee, rtx.ChangeUTXO.Amount)

	_, err = SignRemarkTx(rtx, []*UTXO{a, b})
	require.NoError(t, err)
}

func TestBuildRemarkTx_InsufficientFunds(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	in := fundedUTXO(t, priv, 0, 0x01)

	_, err := BuildRemarkTx(&RemarkTxParams{
		Remark:       testRemark(),
		Inputs:       []*UTXO{in},
		ChangeScript: in.ScriptPubKey,
	})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = BuildRemarkTx(&RemarkTxParams{Remark: testRemark(), ChangeScript: in.ScriptPubKey})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestBuildRemarkTx_BadParams(t *testing.T) {
	priv, _ := generateTestKeyPair(t)
	in := fundedUTXO(t, priv, 10000, 0x01)

	_, err := BuildRemarkTx(nil)
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = BuildRemarkTx(&RemarkTxParams{Remark: testRemark(), Inputs: []*UTXO{in}})
	assert.ErrorIs(t, err, ErrNilParam)

	_, err = BuildRemarkTx(&RemarkTxParams{Remark: Remark{}, Inputs: []*UTXO{in}, ChangeScript: in.ScriptPubKey})
	assert.ErrorIs(t, err, ErrInvalidRemark)

	short := *in
	short.TxID = []byte{0x01}
	_, err = BuildRemarkTx(&RemarkTxParams{Remark: testRemark(), Inputs: []*UTXO{&short}, ChangeScript: in.ScriptPubKey})
	assert.ErrorIs(t, err, ErrScriptBuild)
}

func TestExtractRemark_NotRemark(t *testing.T) {
	priv, pub := generateTestKeyPair(t)
	raw := buildTestUnsignedTx(t, priv, pub)
	_, err := ExtractRemark(raw)
	assert.ErrorIs(t, err, ErrNotRemarkTx)

	_, err = ExtractRemark([]byte{0xff})
	assert.Error(t, err)
}

func TestTxIDFromHex(t *testing.T) {
	display := "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20"
	b, err := TxIDFromHex(display)
	require.NoError(t, err)
	require.Len(t, b, TxIDLen)
	assert.Equal(t, byte(0x20), b[0], "internal order is reversed")
	assert.Equal(t, byte(0x01), b[31])

	_, err = TxIDFromHex("zz")
	assert.ErrorIs(t, err, ErrScriptBuild)
}
