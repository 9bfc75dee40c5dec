package tx

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/script"
	"github.com/bsv-blockchain/go-sdk/transaction"
)

// RemarkFlagBytes prefixes every storage remark: "anch" in ASCII.
var RemarkFlagBytes = []byte{0x61, 0x6e, 0x63, 0x68}

const (
	// RemarkFlag is the string form of RemarkFlagBytes.
	RemarkFlag = "anch"

	// DustLimit is the minimum P2PKH output value in satoshis.
	DustLimit = uint64(546)

	// DefaultFeeRate is the default fee rate in sat/KB.
	DefaultFeeRate = uint64(1)

	// TxIDLen is the length of a transaction ID.
	TxIDLen = 32

	// MaxContentIDLen bounds the content id push.
	MaxContentIDLen = 256

	remarkPushes = 5
)

// Remark is the storage order recorded on the ledger for one content id.
type Remark struct {
	ContentID string
	Size      uint64 // bytes
	ExpiresAt uint64 // unix seconds
	Price     uint64 // smallest unit of the storage token
}

// BuildRemarkData lays out the OP_RETURN pushes for r:
//
//	pushdata[0]: "anch"
//	pushdata[1]: content id (UTF-8)
//	pushdata[2]: size, u64 big-endian
//	pushdata[3]: expiry, unix seconds, u64 big-endian
//	pushdata[4]: price, u64 big-endian
func BuildRemarkData(r Remark) ([][]byte, error) {
	if r.ContentID == "" {
		return nil, fmt.Errorf("%w: empty content id", ErrInvalidRemark)
	}
	if len(r.ContentID) > MaxContentIDLen {
		return nil, fmt.Errorf("%w: content id is %d bytes", ErrInvalidRemark, len(r.ContentID))
	}
	return [][]byte{
		RemarkFlagBytes,
		[]byte(r.ContentID),
		be64(r.Size),
		be64(r.ExpiresAt),
		be64(r.Price),
	}, nil
}

// ParseRemarkData is the inverse of BuildRemarkData.
func ParseRemarkData(pushes [][]byte) (*Remark, error) {
	if len(pushes) != remarkPushes {
		return nil, fmt.Errorf("%w: expected %d data pushes, got %d", ErrInvalidOPReturn, remarkPushes, len(pushes))
	}
	if !bytes.Equal(pushes[0], RemarkFlagBytes) {
		return nil, ErrNotRemarkTx
	}
	if len(pushes[1]) == 0 || len(pushes[1]) > MaxContentIDLen {
		return nil, fmt.Errorf("%w: content id length %d", ErrInvalidOPReturn, len(pushes[1]))
	}
	for i := 2; i < remarkPushes; i++ {
		if len(pushes[i]) != 8 {
			return nil, fmt.Errorf("%w: push %d must be 8 bytes, got %d", ErrInvalidOPReturn, i, len(pushes[i]))
		}
	}
	return &Remark{
		ContentID: string(pushes[1]),
		Size:      binary.BigEndian.Uint64(pushes[2]),
		ExpiresAt: binary.BigEndian.Uint64(pushes[3]),
		Price:     binary.BigEndian.Uint64(pushes[4]),
	}, nil
}

// ExtractRemark finds the storage remark in a serialized transaction.
func ExtractRemark(rawTx []byte) (*Remark, error) {
	t, err := transaction.NewTransactionFromBytes(rawTx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOPReturn, err)
	}
	for _, out := range t.Outputs {
		if out.LockingScript == nil || !out.LockingScript.IsData() {
			continue
		}
		pushes, err := dataPushes(out.LockingScript)
		if err != nil {
			continue
		}
		r, err := ParseRemarkData(pushes)
		if err != nil {
			continue
		}
		return r, nil
	}
	return nil, ErrNotRemarkTx
}

// dataPushes returns the pushed data following OP_FALSE OP_RETURN. The
// pushes are decoded directly because script chunking treats everything
// after OP_RETURN as one opaque chunk.
func dataPushes(s *script.Script) ([][]byte, error) {
	b := []byte(*s)
	if len(b) > 0 && b[0] == script.Op0 {
		b = b[1:]
	}
	if len(b) == 0 || b[0] != script.OpRETURN {
		return nil, ErrInvalidOPReturn
	}
	b = b[1:]

	var pushes [][]byte
	for len(b) > 0 {
		op := b[0]
		b = b[1:]
		var n int
		switch {
		case op == script.Op0:
			pushes = append(pushes, []byte{})
			continue
		case op < script.OpPUSHDATA1:
			n = int(op)
		case op == script.OpPUSHDATA1:
			if len(b) < 1 {
				return nil, ErrInvalidOPReturn
			}
			n, b = int(b[0]), b[1:]
		case op == script.OpPUSHDATA2:
			if len(b) < 2 {
				return nil, ErrInvalidOPReturn
			}
			n, b = int(binary.LittleEndian.Uint16(b)), b[2:]
		case op == script.OpPUSHDATA4:
			if len(b) < 4 {
				return nil, ErrInvalidOPReturn
			}
			n, b = int(binary.LittleEndian.Uint32(b)), b[4:]
		default:
			return nil, fmt.Errorf("%w: unexpected opcode 0x%02x", ErrInvalidOPReturn, op)
		}
		if n < 0 || n > len(b) {
			return nil, fmt.Errorf("%w: push overruns script", ErrInvalidOPReturn)
		}
		pushes = append(pushes, b[:n])
		b = b[n:]
	}
	return pushes, nil
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// EstimateFee returns ceil(txSizeBytes * feeRate / 1000). A zero rate
// uses DefaultFeeRate.
func EstimateFee(txSizeBytes int, feeRate uint64) uint64 {
	if feeRate == 0 {
		feeRate = DefaultFeeRate
	}
	return (uint64(txSizeBytes)*feeRate + 999) / 1000
}

// EstimateRemarkTxSize estimates the signed size of a remark transaction
// with the given number of P2PKH inputs, an optional change output and the
// given OP_RETURN pushes.
func EstimateRemarkTxSize(numInputs int, withChange bool, pushes [][]byte) int {
	// version + locktime + two single-byte varints
	size := 10
	// prevout(36) + script len(1) + sig/pubkey script(~107) + sequence(4)
	size += numInputs * 148
	if withChange {
		size += 34
	}
	data := 2 // OP_FALSE OP_RETURN
	for _, p := range pushes {
		data += pushHeaderLen(len(p)) + len(p)
	}
	// value(8) + script length varint
	size += 8 + varIntLen(data) + data
	return size
}

func pushHeaderLen(n int) int {
	switch {
	case n < int(script.OpPUSHDATA1):
		return 1
	case n <= 0xff:
		return 2
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}

func varIntLen(n int) int {
	switch {
	case n < 0xfd:
		return 1
	case n <= 0xffff:
		return 3
	default:
		return 5
	}
}
