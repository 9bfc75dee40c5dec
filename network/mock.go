package network

import "context"

// MockBlockchainService is a BlockchainService made of function fields.
// Unset fields behave like an empty node: no outputs, unknown
// transactions and rejected broadcasts.
type MockBlockchainService struct {
	ListUnspentFn   func(ctx context.Context, address string) ([]*UTXO, error)
	BroadcastTxFn   func(ctx context.Context, rawTxHex string) (string, error)
	GetTxStatusFn   func(ctx context.Context, txid string) (*TxStatus, error)
	GetChainInfoFn  func(ctx context.Context) (*ChainInfo, error)
	ImportAddressFn func(ctx context.Context, address string) error
}

var _ BlockchainService = (*MockBlockchainService)(nil)

func (m *MockBlockchainService) ListUnspent(ctx context.Context, address string) ([]*UTXO, error) {
	if m.ListUnspentFn != nil {
		return m.ListUnspentFn(ctx, address)
	}
	return nil, nil
}

func (m *MockBlockchainService) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	if m.BroadcastTxFn != nil {
		return m.BroadcastTxFn(ctx, rawTxHex)
	}
	return "", ErrBroadcastRejected
}

func (m *MockBlockchainService) GetTxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	if m.GetTxStatusFn != nil {
		return m.GetTxStatusFn(ctx, txid)
	}
	return nil, ErrTxNotFound
}

func (m *MockBlockchainService) GetChainInfo(ctx context.Context) (*ChainInfo, error) {
	if m.GetChainInfoFn != nil {
		return m.GetChainInfoFn(ctx)
	}
	return &ChainInfo{Chain: "regtest"}, nil
}

func (m *MockBlockchainService) ImportAddress(ctx context.Context, address string) error {
	if m.ImportAddressFn != nil {
		return m.ImportAddressFn(ctx, address)
	}
	return nil
}
