package ledgersync

import (
	"context"
	"errors"
	"sync"

	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/stretchr/testify/mock"
)

type IndexerMock struct {
	mock.Mock
}

func NewIndexerMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *IndexerMock {
	m := &IndexerMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *IndexerMock) ChainHeight(ctx context.Context) (int64, error) {
	ret := m.Called(ctx)
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *IndexerMock) Utxos(ctx context.Context, fingerprint string) ([]wallet.Utxo, error) {
	ret := m.Called(ctx, fingerprint)
	utxos, _ := ret.Get(0).([]wallet.Utxo)
	return utxos, ret.Error(1)
}

func (m *IndexerMock) TxHistory(ctx context.Context, fingerprint string, page, pageSize int) ([]wallet.Tx, error) {
	ret := m.Called(ctx, fingerprint, page, pageSize)
	txs, _ := ret.Get(0).([]wallet.Tx)
	return txs, ret.Error(1)
}

// genesisTable answers lookups from a fixed table and counts calls.
type genesisTable struct {
	mu    sync.Mutex
	infos map[string]wallet.TokenInfo
	calls map[string]int
}

func newGenesisTable(infos ...wallet.TokenInfo) *genesisTable {
	g := &genesisTable{infos: map[string]wallet.TokenInfo{}, calls: map[string]int{}}
	for _, info := range infos {
		g.infos[info.TokenID] = info
	}
	return g
}

func (g *genesisTable) TokenInfo(ctx context.Context, tokenID string) (wallet.TokenInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls[tokenID]++
	info, ok := g.infos[tokenID]
	if !ok {
		return wallet.TokenInfo{}, errors.New("unknown token")
	}
	return info, nil
}
