package ledgersync

import (
	"errors"
	"testing"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/tokencache"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = logger.Init(logger.WithLevel("error"))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testWallet() wallet.Wallet {
	return wallet.Wallet{
		Mnemonic: "abandon abandon about",
		Name:     "savings",
		Accounts: map[string]wallet.Account{
			wallet.PathLegacy:    {PublicKey: "02aa", Hash160: "h145"},
			wallet.PathMigration: {PublicKey: "02bb", Hash160: "h245"},
			wallet.PathCurrent:   {PublicKey: "02cc", Hash160: "h1899"},
		},
	}
}

var (
	tokenA = wallet.TokenInfo{TokenID: "a", Ticker: "AAA", Name: "Alpha", Decimals: 2}
	tokenB = wallet.TokenInfo{TokenID: "b", Ticker: "BBB", Name: "Beta", Decimals: 0}
	tokenH = wallet.TokenInfo{TokenID: "h", Ticker: "HHH", Name: "History only", Decimals: 1}
)

func newTestService(t *testing.T, genesis *genesisTable, indexers ...Indexer) *service {
	endpoints := make([]Endpoint, len(indexers))
	for i, idx := range indexers {
		endpoints[i] = Endpoint{URL: string(rune('a' + i)), Indexer: idx}
	}

	pool, err := NewEndpointPool(endpoints...)
	require.NoError(t, err)

	return New(pool, tokencache.NewResolver(genesis, tokencache.WithRateLimit(1000)), WithHistoryPageSize(3))
}

func TestService_Sync(t *testing.T) {
	t.Run("assembles the full state", func(t *testing.T) {
		indexer := NewIndexerMock(t)
		genesis := newGenesisTable(tokenA, tokenB, tokenH)
		svc := newTestService(t, genesis, indexer)

		indexer.On("ChainHeight", mock.Anything).Return(int64(800000), nil).Once()
		indexer.On("Utxos", mock.Anything, "h245").Return([]wallet.Utxo{
			{TxID: "u1", Value: dec("1000.5")},
		}, nil).Once()
		indexer.On("Utxos", mock.Anything, "h145").Return([]wallet.Utxo{
			{TxID: "u2", Value: dec("546"), Token: &wallet.TokenAmount{TokenID: "b", Amount: dec("3")}},
			{TxID: "u3", Value: dec("546"), Token: &wallet.TokenAmount{TokenID: "a", Amount: dec("150")}},
		}, nil).Once()
		indexer.On("Utxos", mock.Anything, "h1899").Return([]wallet.Utxo{
			{TxID: "u4", Value: dec("0.25")},
			{TxID: "u5", Value: dec("546"), Token: &wallet.TokenAmount{TokenID: "a", Amount: dec("100")}},
		}, nil).Once()

		indexer.On("TxHistory", mock.Anything, "h245", 0, 3).Return([]wallet.Tx{
			{TxID: "t1", BlockHeight: 10, Outputs: []wallet.TxOutput{{Fingerprint: "h245", Value: dec("1000.5")}}},
		}, nil).Once()
		indexer.On("TxHistory", mock.Anything, "h145", 0, 3).Return([]wallet.Tx{
			{TxID: "t2", BlockHeight: 0, Outputs: []wallet.TxOutput{{Fingerprint: "h145", Token: &wallet.TokenAmount{TokenID: "h", Amount: dec("5")}}}},
			{TxID: "t1", BlockHeight: 10, Outputs: []wallet.TxOutput{{Fingerprint: "h245", Value: dec("1000.5")}}},
		}, nil).Once()
		indexer.On("TxHistory", mock.Anything, "h1899", 0, 3).Return([]wallet.Tx{
			{TxID: "t3", BlockHeight: 12},
			{TxID: "t4", BlockHeight: 5},
		}, nil).Once()

		res, err := svc.Sync(t.Context(), testWallet(), wallet.TokenCache{"b": tokenB})
		require.NoError(t, err)

		state := res.State
		assert.True(t, state.Balances.Total.Equal(dec("1000.75")))
		assert.Len(t, state.Utxos.Plain, 2)
		assert.Len(t, state.Utxos.TokenBearing, 3)
		assert.Equal(t, "h245", state.Utxos.Plain[0].Fingerprint)
		assert.Equal(t, "h1899", state.Utxos.Plain[1].Fingerprint)

		require.Len(t, state.Tokens, 2)
		assert.Equal(t, "b", state.Tokens[0].TokenID)
		assert.True(t, state.Tokens[0].Balance.Equal(dec("3")))
		assert.Equal(t, "a", state.Tokens[1].TokenID)
		assert.True(t, state.Tokens[1].Balance.Equal(dec("2.5")))

		require.Len(t, state.TxHistory, 3)
		assert.Equal(t, []string{"t2", "t3", "t1"}, []string{state.TxHistory[0].TxID, state.TxHistory[1].TxID, state.TxHistory[2].TxID})
		require.NotNil(t, state.TxHistory[0].Token.Info)
		assert.Equal(t, "HHH", state.TxHistory[0].Token.Info.Ticker)

		assert.True(t, res.CacheChanged)
		assert.Equal(t, wallet.TokenCache{"a": tokenA, "b": tokenB, "h": tokenH}, res.Cache)
		assert.Equal(t, 0, genesis.calls["b"], "cached token must not be looked up")
		assert.Equal(t, 1, genesis.calls["a"])
	})

	t.Run("unchanged cache", func(t *testing.T) {
		indexer := NewIndexerMock(t)
		genesis := newGenesisTable()
		svc := newTestService(t, genesis, indexer)

		indexer.On("ChainHeight", mock.Anything).Return(int64(1), nil).Once()
		for _, fp := range []string{"h245", "h145", "h1899"} {
			indexer.On("Utxos", mock.Anything, fp).Return([]wallet.Utxo{
				{TxID: "u-" + fp, Value: dec("1"), Token: &wallet.TokenAmount{TokenID: "a", Amount: dec("1")}},
			}, nil).Once()
		}
		indexer.On("TxHistory", mock.Anything, mock.Anything, 0, 3).Return([]wallet.Tx{}, nil).Times(3)

		res, err := svc.Sync(t.Context(), testWallet(), wallet.TokenCache{"a": tokenA})
		require.NoError(t, err)

		assert.False(t, res.CacheChanged)
		assert.Empty(t, genesis.calls)
	})

	t.Run("unresolved tokens and zero balances are omitted", func(t *testing.T) {
		indexer := NewIndexerMock(t)
		svc := newTestService(t, newGenesisTable(tokenB), indexer)

		indexer.On("ChainHeight", mock.Anything).Return(int64(1), nil).Once()
		indexer.On("Utxos", mock.Anything, "h245").Return([]wallet.Utxo{
			{TxID: "u1", Token: &wallet.TokenAmount{TokenID: "unknown", Amount: dec("10")}},
			{TxID: "u2", Token: &wallet.TokenAmount{TokenID: "b", IsMintBaton: true, Amount: decimal.Zero}},
		}, nil).Once()
		indexer.On("Utxos", mock.Anything, mock.Anything).Return(nil, nil).Twice()
		indexer.On("TxHistory", mock.Anything, mock.Anything, 0, 3).Return(nil, nil).Times(3)

		res, err := svc.Sync(t.Context(), testWallet(), nil)
		require.NoError(t, err)

		assert.Empty(t, res.State.Tokens)
		assert.True(t, res.State.Balances.Total.IsZero())
		assert.Len(t, res.State.Utxos.TokenBearing, 2)
	})

	t.Run("liveness probe failure", func(t *testing.T) {
		indexer := NewIndexerMock(t)
		svc := newTestService(t, newGenesisTable(), indexer)

		indexer.On("ChainHeight", mock.Anything).Return(int64(0), errors.New("connection refused")).Once()

		_, err := svc.Sync(t.Context(), testWallet(), nil)

		assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
		indexer.AssertNotCalled(t, "Utxos", mock.Anything, mock.Anything)
	})

	t.Run("utxo fetch failure fails the whole sync", func(t *testing.T) {
		indexer := NewIndexerMock(t)
		svc := newTestService(t, newGenesisTable(), indexer)

		indexer.On("ChainHeight", mock.Anything).Return(int64(1), nil).Once()
		indexer.On("Utxos", mock.Anything, "h245").Return(nil, errors.New("502")).Maybe()
		indexer.On("Utxos", mock.Anything, mock.Anything).Return(nil, nil).Maybe()

		res, err := svc.Sync(t.Context(), testWallet(), nil)

		assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
		assert.Equal(t, Result{}, res)
	})

	t.Run("history fetch failure fails the whole sync", func(t *testing.T) {
		indexer := NewIndexerMock(t)
		svc := newTestService(t, newGenesisTable(), indexer)

		indexer.On("ChainHeight", mock.Anything).Return(int64(1), nil).Once()
		indexer.On("Utxos", mock.Anything, mock.Anything).Return(nil, nil).Times(3)
		indexer.On("TxHistory", mock.Anything, mock.Anything, 0, 3).Return(nil, errors.New("timeout")).Maybe()

		_, err := svc.Sync(t.Context(), testWallet(), nil)
		assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
	})

	t.Run("legacy wallet is rejected", func(t *testing.T) {
		indexer := NewIndexerMock(t)
		svc := newTestService(t, newGenesisTable(), indexer)

		w := testWallet()
		delete(w.Accounts, wallet.PathCurrent)

		_, err := svc.Sync(t.Context(), w, nil)
		assert.ErrorIs(t, err, wallet.ErrMigrationRequired)
	})
}

func TestService_Failover(t *testing.T) {
	down := func() *IndexerMock {
		m := NewIndexerMock(t)
		m.On("ChainHeight", mock.Anything).Return(int64(0), errors.New("down")).Once()
		return m
	}

	first, second, third := down(), down(), down()
	svc := newTestService(t, newGenesisTable(), first, second, third)

	for _, want := range []int{1, 2, 0} {
		_, err := svc.Sync(t.Context(), testWallet(), nil)
		require.ErrorIs(t, err, wallet.ErrBackendUnavailable)
		assert.Equal(t, want, svc.Failover(t.Context()))
	}

	idx, _ := svc.pool.Current()
	assert.Equal(t, 0, idx)
}
