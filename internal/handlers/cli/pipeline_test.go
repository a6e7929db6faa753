package cli

import (
	"testing"

	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestStartEngineCommand(t *testing.T) {
	t.Run("should fail without an active wallet", func(t *testing.T) {
		a := newTestApp(t)
		a.wallets.On("LoadActive", mock.Anything).Return(wallet.Wallet{}, wallet.ErrWalletNotFound).Once()

		err := a.run(t, "start")
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
	})

	t.Run("should fail when the price poller does not start", func(t *testing.T) {
		a := newTestApp(t)
		a.wallets.On("LoadActive", mock.Anything).Return(testWallet, nil).Once()
		a.prices.On("Start", mock.Anything).Return(assert.AnError).Once()

		err := a.run(t, "start")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("should stop the price poller when the engine does not start", func(t *testing.T) {
		a := newTestApp(t)
		a.wallets.On("LoadActive", mock.Anything).Return(testWallet, nil).Once()
		a.prices.On("Start", mock.Anything).Return(nil).Once()
		a.prices.On("Close").Return().Once()
		a.engine.On("Start", mock.Anything).Return(assert.AnError).Once()

		err := a.run(t, "start")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("should print events until the stream closes", func(t *testing.T) {
		a := newTestApp(t)
		a.wallets.On("LoadActive", mock.Anything).Return(testWallet, nil).Once()
		a.prices.On("Start", mock.Anything).Return(nil).Once()
		a.prices.On("Close").Return().Once()
		a.engine.On("Start", mock.Anything).Return(nil).Once()
		a.engine.On("Activate", mock.Anything, testWallet).Return().Once()
		a.engine.On("Close").Return().Once()

		price := decimal.RequireFromString("0.00003")
		a.events <- notify.BalanceUpdated{State: wallet.State{Balances: wallet.Balances{Total: decimal.NewFromInt(1500)}}}
		a.events <- notify.ValueReceived{Amount: decimal.NewFromInt(1000), Fiat: notify.FiatContext{Currency: "usd", Price: &price}}
		a.events <- notify.ValueReceived{Amount: decimal.NewFromInt(5), Fiat: notify.FiatContext{Currency: "usd"}}
		close(a.events)

		err := a.run(t, "start")
		require.NoError(t, err)

		assert.Equal(t,
			"balance_updated balance=1500 tokens=0\n"+
				"value_received amount=1000 fiat=0.03 usd\n"+
				"value_received amount=5\n",
			a.out.String())
	})
}

func TestSyncOnceCommand(t *testing.T) {
	t.Run("should run one cycle and print balances", func(t *testing.T) {
		a := newTestApp(t)

		synced := testWallet.Clone()
		synced.State = wallet.State{
			Balances: wallet.Balances{Total: decimal.NewFromInt(1500)},
			Tokens: []wallet.TokenHolding{{
				TokenID: "tok1",
				Balance: decimal.RequireFromString("12.5"),
				Info:    wallet.TokenInfo{TokenID: "tok1", Ticker: "TK", Decimals: 2},
			}},
		}

		a.wallets.On("LoadActive", mock.Anything).Return(testWallet, nil).Once()
		a.engine.On("Activate", mock.Anything, testWallet).Return().Once()
		a.engine.On("RunCycle", mock.Anything).Return(nil).Once()
		a.engine.On("Wallet").Return(synced, true).Once()
		a.engine.On("Healthy").Return(true).Once()

		err := a.run(t, "sync")
		require.NoError(t, err)

		assert.Equal(t,
			"wallet abcde (ecash:qqabcde)\n"+
				"balance 1500\n"+
				"token TK 12.5 tok1\n",
			a.out.String())
	})

	t.Run("should mark persisted balances stale and return the cycle error", func(t *testing.T) {
		a := newTestApp(t)

		persisted := testWallet.Clone()
		persisted.State = wallet.State{Balances: wallet.Balances{Total: decimal.NewFromInt(900)}}

		a.wallets.On("LoadActive", mock.Anything).Return(testWallet, nil).Once()
		a.engine.On("Activate", mock.Anything, testWallet).Return().Once()
		a.engine.On("RunCycle", mock.Anything).Return(wallet.ErrBackendUnavailable).Once()
		a.engine.On("Wallet").Return(persisted, true).Once()
		a.engine.On("Healthy").Return(false).Once()

		err := a.run(t, "sync")
		assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
		assert.Equal(t,
			"wallet abcde (ecash:qqabcde)\n"+
				"balance 900 stale\n",
			a.out.String())
	})
}
