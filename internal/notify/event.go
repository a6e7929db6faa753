// Package notify decides when the presentation layer is told about incoming
// funds and delivers the engine's events to it.
package notify

import (
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/shopspring/decimal"
)

// Event is any value published to the presentation layer.
type Event interface {
	eventName() string
}

// FiatContext is the fiat quote attached to value notifications. Price is nil
// while the price feed is unavailable.
type FiatContext struct {
	Currency string
	Price    *decimal.Decimal
}

// Value converts amount to fiat at the quoted price. ok is false when no
// price is available.
func (f FiatContext) Value(amount decimal.Decimal) (decimal.Decimal, bool) {
	if f.Price == nil {
		return decimal.Zero, false
	}
	return amount.Mul(*f.Price), true
}

// Equal reports whether both contexts quote the same currency and price.
func (f FiatContext) Equal(other FiatContext) bool {
	if f.Currency != other.Currency || (f.Price == nil) != (other.Price == nil) {
		return false
	}
	return f.Price == nil || f.Price.Equal(*other.Price)
}

// ValueReceived reports plain value arriving in the wallet, in base units.
type ValueReceived struct {
	Amount decimal.Decimal
	Fiat   FiatContext
}

// TokenReceived reports a token quantity arriving in the wallet, already decimal-shifted.
type TokenReceived struct {
	TokenID string
	Ticker  string
	Name    string
	Amount  decimal.Decimal
}

// SyncFailed reports a sync cycle that did not complete.
type SyncFailed struct {
	Reason error
}

// BalanceUpdated carries a copy of the state produced by a completed cycle.
type BalanceUpdated struct {
	State wallet.State
}

func (ValueReceived) eventName() string  { return "value_received" }
func (TokenReceived) eventName() string  { return "token_received" }
func (SyncFailed) eventName() string     { return "sync_failed" }
func (BalanceUpdated) eventName() string { return "balance_updated" }

// Name returns a stable identifier for e, suitable for logs and metrics.
func Name(e Event) string {
	return e.eventName()
}
