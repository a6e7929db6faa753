package wallet

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Balances aggregates plain output values, in base units.
type Balances struct {
	Total decimal.Decimal
}

// Utxos splits the unspent set by output classification.
type Utxos struct {
	Plain        []Utxo
	TokenBearing []Utxo
}

// State is recomputed from the unspent set on every sync cycle.
type State struct {
	Balances  Balances
	Utxos     Utxos
	Tokens    []TokenHolding
	TxHistory []ParsedTx
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	s.Utxos.Plain = cloneUtxos(s.Utxos.Plain)
	s.Utxos.TokenBearing = cloneUtxos(s.Utxos.TokenBearing)
	s.Tokens = slices.Clone(s.Tokens)

	history := make([]ParsedTx, len(s.TxHistory))
	for i, tx := range s.TxHistory {
		if tx.Token != nil {
			token := *tx.Token
			tx.Token = &token
		}
		history[i] = tx
	}
	if s.TxHistory == nil {
		history = nil
	}
	s.TxHistory = history

	return s
}

func cloneUtxos(utxos []Utxo) []Utxo {
	if utxos == nil {
		return nil
	}

	out := make([]Utxo, len(utxos))
	for i, u := range utxos {
		if u.Token != nil {
			token := *u.Token
			u.Token = &token
		}
		out[i] = u
	}
	return out
}

// Utxo is an unspent output owned by one of the wallet fingerprints.
type Utxo struct {
	TxID        string
	OutIdx      uint32
	Value       decimal.Decimal
	BlockHeight int64
	Fingerprint string
	Token       *TokenAmount
}

// IsTokenBearing reports whether the output carries a token quantity.
func (u Utxo) IsTokenBearing() bool {
	return u.Token != nil
}

// TokenAmount is a raw token quantity, before the decimal shift.
type TokenAmount struct {
	TokenID     string
	Amount      decimal.Decimal
	IsMintBaton bool
}
