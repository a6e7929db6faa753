package wallet

import (
	"github.com/gabapcia/walletsync/internal/pkg/types"

	"github.com/shopspring/decimal"
)

// TxOutput is one side of a transaction: an input being spent or an output being created.
type TxOutput struct {
	Fingerprint string
	Value       decimal.Decimal
	Token       *TokenAmount
}

// Tx is a transaction as reported by the indexer.
type Tx struct {
	TxID        string
	Inputs      []TxOutput
	Outputs     []TxOutput
	Timestamp   int64
	BlockHeight int64
}

// ParsedToken is the token movement of a parsed transaction.
type ParsedToken struct {
	TokenID string
	Amount  decimal.Decimal
	Info    *TokenInfo
}

// ParsedTx is a transaction classified relative to a wallet.
type ParsedTx struct {
	TxID        string
	Incoming    bool
	Amount      decimal.Decimal
	Token       *ParsedToken
	Timestamp   int64
	BlockHeight int64
}

// Involves reports whether the parsed transaction moved anything for the wallet.
func (p ParsedTx) Involves() bool {
	return p.Amount.IsPositive() || (p.Token != nil && p.Token.Amount.IsPositive())
}

// ParseTx classifies tx against the wallet fingerprints. A transaction is
// incoming when none of its inputs belong to the wallet. Amounts count the
// outputs received by the wallet for incoming transactions and the outputs
// sent elsewhere for outgoing ones. Token info is left unset.
func ParseTx(tx Tx, fingerprints types.Set[string]) ParsedTx {
	incoming := true
	for _, in := range tx.Inputs {
		if fingerprints.Has(in.Fingerprint) {
			incoming = false
			break
		}
	}

	parsed := ParsedTx{
		TxID:        tx.TxID,
		Incoming:    incoming,
		Amount:      decimal.Zero,
		Timestamp:   tx.Timestamp,
		BlockHeight: tx.BlockHeight,
	}

	for _, out := range tx.Outputs {
		if fingerprints.Has(out.Fingerprint) != incoming {
			continue
		}

		if out.Token == nil {
			parsed.Amount = parsed.Amount.Add(out.Value)
			continue
		}

		if parsed.Token == nil {
			parsed.Token = &ParsedToken{TokenID: out.Token.TokenID, Amount: decimal.Zero}
		}
		if parsed.Token.TokenID == out.Token.TokenID {
			parsed.Token.Amount = parsed.Token.Amount.Add(out.Token.Amount)
		}
	}

	return parsed
}

// TokenIDs returns the ids of every token moved in txs.
func TokenIDs(txs []ParsedTx) types.Set[string] {
	ids := types.NewSet[string]()
	for _, tx := range txs {
		if tx.Token != nil {
			ids.Add(tx.Token.TokenID)
		}
	}
	return ids
}
