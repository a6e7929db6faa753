package indexer

import (
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/shopspring/decimal"
)

// Amounts travel as strings to keep them exact.
type (
	tokenResponse struct {
		TokenID     string `json:"tokenId"`
		Amount      string `json:"amount"`
		IsMintBaton bool   `json:"isMintBaton"`
	}

	utxoResponse struct {
		TxID        string         `json:"txid"`
		OutIdx      uint32         `json:"outIdx"`
		Value       string         `json:"value"`
		BlockHeight int64          `json:"blockHeight"`
		Token       *tokenResponse `json:"token"`
	}

	outputResponse struct {
		Hash160 string         `json:"hash160"`
		Value   string         `json:"value"`
		Token   *tokenResponse `json:"token"`
	}

	txResponse struct {
		TxID          string           `json:"txid"`
		Inputs        []outputResponse `json:"inputs"`
		Outputs       []outputResponse `json:"outputs"`
		TimeFirstSeen int64            `json:"timeFirstSeen"`
		BlockHeight   int64            `json:"blockHeight"`
	}

	genesisResponse struct {
		Ticker   string `json:"ticker"`
		Name     string `json:"name"`
		Decimals int32  `json:"decimals"`
	}
)

func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func (t *tokenResponse) toTokenAmount() (*wallet.TokenAmount, error) {
	if t == nil {
		return nil, nil
	}

	amount, err := parseAmount(t.Amount)
	if err != nil {
		return nil, err
	}

	return &wallet.TokenAmount{
		TokenID:     t.TokenID,
		Amount:      amount,
		IsMintBaton: t.IsMintBaton,
	}, nil
}

func (u utxoResponse) toUtxo() (wallet.Utxo, error) {
	value, err := parseAmount(u.Value)
	if err != nil {
		return wallet.Utxo{}, err
	}

	token, err := u.Token.toTokenAmount()
	if err != nil {
		return wallet.Utxo{}, err
	}

	return wallet.Utxo{
		TxID:        u.TxID,
		OutIdx:      u.OutIdx,
		Value:       value,
		BlockHeight: u.BlockHeight,
		Token:       token,
	}, nil
}

func (o outputResponse) toTxOutput() (wallet.TxOutput, error) {
	value, err := parseAmount(o.Value)
	if err != nil {
		return wallet.TxOutput{}, err
	}

	token, err := o.Token.toTokenAmount()
	if err != nil {
		return wallet.TxOutput{}, err
	}

	return wallet.TxOutput{
		Fingerprint: o.Hash160,
		Value:       value,
		Token:       token,
	}, nil
}

func (t txResponse) toTx() (wallet.Tx, error) {
	tx := wallet.Tx{
		TxID:        t.TxID,
		Inputs:      make([]wallet.TxOutput, 0, len(t.Inputs)),
		Outputs:     make([]wallet.TxOutput, 0, len(t.Outputs)),
		Timestamp:   t.TimeFirstSeen,
		BlockHeight: t.BlockHeight,
	}

	for _, in := range t.Inputs {
		out, err := in.toTxOutput()
		if err != nil {
			return wallet.Tx{}, err
		}
		tx.Inputs = append(tx.Inputs, out)
	}

	for _, o := range t.Outputs {
		out, err := o.toTxOutput()
		if err != nil {
			return wallet.Tx{}, err
		}
		tx.Outputs = append(tx.Outputs, out)
	}

	return tx, nil
}
