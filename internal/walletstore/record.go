package walletstore

import (
	"fmt"

	"github.com/gabapcia/walletsync/internal/pkg/validator"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/shopspring/decimal"
)

// Persisted shapes. Decimal fields are stored as strings and parsed back by
// the hydrate functions; nothing reads a decimal off a record directly.

type accountRecord struct {
	PublicKey  string `json:"publicKey"`
	Hash160    string `json:"hash160"`
	Address    string `json:"address"`
	SigningKey string `json:"signingKey"`
}

type tokenInfoRecord struct {
	TokenID  string `json:"tokenId" validate:"required"`
	Ticker   string `json:"ticker"`
	Name     string `json:"name"`
	Decimals int32  `json:"decimals" validate:"min=0,max=18"`
}

type tokenAmountRecord struct {
	TokenID     string `json:"tokenId"`
	Amount      string `json:"amount" validate:"decimal"`
	IsMintBaton bool   `json:"isMintBaton"`
}

type utxoRecord struct {
	TxID        string             `json:"txid"`
	OutIdx      uint32             `json:"outIdx"`
	Value       string             `json:"value" validate:"decimal"`
	BlockHeight int64              `json:"blockHeight"`
	Fingerprint string             `json:"fingerprint"`
	Token       *tokenAmountRecord `json:"token,omitempty"`
}

type tokenHoldingRecord struct {
	TokenID string          `json:"tokenId"`
	Balance string          `json:"balance"`
	Info    tokenInfoRecord `json:"info"`
}

type parsedTokenRecord struct {
	TokenID string           `json:"tokenId"`
	Amount  string           `json:"amount"`
	Info    *tokenInfoRecord `json:"info,omitempty"`
}

type parsedTxRecord struct {
	TxID        string             `json:"txid"`
	Incoming    bool               `json:"incoming"`
	Amount      string             `json:"amount"`
	Token       *parsedTokenRecord `json:"token,omitempty"`
	Timestamp   int64              `json:"timestamp"`
	BlockHeight int64              `json:"blockHeight"`
}

type stateRecord struct {
	Balance      string               `json:"balance" validate:"decimal"`
	Plain        []utxoRecord         `json:"plainUtxos" validate:"dive"`
	TokenBearing []utxoRecord         `json:"tokenUtxos" validate:"dive"`
	Tokens       []tokenHoldingRecord `json:"tokens"`
	TxHistory    []parsedTxRecord     `json:"txHistory"`
}

type walletRecord struct {
	Mnemonic string                   `json:"mnemonic" validate:"required"`
	Name     string                   `json:"name" validate:"required"`
	Accounts map[string]accountRecord `json:"accounts"`
	State    *stateRecord             `json:"state,omitempty"`
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s: %w", wallet.ErrInvalidRecord, field, err)
	}
	return d, nil
}

func newWalletRecord(w wallet.Wallet) walletRecord {
	accounts := make(map[string]accountRecord, len(w.Accounts))
	for path, acc := range w.Accounts {
		accounts[path] = accountRecord(acc)
	}

	return walletRecord{
		Mnemonic: w.Mnemonic,
		Name:     w.Name,
		Accounts: accounts,
		State:    newStateRecord(w.State),
	}
}

func newStateRecord(s wallet.State) *stateRecord {
	rec := &stateRecord{
		Balance:      s.Balances.Total.String(),
		Plain:        newUtxoRecords(s.Utxos.Plain),
		TokenBearing: newUtxoRecords(s.Utxos.TokenBearing),
	}

	for _, t := range s.Tokens {
		rec.Tokens = append(rec.Tokens, tokenHoldingRecord{
			TokenID: t.TokenID,
			Balance: t.Balance.String(),
			Info:    tokenInfoRecord(t.Info),
		})
	}

	for _, tx := range s.TxHistory {
		txRec := parsedTxRecord{
			TxID:        tx.TxID,
			Incoming:    tx.Incoming,
			Amount:      tx.Amount.String(),
			Timestamp:   tx.Timestamp,
			BlockHeight: tx.BlockHeight,
		}
		if tx.Token != nil {
			txRec.Token = &parsedTokenRecord{TokenID: tx.Token.TokenID, Amount: tx.Token.Amount.String()}
			if tx.Token.Info != nil {
				info := tokenInfoRecord(*tx.Token.Info)
				txRec.Token.Info = &info
			}
		}
		rec.TxHistory = append(rec.TxHistory, txRec)
	}

	return rec
}

func newUtxoRecords(utxos []wallet.Utxo) []utxoRecord {
	records := make([]utxoRecord, 0, len(utxos))
	for _, u := range utxos {
		rec := utxoRecord{
			TxID:        u.TxID,
			OutIdx:      u.OutIdx,
			Value:       u.Value.String(),
			BlockHeight: u.BlockHeight,
			Fingerprint: u.Fingerprint,
		}
		if u.Token != nil {
			rec.Token = &tokenAmountRecord{
				TokenID:     u.Token.TokenID,
				Amount:      u.Token.Amount.String(),
				IsMintBaton: u.Token.IsMintBaton,
			}
		}
		records = append(records, rec)
	}
	return records
}

// hydrate validates the record and rebuilds the wallet with every decimal
// field parsed back into a decimal.Decimal.
func (r walletRecord) hydrate() (wallet.Wallet, error) {
	if err := validator.Validate(r); err != nil {
		return wallet.Wallet{}, fmt.Errorf("%w: %w", wallet.ErrInvalidRecord, err)
	}

	w := wallet.Wallet{
		Mnemonic: r.Mnemonic,
		Name:     r.Name,
		Accounts: make(map[string]wallet.Account, len(r.Accounts)),
		State:    wallet.State{Balances: wallet.Balances{Total: decimal.Zero}},
	}
	for path, acc := range r.Accounts {
		w.Accounts[path] = wallet.Account(acc)
	}

	if r.State == nil {
		return w, nil
	}

	state, err := r.State.hydrate()
	if err != nil {
		return wallet.Wallet{}, fmt.Errorf("wallet %s: %w", r.Name, err)
	}
	w.State = state

	return w, nil
}

func (r stateRecord) hydrate() (wallet.State, error) {
	var (
		state wallet.State
		err   error
	)

	if state.Balances.Total, err = parseDecimal("balance", r.Balance); err != nil {
		return wallet.State{}, err
	}
	if state.Utxos.Plain, err = hydrateUtxos(r.Plain); err != nil {
		return wallet.State{}, err
	}
	if state.Utxos.TokenBearing, err = hydrateUtxos(r.TokenBearing); err != nil {
		return wallet.State{}, err
	}

	for _, t := range r.Tokens {
		balance, err := parseDecimal("token balance", t.Balance)
		if err != nil {
			return wallet.State{}, err
		}
		state.Tokens = append(state.Tokens, wallet.TokenHolding{
			TokenID: t.TokenID,
			Balance: balance,
			Info:    wallet.TokenInfo(t.Info),
		})
	}

	for _, txRec := range r.TxHistory {
		amount, err := parseDecimal("tx amount", txRec.Amount)
		if err != nil {
			return wallet.State{}, err
		}

		tx := wallet.ParsedTx{
			TxID:        txRec.TxID,
			Incoming:    txRec.Incoming,
			Amount:      amount,
			Timestamp:   txRec.Timestamp,
			BlockHeight: txRec.BlockHeight,
		}
		if txRec.Token != nil {
			tokenAmount, err := parseDecimal("tx token amount", txRec.Token.Amount)
			if err != nil {
				return wallet.State{}, err
			}
			tx.Token = &wallet.ParsedToken{TokenID: txRec.Token.TokenID, Amount: tokenAmount}
			if txRec.Token.Info != nil {
				info := wallet.TokenInfo(*txRec.Token.Info)
				tx.Token.Info = &info
			}
		}
		state.TxHistory = append(state.TxHistory, tx)
	}

	return state, nil
}

func hydrateUtxos(records []utxoRecord) ([]wallet.Utxo, error) {
	utxos := make([]wallet.Utxo, 0, len(records))
	for _, rec := range records {
		value, err := parseDecimal("utxo value", rec.Value)
		if err != nil {
			return nil, err
		}

		u := wallet.Utxo{
			TxID:        rec.TxID,
			OutIdx:      rec.OutIdx,
			Value:       value,
			BlockHeight: rec.BlockHeight,
			Fingerprint: rec.Fingerprint,
		}
		if rec.Token != nil {
			amount, err := parseDecimal("utxo token amount", rec.Token.Amount)
			if err != nil {
				return nil, err
			}
			u.Token = &wallet.TokenAmount{TokenID: rec.Token.TokenID, Amount: amount, IsMintBaton: rec.Token.IsMintBaton}
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

type tokenCacheRecord map[string]tokenInfoRecord

func newTokenCacheRecord(cache wallet.TokenCache) tokenCacheRecord {
	rec := make(tokenCacheRecord, len(cache))
	for id, info := range cache {
		rec[id] = tokenInfoRecord(info)
	}
	return rec
}

func (r tokenCacheRecord) hydrate() (wallet.TokenCache, error) {
	cache := make(wallet.TokenCache, len(r))
	for id, info := range r {
		if err := validator.Validate(info); err != nil {
			return nil, fmt.Errorf("%w: token %s: %w", wallet.ErrInvalidRecord, id, err)
		}
		cache[id] = wallet.TokenInfo(info)
	}
	return cache, nil
}
