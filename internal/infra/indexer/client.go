// Package indexer talks to the remote ledger indexer: JSON-RPC over HTTP for
// queries and a websocket for push subscriptions.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gabapcia/walletsync/internal/eventchannel"
	"github.com/gabapcia/walletsync/internal/ledgersync"
	"github.com/gabapcia/walletsync/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/walletsync/internal/tokencache"
	"github.com/gabapcia/walletsync/internal/wallet"
)

const (
	methodChainHeight   = "chain.height"
	methodScriptUtxos   = "script.utxos"
	methodScriptHistory = "script.history"
	methodTx            = "tx.get"
	methodTokenGenesis  = "token.genesis"
)

type client struct {
	conn jsonrpc.Client
}

var (
	_ ledgersync.Indexer       = (*client)(nil)
	_ eventchannel.TxLookup    = (*client)(nil)
	_ tokencache.GenesisLookup = (*client)(nil)
)

func (c *client) ChainHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := c.call(ctx, &height, methodChainHeight); err != nil {
		return 0, err
	}
	return height, nil
}

func (c *client) Utxos(ctx context.Context, fingerprint string) ([]wallet.Utxo, error) {
	var res []utxoResponse
	if err := c.call(ctx, &res, methodScriptUtxos, fingerprint); err != nil {
		return nil, err
	}

	utxos := make([]wallet.Utxo, 0, len(res))
	for _, u := range res {
		utxo, err := u.toUtxo()
		if err != nil {
			return nil, fmt.Errorf("utxo %s:%d: %w", u.TxID, u.OutIdx, err)
		}
		utxos = append(utxos, utxo)
	}
	return utxos, nil
}

func (c *client) TxHistory(ctx context.Context, fingerprint string, page, pageSize int) ([]wallet.Tx, error) {
	var res []txResponse
	if err := c.call(ctx, &res, methodScriptHistory, fingerprint, page, pageSize); err != nil {
		return nil, err
	}

	txs := make([]wallet.Tx, 0, len(res))
	for _, t := range res {
		tx, err := t.toTx()
		if err != nil {
			return nil, fmt.Errorf("tx %s: %w", t.TxID, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (c *client) Tx(ctx context.Context, txid string) (wallet.Tx, error) {
	var res txResponse
	if err := c.call(ctx, &res, methodTx, txid); err != nil {
		return wallet.Tx{}, err
	}
	return res.toTx()
}

func (c *client) TokenInfo(ctx context.Context, tokenID string) (wallet.TokenInfo, error) {
	var res genesisResponse
	if err := c.call(ctx, &res, methodTokenGenesis, tokenID); err != nil {
		return wallet.TokenInfo{}, err
	}

	return wallet.TokenInfo{
		TokenID:  tokenID,
		Ticker:   res.Ticker,
		Name:     res.Name,
		Decimals: res.Decimals,
	}, nil
}

func (c *client) call(ctx context.Context, v any, method string, params ...any) error {
	raw, err := c.conn.Fetch(ctx, method, params...)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// NewClient returns an indexer client over conn.
func NewClient(conn jsonrpc.Client) *client {
	return &client{
		conn: conn,
	}
}
