package ledgersync

import (
	"context"

	"github.com/gabapcia/walletsync/internal/wallet"
)

// Indexer is the remote ledger-indexing service, one per endpoint.
type Indexer interface {
	// ChainHeight is the liveness probe.
	ChainHeight(ctx context.Context) (int64, error)

	// Utxos returns the unspent outputs locked to fingerprint.
	Utxos(ctx context.Context, fingerprint string) ([]wallet.Utxo, error)

	// TxHistory returns one page of transactions touching fingerprint, newest first.
	TxHistory(ctx context.Context, fingerprint string, page, pageSize int) ([]wallet.Tx, error)
}
