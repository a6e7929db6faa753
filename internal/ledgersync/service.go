// Package ledgersync rebuilds a wallet's state from the remote indexer. A sync
// is all-or-nothing: either every fetch succeeds and a complete state is
// returned, or an error is returned and nothing is written anywhere.
package ledgersync

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/tokencache"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	tracerName             = "github.com/gabapcia/walletsync/internal/ledgersync"
	defaultHistoryPageSize = 20
)

// Result is a successfully assembled wallet state plus the token cache it was
// resolved against.
type Result struct {
	State        wallet.State
	Cache        wallet.TokenCache
	CacheChanged bool
	Endpoint     int
}

// Service synchronizes wallets against the indexer pool.
type Service interface {
	// Sync fetches and assembles the full state of w. It fails with
	// wallet.ErrBackendUnavailable when the active endpoint does not answer.
	Sync(ctx context.Context, w wallet.Wallet, cache wallet.TokenCache) (Result, error)

	// Failover moves to the next endpoint and returns its index.
	Failover(ctx context.Context) int
}

type service struct {
	pool            *EndpointPool
	resolver        tokencache.Resolver
	historyPageSize int
	tracer          trace.Tracer
}

var _ Service = (*service)(nil)

func (s *service) Sync(ctx context.Context, w wallet.Wallet, cache wallet.TokenCache) (Result, error) {
	if w.MigrationRequired() {
		return Result{}, wallet.ErrMigrationRequired
	}

	idx, endpoint := s.pool.Current()

	ctx, span := s.tracer.Start(ctx, "ledgersync.Sync", trace.WithAttributes(
		attribute.Int("endpoint.index", idx),
		attribute.String("endpoint.url", endpoint.URL),
	))
	defer span.End()

	res, err := s.sync(ctx, endpoint.Indexer, w, cache)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		return Result{}, err
	}

	res.Endpoint = idx
	return res, nil
}

func (s *service) sync(ctx context.Context, indexer Indexer, w wallet.Wallet, cache wallet.TokenCache) (Result, error) {
	if _, err := indexer.ChainHeight(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: liveness probe: %w", wallet.ErrBackendUnavailable, err)
	}

	fingerprints := w.Fingerprints()

	utxos, err := fetchUtxos(ctx, indexer, fingerprints)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", wallet.ErrBackendUnavailable, err)
	}

	plain, tokenBearing := partition(utxos)

	tokenIDs := types.NewSet[string]()
	for _, u := range tokenBearing {
		tokenIDs.Add(u.Token.TokenID)
	}
	utxoTokens := s.resolver.Resolve(ctx, tokenIDs, cache)

	history, err := fetchHistory(ctx, indexer, fingerprints, s.historyPageSize)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", wallet.ErrBackendUnavailable, err)
	}

	parsed := parseHistory(history, w.FingerprintSet(), s.historyPageSize)
	historyTokens := s.resolver.Resolve(ctx, wallet.TokenIDs(parsed), utxoTokens.Cache)
	attachTokenInfo(parsed, historyTokens.Cache)

	state := wallet.State{
		Balances: wallet.Balances{Total: sumValues(plain)},
		Utxos: wallet.Utxos{
			Plain:        plain,
			TokenBearing: tokenBearing,
		},
		Tokens:    tokenHoldings(tokenBearing, historyTokens.Cache),
		TxHistory: parsed,
	}

	return Result{
		State:        state,
		Cache:        historyTokens.Cache,
		CacheChanged: utxoTokens.Changed || historyTokens.Changed,
	}, nil
}

func (s *service) Failover(ctx context.Context) int {
	next := s.pool.Next()
	_, endpoint := s.pool.Current()

	logger.Warn(ctx, "switching indexer endpoint",
		"endpoint.index", next,
		"endpoint.url", endpoint.URL,
	)

	return next
}

// fetchUtxos queries every fingerprint concurrently and keeps fingerprint order in the result.
func fetchUtxos(ctx context.Context, indexer Indexer, fingerprints []string) ([]wallet.Utxo, error) {
	results := make([][]wallet.Utxo, len(fingerprints))

	g, gctx := errgroup.WithContext(ctx)
	for i, fingerprint := range fingerprints {
		g.Go(func() error {
			utxos, err := indexer.Utxos(gctx, fingerprint)
			if err != nil {
				return fmt.Errorf("utxos of %s: %w", fingerprint, err)
			}

			for j := range utxos {
				utxos[j].Fingerprint = fingerprint
			}
			results[i] = utxos
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(results...), nil
}

func fetchHistory(ctx context.Context, indexer Indexer, fingerprints []string, pageSize int) ([]wallet.Tx, error) {
	results := make([][]wallet.Tx, len(fingerprints))

	g, gctx := errgroup.WithContext(ctx)
	for i, fingerprint := range fingerprints {
		g.Go(func() error {
			txs, err := indexer.TxHistory(gctx, fingerprint, 0, pageSize)
			if err != nil {
				return fmt.Errorf("history of %s: %w", fingerprint, err)
			}

			results[i] = txs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(results...), nil
}

func partition(utxos []wallet.Utxo) (plain, tokenBearing []wallet.Utxo) {
	plain = make([]wallet.Utxo, 0, len(utxos))
	tokenBearing = make([]wallet.Utxo, 0)
	for _, u := range utxos {
		if u.IsTokenBearing() {
			tokenBearing = append(tokenBearing, u)
			continue
		}
		plain = append(plain, u)
	}
	return plain, tokenBearing
}

func sumValues(utxos []wallet.Utxo) decimal.Decimal {
	total := decimal.Zero
	for _, u := range utxos {
		total = total.Add(u.Value)
	}
	return total
}

// tokenHoldings sums token quantities per id in order of first appearance.
// Unresolved tokens and zero balances are left out.
func tokenHoldings(tokenBearing []wallet.Utxo, cache wallet.TokenCache) []wallet.TokenHolding {
	totals := types.NewDefaultMap[string, decimal.Decimal](func() decimal.Decimal { return decimal.Zero })

	var order []string
	for _, u := range tokenBearing {
		id := u.Token.TokenID
		if !totals.Has(id) {
			order = append(order, id)
		}
		totals.Update(id, func(v decimal.Decimal) decimal.Decimal { return v.Add(u.Token.Amount) })
	}

	holdings := make([]wallet.TokenHolding, 0, len(order))
	for _, id := range order {
		info, ok := cache[id]
		if !ok {
			continue
		}

		balance := info.Display(totals.Get(id))
		if !balance.IsPositive() {
			continue
		}

		holdings = append(holdings, wallet.TokenHolding{
			TokenID: id,
			Balance: balance,
			Info:    info,
		})
	}

	return holdings
}

// parseHistory merges the per-fingerprint pages, drops duplicates, orders
// unconfirmed transactions first and then by height, and keeps at most limit.
func parseHistory(txs []wallet.Tx, fingerprints types.Set[string], limit int) []wallet.ParsedTx {
	seen := types.NewSet[string]()
	unique := make([]wallet.Tx, 0, len(txs))
	for _, tx := range txs {
		if seen.Has(tx.TxID) {
			continue
		}
		seen.Add(tx.TxID)
		unique = append(unique, tx)
	}

	slices.SortFunc(unique, func(a, b wallet.Tx) int {
		aPending, bPending := a.BlockHeight <= 0, b.BlockHeight <= 0
		switch {
		case aPending && !bPending:
			return -1
		case !aPending && bPending:
			return 1
		}

		return cmp.Or(
			cmp.Compare(b.BlockHeight, a.BlockHeight),
			cmp.Compare(b.Timestamp, a.Timestamp),
			cmp.Compare(a.TxID, b.TxID),
		)
	})

	if len(unique) > limit {
		unique = unique[:limit]
	}

	parsed := make([]wallet.ParsedTx, len(unique))
	for i, tx := range unique {
		parsed[i] = wallet.ParseTx(tx, fingerprints)
	}
	return parsed
}

func attachTokenInfo(txs []wallet.ParsedTx, cache wallet.TokenCache) {
	for i := range txs {
		if txs[i].Token == nil {
			continue
		}
		if info, ok := cache[txs[i].Token.TokenID]; ok {
			txs[i].Token.Info = &info
		}
	}
}

type config struct {
	historyPageSize int
}

// Option configures the sync service.
type Option func(*config)

// WithHistoryPageSize sets how many transactions are kept in the parsed history.
func WithHistoryPageSize(n int) Option {
	return func(c *config) {
		c.historyPageSize = n
	}
}

// New builds a sync service over pool, resolving tokens through resolver.
func New(pool *EndpointPool, resolver tokencache.Resolver, opts ...Option) *service {
	cfg := config{
		historyPageSize: defaultHistoryPageSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		pool:            pool,
		resolver:        resolver,
		historyPageSize: cfg.historyPageSize,
		tracer:          otel.Tracer(tracerName),
	}
}
