// Package tokencache resolves token genesis metadata on demand. Resolution
// never mutates the cache it is given: it returns a new cache and a flag
// telling the caller whether anything was added and must be persisted.
package tokencache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/wallet"

	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency      = 4
	defaultLookupsPerSecond = 20
)

// GenesisLookup fetches the immutable metadata of a token.
type GenesisLookup interface {
	TokenInfo(ctx context.Context, tokenID string) (wallet.TokenInfo, error)
}

// Result is the outcome of one resolution.
type Result struct {
	// Tokens holds the metadata of every requested id that is known, sorted by id.
	Tokens []wallet.TokenInfo
	// Cache is a new cache with the newly resolved entries added.
	Cache wallet.TokenCache
	// Changed is true when Cache differs from the input cache.
	Changed bool
	// Unresolved lists ids whose lookup failed in this call.
	Unresolved []string
}

// Resolver resolves sets of token ids against a cache.
type Resolver interface {
	Resolve(ctx context.Context, ids types.Set[string], cache wallet.TokenCache) Result
}

type resolver struct {
	lookup      GenesisLookup
	limiter     ratelimit.Limiter
	concurrency int
}

var _ Resolver = (*resolver)(nil)

// Resolve looks up every id missing from cache. A failed lookup is logged and
// skipped; the other ids are still resolved.
func (r *resolver) Resolve(ctx context.Context, ids types.Set[string], cache wallet.TokenCache) Result {
	updated := cache.Clone()

	var missing []string
	for id := range ids {
		if _, ok := updated[id]; !ok {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)

	var (
		mu         sync.Mutex
		unresolved []string
		g          errgroup.Group
	)
	g.SetLimit(r.concurrency)

	for _, id := range missing {
		g.Go(func() error {
			r.limiter.Take()

			info, err := r.lookup.TokenInfo(ctx, id)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				logger.Warn(ctx, "token genesis lookup failed",
					"token.id", id,
					"error", fmt.Errorf("%w: %w", wallet.ErrLookupFailed, err),
				)
				unresolved = append(unresolved, id)
				return nil
			}

			info.TokenID = id
			updated[id] = info
			return nil
		})
	}
	_ = g.Wait()

	tokens := make([]wallet.TokenInfo, 0, len(ids))
	for id := range ids {
		if info, ok := updated[id]; ok {
			tokens = append(tokens, info)
		}
	}
	slices.SortFunc(tokens, func(a, b wallet.TokenInfo) int {
		return strings.Compare(a.TokenID, b.TokenID)
	})
	slices.Sort(unresolved)

	return Result{
		Tokens:     tokens,
		Cache:      updated,
		Changed:    len(missing) > len(unresolved),
		Unresolved: unresolved,
	}
}

type config struct {
	concurrency      int
	lookupsPerSecond int
}

// Option configures a Resolver.
type Option func(*config)

// WithConcurrency bounds the number of lookups in flight.
func WithConcurrency(n int) Option {
	return func(c *config) {
		c.concurrency = n
	}
}

// WithRateLimit caps genesis lookups per second across all goroutines.
func WithRateLimit(perSecond int) Option {
	return func(c *config) {
		c.lookupsPerSecond = perSecond
	}
}

// NewResolver builds a Resolver issuing lookups through lookup.
func NewResolver(lookup GenesisLookup, opts ...Option) *resolver {
	cfg := config{
		concurrency:      defaultConcurrency,
		lookupsPerSecond: defaultLookupsPerSecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &resolver{
		lookup:      lookup,
		limiter:     ratelimit.New(cfg.lookupsPerSecond),
		concurrency: cfg.concurrency,
	}
}
