package tokencache

import (
	"context"
	"sync"

	"github.com/gabapcia/walletsync/internal/wallet"
)

// Persister durably writes the token cache.
type Persister interface {
	SaveTokenCache(ctx context.Context, cache wallet.TokenCache) error
}

// Store holds the process-wide token cache. Readers get snapshots; writers
// merge additively and the result is persisted only when it changed.
type Store struct {
	mu        sync.RWMutex
	cache     wallet.TokenCache
	persistMu sync.Mutex
	persister Persister
}

// Snapshot returns a copy of the current cache.
func (s *Store) Snapshot() wallet.TokenCache {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cache.Clone()
}

// Lookup returns the cached metadata for tokenID.
func (s *Store) Lookup(tokenID string) (wallet.TokenInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.cache[tokenID]
	return info, ok
}

// Merge adds entries to the cache. When something was added the new cache is
// persisted; the in-memory cache is updated even if persisting fails.
func (s *Store) Merge(ctx context.Context, entries wallet.TokenCache) (bool, error) {
	s.mu.Lock()
	merged, changed := s.cache.Merge(entries)
	if changed {
		s.cache = merged
	}
	s.mu.Unlock()

	if !changed || s.persister == nil {
		return changed, nil
	}

	// The cache only grows, so the latest snapshot supersedes merged.
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	return changed, s.persister.SaveTokenCache(ctx, s.Snapshot())
}

// NewStore seeds a Store with initial, typically the cache loaded at startup.
func NewStore(initial wallet.TokenCache, persister Persister) *Store {
	return &Store{
		cache:     initial.Clone(),
		persister: persister,
	}
}
