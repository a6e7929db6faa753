// Package walletstore is the single writer of persisted wallet, contact,
// settings and token cache records. It owns record validation, legacy wallet
// migration and the re-hydration of decimal fields on load.
package walletstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabapcia/walletsync/internal/pkg/resilience/retry"
	"github.com/gabapcia/walletsync/internal/wallet"
)

// ErrNotFound is returned by a KeyValueStore when the key has no value.
var ErrNotFound = errors.New("record not found")

// Logical record keys.
const (
	KeyWallet       = "wallet"
	KeySavedWallets = "savedWallets"
	KeyContactList  = "contactList"
	KeySettings     = "settings"
	KeyTokenCache   = "tokenCache"
)

// KeyValueStore is the persistent backend. Get returns ErrNotFound for absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KeyDeriver generates mnemonics and derives accounts from them.
type KeyDeriver interface {
	NewMnemonic() (string, error)
	DeriveAccount(mnemonic, path string) (wallet.Account, error)
}

type Store struct {
	mu      sync.Mutex
	kv      KeyValueStore
	deriver KeyDeriver
	retry   retry.Retry
}

// getRecord decodes the record under key into v. found is false when the key is absent.
func (s *Store) getRecord(ctx context.Context, key string, v any) (found bool, err error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: read %s: %w", wallet.ErrStoreUnavailable, key, err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("%w: decode %s: %w", wallet.ErrInvalidRecord, key, err)
	}

	return true, nil
}

func (s *Store) setRecord(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	err = s.retry.Execute(ctx, func() error {
		return s.kv.Set(ctx, key, raw)
	})
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", wallet.ErrStoreUnavailable, key, err)
	}

	return nil
}

type config struct {
	retry retry.Retry
}

type Option func(*config)

// WithRetry sets the retry policy for record writes.
func WithRetry(r retry.Retry) Option {
	return func(c *config) {
		c.retry = r
	}
}

func New(kv KeyValueStore, deriver KeyDeriver, opts ...Option) *Store {
	cfg := config{
		retry: retry.New(
			retry.WithAttempts(3),
			retry.WithDelay(100*time.Millisecond),
			retry.WithMaxDelay(time.Second),
		),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		kv:      kv,
		deriver: deriver,
		retry:   cfg.retry,
	}
}
