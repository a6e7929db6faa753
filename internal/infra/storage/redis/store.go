package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/walletsync/internal/walletstore"

	"github.com/redis/go-redis/v9"
)

// storeKeyPrefix is the namespace prefix for every wallet store record.
const storeKeyPrefix = "walletsync"

// storeKey builds the Redis key holding the record with the given logical name.
//
// Format: "walletsync:store:{key}"
func storeKey(key string) string {
	return fmt.Sprintf("%s:store:%s", storeKeyPrefix, key)
}

// Get implements the walletstore.KeyValueStore interface.
//
// It returns walletstore.ErrNotFound when the record was never written.
//
// Parameters:
//   - ctx: context used for cancellation and timeout control.
//   - key: logical record name (e.g., "wallet", "settings").
//
// Returns:
//   - The raw record bytes.
//   - An error if the key is absent or the Redis query fails.
func (c *client) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.conn.Get(ctx, storeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, walletstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Set implements the walletstore.KeyValueStore interface.
//
// Records never expire; each write replaces the previous value.
//
// Parameters:
//   - ctx: context used for cancellation and timeout control.
//   - key: logical record name.
//   - value: raw record bytes.
//
// Returns:
//   - An error if the Redis command fails.
func (c *client) Set(ctx context.Context, key string, value []byte) error {
	return c.conn.Set(ctx, storeKey(key), value, 0).Err()
}

// Compile-time assertion to ensure *client satisfies the walletstore.KeyValueStore interface
var _ walletstore.KeyValueStore = new(client)
