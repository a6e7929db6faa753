// Package leveldb is the on-device record store, backed by goleveldb.
package leveldb

import (
	"context"
	"errors"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/walletstore"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

const keyPrefix = "walletsync:"

var defaultOptions = opt.Options{
	Compression: opt.NoCompression,
}

type store struct {
	db *leveldb.DB
}

var _ walletstore.KeyValueStore = (*store)(nil)

func (s *store) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.db.Get([]byte(keyPrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, walletstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *store) Set(_ context.Context, key string, value []byte) error {
	return s.db.Put([]byte(keyPrefix+key), value, &opt.WriteOptions{Sync: true})
}

func (s *store) Close() error {
	return s.db.Close()
}

// Open opens, or creates, the database at path. A corrupted database is
// recovered before it is returned.
func Open(ctx context.Context, path string) (*store, error) {
	db, err := leveldb.OpenFile(path, &defaultOptions)
	if ldberrors.IsCorrupted(err) {
		logger.Warn(ctx, "leveldb corruption detected", "storage.path", path, "error", err)

		db, err = leveldb.RecoverFile(path, &defaultOptions)
		if err != nil {
			return nil, err
		}

		logger.Warn(ctx, "leveldb recovered from corruption", "storage.path", path)
	}
	if err != nil {
		return nil, err
	}

	return &store{db: db}, nil
}

// OpenInMemory returns a store that keeps everything in memory.
func OpenInMemory() (*store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), &defaultOptions)
	if err != nil {
		return nil, err
	}

	return &store{db: db}, nil
}
