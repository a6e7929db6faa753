package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gabapcia/walletsync/internal/config"
	"github.com/gabapcia/walletsync/internal/eventchannel"
	"github.com/gabapcia/walletsync/internal/fiatprice"
	"github.com/gabapcia/walletsync/internal/handlers/cli"
	"github.com/gabapcia/walletsync/internal/infra/indexer"
	"github.com/gabapcia/walletsync/internal/infra/keys/bip44"
	"github.com/gabapcia/walletsync/internal/infra/price/coingecko"
	"github.com/gabapcia/walletsync/internal/infra/storage/leveldb"
	"github.com/gabapcia/walletsync/internal/infra/storage/redis"
	"github.com/gabapcia/walletsync/internal/ledgersync"
	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/telemetry"
	httpclient "github.com/gabapcia/walletsync/internal/pkg/transport/http"
	"github.com/gabapcia/walletsync/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/walletsync/internal/syncloop"
	"github.com/gabapcia/walletsync/internal/tokencache"
	"github.com/gabapcia/walletsync/internal/walletstore"
)

const eventBufferSize = 64

type kvStore interface {
	walletstore.KeyValueStore
	io.Closer
}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Init(ctx, cfg.TelemetryServiceName)
		if err != nil {
			return err
		}
		defer shutdown(context.WithoutCancel(ctx))
	}

	if err := logger.Init(logger.WithLevel(cfg.LogLevel)); err != nil {
		return err
	}
	defer logger.Sync()

	kv, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	store := walletstore.New(kv, bip44.NewDeriver(nil))

	cache, err := store.TokenCache(ctx)
	if err != nil {
		logger.Warn(ctx, "token cache not loaded", "error", err)
	}
	tokens := tokencache.NewStore(cache, store)

	settings, err := store.Settings(ctx)
	if err != nil {
		logger.Warn(ctx, "settings not loaded, using defaults", "error", err)
	}

	httpClient := httpclient.NewStandardClient()

	endpoints := make([]ledgersync.Endpoint, 0, len(cfg.IndexerURLs))
	for _, url := range cfg.IndexerURLs {
		endpoints = append(endpoints, ledgersync.Endpoint{
			URL:     url,
			Indexer: indexer.NewClient(jsonrpc.NewClient(httpClient, url)),
		})
	}

	pool, err := ledgersync.NewEndpointPool(endpoints...)
	if err != nil {
		return err
	}

	// Pending-tx and genesis lookups always go to the primary endpoint.
	primary := indexer.NewClient(jsonrpc.NewClient(httpClient, cfg.IndexerURLs[0]))

	syncer := ledgersync.New(pool, tokencache.NewResolver(primary), ledgersync.WithHistoryPageSize(cfg.HistoryPageSize))

	sink := notify.NewSink(eventBufferSize)
	defer sink.Close()

	var loop syncloop.Service

	channel := eventchannel.New(
		indexer.NewTransport(cfg.PushURL),
		primary,
		primary,
		tokens,
		sink,
		eventchannel.WithAccelerator(func() { loop.Accelerate() }),
	)
	defer channel.Close()

	prices := fiatprice.New(
		coingecko.NewClient(httpClient, cfg.PriceAPIURL),
		cfg.PriceAssetID,
		settings.FiatCurrency,
		fiatprice.WithInterval(cfg.PriceInterval),
		fiatprice.WithOnChange(func(fiat notify.FiatContext) { loop.OnFiatChange(ctx, fiat) }),
	)

	loop = syncloop.New(
		syncer,
		store,
		channel,
		prices,
		tokens,
		sink,
		syncloop.WithIntervals(
			cfg.RefreshIntervalConnected,
			cfg.RefreshIntervalDisconnected,
			cfg.RefreshIntervalAccelerated,
		),
	)

	return cli.Run(ctx, store, loop, prices, sink.Events())
}

func openStore(ctx context.Context, cfg config.Config) (kvStore, error) {
	switch cfg.StorageDriver {
	case config.StorageRedis:
		return redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
	default:
		return leveldb.Open(ctx, cfg.StoragePath)
	}
}
