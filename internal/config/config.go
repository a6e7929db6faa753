// Package config loads the process configuration from WALLETSYNC_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gabapcia/walletsync/internal/pkg/validator"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "WALLETSYNC"

// Storage drivers.
const (
	StorageLevelDB = "leveldb"
	StorageRedis   = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	IndexerURLs     []string `envconfig:"INDEXER_URLS" required:"true" validate:"min=1,dive,url"`
	PushURL         string   `envconfig:"PUSH_URL" validate:"omitempty,url"`
	HistoryPageSize int      `envconfig:"HISTORY_PAGE_SIZE" default:"20" validate:"min=1"`

	PriceAPIURL   string        `envconfig:"PRICE_API_URL" default:"https://api.coingecko.com/api/v3" validate:"url"`
	PriceAssetID  string        `envconfig:"PRICE_ASSET_ID" default:"ecash" validate:"required"`
	PriceInterval time.Duration `envconfig:"PRICE_INTERVAL" default:"60s" validate:"gt=0"`

	RefreshIntervalConnected    time.Duration `envconfig:"REFRESH_INTERVAL_CONNECTED" default:"10s" validate:"gt=0"`
	RefreshIntervalDisconnected time.Duration `envconfig:"REFRESH_INTERVAL_DISCONNECTED" default:"5s" validate:"gt=0"`
	RefreshIntervalAccelerated  time.Duration `envconfig:"REFRESH_INTERVAL_ACCELERATED" default:"10ms" validate:"gt=0"`

	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"leveldb" validate:"oneof=leveldb redis"`
	StoragePath   string `envconfig:"STORAGE_PATH" default:"walletsync.db" validate:"required_if=StorageDriver leveldb"`
	RedisAddr     string `envconfig:"REDIS_ADDR" validate:"required_if=StorageDriver redis"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0" validate:"min=0"`

	TelemetryEnabled     bool   `envconfig:"TELEMETRY_ENABLED" default:"false"`
	TelemetryServiceName string `envconfig:"TELEMETRY_SERVICE_NAME" default:"walletsync" validate:"required"`
}

// Load reads the environment, applies defaults and validates the result.
// An empty PUSH_URL is derived from the first indexer URL.
func Load() (Config, error) {
	var c Config
	if err := envconfig.Process(Prefix, &c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := validator.Validate(c); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.PushURL == "" {
		push, err := PushURLFor(c.IndexerURLs[0])
		if err != nil {
			return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		c.PushURL = push
	}

	return c, nil
}

// PushURLFor maps an indexer endpoint onto its websocket counterpart:
// http becomes ws, https becomes wss and the path gains a /ws segment.
func PushURLFor(indexerURL string) (string, error) {
	u, err := url.Parse(indexerURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}
