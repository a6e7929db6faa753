// Package fiatprice polls the fiat price of the native asset for the
// configured currency.
package fiatprice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/pkg/logger"

	"github.com/shopspring/decimal"
)

var (
	ErrServiceAlreadyStarted = errors.New("service already started")

	// ErrPriceUnavailable is returned by a PriceAPI that has no usable quote.
	ErrPriceUnavailable = errors.New("price unavailable")
)

const defaultPollInterval = 60 * time.Second

// PriceAPI quotes assetID in currency.
type PriceAPI interface {
	Price(ctx context.Context, assetID, currency string) (decimal.Decimal, error)
}

type Service interface {
	Start(ctx context.Context) error
	Close()

	// Current returns the latest fiat context. Price is nil when no valid
	// quote is known for the currency.
	Current() notify.FiatContext

	// SetCurrency switches the quoted currency and polls immediately.
	SetCurrency(ctx context.Context, currency string)
}

type closeFunc func()

type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc
	parent    context.Context

	current notify.FiatContext

	api      PriceAPI
	assetID  string
	interval time.Duration
	onChange func(notify.FiatContext)
}

var _ Service = (*service)(nil)

func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	s.parent = ctx
	s.startPolling(ctx, s.current.Currency)
	s.isStarted = true
	return nil
}

func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closeFunc != nil {
		s.closeFunc()
	}
	s.isStarted = false
	s.closeFunc = nil
}

func (s *service) Current() notify.FiatContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

func (s *service) SetCurrency(ctx context.Context, currency string) {
	currency = strings.ToLower(currency)

	s.mu.Lock()
	defer s.mu.Unlock()

	if currency == s.current.Currency {
		return
	}

	s.update(ctx, notify.FiatContext{Currency: currency})

	if !s.isStarted {
		return
	}

	s.closeFunc()
	s.startPolling(s.parent, currency)
}

// startPolling must be called with mu held.
func (s *service) startPolling(ctx context.Context, currency string) {
	ctx, cancel := context.WithCancel(ctx)
	s.closeFunc = func() { cancel() }

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.poll(ctx, currency)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *service) poll(ctx context.Context, currency string) {
	ctx = logger.Derive(ctx, "fiat.currency", currency)

	next := notify.FiatContext{Currency: currency}

	price, err := s.api.Price(ctx, s.assetID, currency)
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		logger.Warn(ctx, "fiat price unavailable", "error", err)
	case !price.IsPositive():
		logger.Warn(ctx, "fiat price rejected", "error", fmt.Errorf("%w: non-positive quote %s", ErrPriceUnavailable, price))
	default:
		next.Price = &price
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A currency switch may have raced with this poll.
	if ctx.Err() != nil || s.current.Currency != currency {
		return
	}
	s.update(ctx, next)
}

// update must be called with mu held.
func (s *service) update(ctx context.Context, next notify.FiatContext) {
	if s.current.Equal(next) {
		return
	}

	s.current = next
	logger.Debug(ctx, "fiat context updated", "fiat.currency", next.Currency, "fiat.known", next.Price != nil)

	if s.onChange != nil {
		s.onChange(next)
	}
}

type config struct {
	interval time.Duration
	onChange func(notify.FiatContext)
}

type Option func(*config)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}

// WithOnChange registers a callback run whenever the fiat context changes.
// It runs with the service lock held and must not call back into the service.
func WithOnChange(f func(notify.FiatContext)) Option {
	return func(c *config) {
		c.onChange = f
	}
}

func New(api PriceAPI, assetID, currency string, opts ...Option) *service {
	cfg := config{
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		current:  notify.FiatContext{Currency: strings.ToLower(currency)},
		api:      api,
		assetID:  assetID,
		interval: cfg.interval,
		onChange: cfg.onChange,
	}
}
