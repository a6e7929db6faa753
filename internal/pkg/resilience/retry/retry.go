// Package retry runs operations with exponential backoff on top of
// avast/retry-go.
//
//	r := retry.New(retry.WithAttempts(5), retry.WithDelay(200*time.Millisecond))
//	err := r.Execute(ctx, func() error {
//	    return kv.Set(ctx, key, value)
//	})
package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Retry executes an operation until it succeeds, the attempts run out, the
// error is unrecoverable or ctx is done.
type Retry interface {
	// Execute returns nil on success and the last attempt's error otherwise.
	// operation must be safe to call more than once.
	Execute(ctx context.Context, operation func() error) error
}

type config struct {
	attempts uint
	delay    time.Duration
	maxDelay time.Duration
	retryIf  func(error) bool
	onRetry  func(n uint, err error)
}

type Option func(*config)

type retrier struct {
	cfg config
}

var _ Retry = (*retrier)(nil)

// New returns a Retry. Defaults: 3 attempts, 1s base delay doubling up to 5s.
func New(opts ...Option) Retry {
	cfg := config{
		attempts: 3,
		delay:    time.Second,
		maxDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &retrier{
		cfg: cfg,
	}
}

func (r *retrier) Execute(ctx context.Context, operation func() error) error {
	options := []retrygo.Option{
		retrygo.Attempts(r.cfg.attempts),
		retrygo.Delay(r.cfg.delay),
		retrygo.MaxDelay(r.cfg.maxDelay),
		retrygo.DelayType(retrygo.BackOffDelay),
		retrygo.LastErrorOnly(true),
		retrygo.Context(ctx),
	}
	if r.cfg.retryIf != nil {
		options = append(options, retrygo.RetryIf(r.cfg.retryIf))
	}
	if r.cfg.onRetry != nil {
		options = append(options, retrygo.OnRetry(r.cfg.onRetry))
	}

	return retrygo.Do(operation, options...)
}

// Unrecoverable marks err so Execute returns it without further attempts.
// errors.Is still matches the wrapped error.
func Unrecoverable(err error) error {
	return retrygo.Unrecoverable(err)
}

// WithAttempts sets the total number of attempts, the first one included.
func WithAttempts(n uint) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithDelay sets the wait before the first retry. It doubles on each retry.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// WithMaxDelay caps the wait between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) {
		c.maxDelay = d
	}
}

// WithRetryIf restricts retries to errors for which f returns true.
func WithRetryIf(f func(error) bool) Option {
	return func(c *config) {
		c.retryIf = f
	}
}

// WithOnRetry registers a callback invoked after every failed attempt that
// will be retried. n is the zero-based attempt number.
func WithOnRetry(f func(n uint, err error)) Option {
	return func(c *config) {
		c.onRetry = f
	}
}
