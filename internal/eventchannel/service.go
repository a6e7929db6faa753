// Package eventchannel keeps a push subscription for every fingerprint of the
// active wallet and turns pending-pool messages into notifications and
// accelerated refreshes.
package eventchannel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/resilience/retry"
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/pkg/x/chflow"
	"github.com/gabapcia/walletsync/internal/tokencache"
	"github.com/gabapcia/walletsync/internal/wallet"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const (
	meterName             = "github.com/gabapcia/walletsync/internal/eventchannel"
	defaultSeenTxCapacity = 512
)

// Service manages the push channel of the active wallet.
type Service interface {
	// Initialize binds the channel to w and fiat, opening it when needed,
	// and converges the live subscriptions to the wallet fingerprints.
	Initialize(ctx context.Context, w wallet.Wallet, fiat notify.FiatContext) error

	// State reports the channel state.
	State() State

	// Close tears the channel down.
	Close()
}

type service struct {
	mu           sync.Mutex
	state        atomic.Int32
	conn         Conn
	cancel       context.CancelFunc
	fingerprints types.Set[string]
	fiat         notify.FiatContext

	transport Transport
	txLookup  TxLookup
	genesis   tokencache.GenesisLookup
	tokens    *tokencache.Store
	publisher notify.Publisher

	retry      retry.Retry
	seen       *lru.Cache[string, struct{}]
	accelerate func()
	reconnects metric.Int64Counter
}

var _ Service = (*service)(nil)

func (s *service) Initialize(ctx context.Context, w wallet.Wallet, fiat notify.FiatContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fingerprints := w.FingerprintSet()
	if !fingerprints.Equal(s.fingerprints) {
		s.seen.Purge()
	}
	s.fingerprints = fingerprints
	s.fiat = fiat

	if s.conn == nil {
		if err := s.open(ctx); err != nil {
			return err
		}
	}

	return s.reconcile(ctx)
}

func (s *service) State() State {
	return State(s.state.Load())
}

func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardown()
}

// open must be called with mu held.
func (s *service) open(ctx context.Context) error {
	s.state.Store(int32(Connecting))

	var conn Conn
	err := s.retry.Execute(ctx, func() error {
		c, err := s.transport.Open(ctx)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		s.state.Store(int32(Disconnected))
		return fmt.Errorf("open push channel: %w", err)
	}

	consumeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.conn = conn
	s.cancel = cancel
	s.state.Store(int32(Connected))

	s.startConsumer(consumeCtx, conn)

	logger.Info(ctx, "push channel connected")
	return nil
}

// teardown must be called with mu held.
func (s *service) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}

	s.conn = nil
	s.cancel = nil
	s.state.Store(int32(Disconnected))
}

// reconcile unsubscribes stale fingerprints and then subscribes missing ones.
// Nothing is sent when the sets already match. Must be called with mu held.
func (s *service) reconcile(ctx context.Context) error {
	live := types.NewSet(s.conn.Subscriptions()...)
	if live.Equal(s.fingerprints) {
		return nil
	}

	var errs []error

	stale := live.Difference(s.fingerprints).ToSlice()
	slices.Sort(stale)
	for _, fingerprint := range stale {
		if err := s.conn.Unsubscribe(ctx, fingerprint); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", fingerprint, err))
		}
	}

	missing := s.fingerprints.Difference(live).ToSlice()
	slices.Sort(missing)
	for _, fingerprint := range missing {
		if err := s.conn.Subscribe(ctx, fingerprint); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", fingerprint, err))
		}
	}

	logger.Debug(ctx, "push subscriptions reconciled",
		"subscriptions.removed", len(stale),
		"subscriptions.added", len(missing),
	)

	return errors.Join(errs...)
}

func (s *service) startConsumer(ctx context.Context, conn Conn) {
	go func() {
		for {
			msg, ok := chflow.Receive(ctx, conn.Messages())
			if !ok {
				if ctx.Err() == nil {
					s.markClosed(ctx, conn)
				}
				return
			}

			s.dispatch(ctx, msg)
		}
	}()
}

func (s *service) markClosed(ctx context.Context, conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != conn {
		return
	}

	s.teardown()
	logger.Warn(ctx, "push channel closed by transport")
}

func (s *service) dispatch(ctx context.Context, msg Message) {
	switch msg.Type {
	case MessageAddedToMempool:
		s.handleMempoolTx(logger.Derive(ctx, "tx.id", msg.TxID), msg.TxID)
	case MessageDropped:
		if s.state.CompareAndSwap(int32(Connected), int32(Connecting)) {
			logger.Warn(ctx, "push channel dropped, polling until it reconnects")
		}
	case MessageReconnected:
		s.reconnects.Add(ctx, 1)
		if s.state.CompareAndSwap(int32(Connecting), int32(Connected)) {
			logger.Info(ctx, "push channel reconnected")
		}
	default:
		logger.Debug(ctx, "push message ignored", "message.type", msg.Type, "tx.id", msg.TxID)
	}
}

func (s *service) handleMempoolTx(ctx context.Context, txid string) {
	if s.accelerate != nil {
		s.accelerate()
	}

	if seen, _ := s.seen.ContainsOrAdd(txid, struct{}{}); seen {
		return
	}

	s.mu.Lock()
	fingerprints, fiat := s.fingerprints, s.fiat
	s.mu.Unlock()

	tx, err := s.txLookup.Tx(ctx, txid)
	if err != nil {
		logger.Warn(ctx, "pending tx dropped", "error", fmt.Errorf("%w: %w", wallet.ErrLookupFailed, err))
		return
	}

	parsed := wallet.ParseTx(tx, fingerprints)
	if !parsed.Incoming || !parsed.Involves() {
		return
	}

	if parsed.Token != nil && parsed.Token.Amount.IsPositive() {
		s.notifyToken(ctx, parsed.Token)
		return
	}

	s.publisher.Publish(ctx, notify.ValueReceived{Amount: parsed.Amount, Fiat: fiat})
}

func (s *service) notifyToken(ctx context.Context, token *wallet.ParsedToken) {
	info, ok := s.tokens.Lookup(token.TokenID)
	if !ok {
		var err error
		info, err = s.genesis.TokenInfo(ctx, token.TokenID)
		if err != nil {
			logger.Warn(ctx, "pending token tx dropped",
				"token.id", token.TokenID,
				"error", fmt.Errorf("%w: %w", wallet.ErrLookupFailed, err),
			)
			return
		}

		info.TokenID = token.TokenID
		if _, err := s.tokens.Merge(ctx, wallet.TokenCache{info.TokenID: info}); err != nil {
			logger.Warn(ctx, "token cache not persisted", "error", err)
		}
	}

	s.publisher.Publish(ctx, notify.TokenReceived{
		TokenID: info.TokenID,
		Ticker:  info.Ticker,
		Name:    info.Name,
		Amount:  info.Display(token.Amount),
	})
}

type config struct {
	retry        retry.Retry
	seenCapacity int
	accelerate   func()
}

// Option configures the event channel.
type Option func(*config)

// WithRetry sets the retry policy used when opening the channel.
func WithRetry(r retry.Retry) Option {
	return func(c *config) {
		c.retry = r
	}
}

// WithAccelerator registers the callback run on every pending-pool message.
func WithAccelerator(f func()) Option {
	return func(c *config) {
		c.accelerate = f
	}
}

// WithSeenCapacity bounds how many handled txids are remembered.
func WithSeenCapacity(n int) Option {
	return func(c *config) {
		c.seenCapacity = n
	}
}

// New builds an event channel. Token metadata found for incoming pending
// transactions is merged into tokens.
func New(
	transport Transport,
	txLookup TxLookup,
	genesis tokencache.GenesisLookup,
	tokens *tokencache.Store,
	publisher notify.Publisher,
	opts ...Option,
) *service {
	cfg := config{
		retry:        retry.New(retry.WithAttempts(1)),
		seenCapacity: defaultSeenTxCapacity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	seen, err := lru.New[string, struct{}](cfg.seenCapacity)
	if err != nil {
		seen, _ = lru.New[string, struct{}](defaultSeenTxCapacity)
	}

	var reconnects metric.Int64Counter
	reconnects, err = otel.Meter(meterName).Int64Counter("walletsync.eventchannel.reconnects",
		metric.WithDescription("Push channel reconnections reported by the transport"),
	)
	if err != nil {
		reconnects = noop.Int64Counter{}
	}

	return &service{
		transport:    transport,
		txLookup:     txLookup,
		genesis:      genesis,
		tokens:       tokens,
		publisher:    publisher,
		retry:        cfg.retry,
		seen:         seen,
		accelerate:   cfg.accelerate,
		reconnects:   reconnects,
		fingerprints: types.NewSet[string](),
	}
}
