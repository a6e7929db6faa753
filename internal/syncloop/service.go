// Package syncloop schedules sync cycles for the active wallet. Cycles are
// serialized; triggers arriving while one runs are coalesced. The refresh
// interval follows the push channel state and is shortened for one cycle
// after a pending transaction or a wallet switch.
package syncloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabapcia/walletsync/internal/eventchannel"
	"github.com/gabapcia/walletsync/internal/ledgersync"
	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/x/chflow"
	"github.com/gabapcia/walletsync/internal/tokencache"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrServiceAlreadyStarted = errors.New("service already started")
	ErrCycleInProgress       = errors.New("sync cycle already in progress")
	ErrNoActiveWallet        = errors.New("no active wallet")
)

const instrumentationName = "github.com/gabapcia/walletsync/internal/syncloop"

const (
	defaultConnectedInterval    = 10 * time.Second
	defaultDisconnectedInterval = 5 * time.Second
	defaultAcceleratedInterval  = 10 * time.Millisecond
)

type Syncer interface {
	Sync(ctx context.Context, w wallet.Wallet, cache wallet.TokenCache) (ledgersync.Result, error)
	Failover(ctx context.Context) int
}

type WalletStore interface {
	SaveActive(ctx context.Context, w wallet.Wallet) error
}

type EventChannel interface {
	Initialize(ctx context.Context, w wallet.Wallet, fiat notify.FiatContext) error
	State() eventchannel.State
}

type PriceSource interface {
	Current() notify.FiatContext
}

type Service interface {
	Start(ctx context.Context) error
	Close()

	// RunCycle runs one sync cycle now. It returns ErrCycleInProgress without
	// doing anything when another cycle is running.
	RunCycle(ctx context.Context) error

	// Activate switches the engine to w. The next cycle runs immediately and
	// never notifies.
	Activate(ctx context.Context, w wallet.Wallet)

	// Accelerate shortens the wait before the next cycle, once.
	Accelerate()

	// OnFiatChange rebinds the live push channel to the new fiat context.
	OnFiatChange(ctx context.Context, fiat notify.FiatContext)

	// Healthy reports whether the last cycle completed.
	Healthy() bool

	// Wallet returns a copy of the active wallet.
	Wallet() (wallet.Wallet, bool)
}

type closeFunc func()

type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc closeFunc

	cycleMu sync.Mutex

	stateMu    sync.Mutex
	wallet     wallet.Wallet
	hasWallet  bool
	prev       *wallet.State
	generation uint64

	healthy    atomic.Bool
	accelerate chan struct{}

	syncer    Syncer
	store     WalletStore
	channel   EventChannel
	prices    PriceSource
	tokens    *tokencache.Store
	publisher notify.Publisher

	connectedInterval    time.Duration
	disconnectedInterval time.Duration
	acceleratedInterval  time.Duration

	tracer    trace.Tracer
	cycles    metric.Int64Counter
	failures  metric.Int64Counter
	coalesced metric.Int64Counter
}

var _ Service = (*service)(nil)

func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.closeFunc = func() {
		cancel()
		<-done
	}

	go func() {
		defer close(done)
		s.run(ctx)
	}()

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

func (s *service) run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.accelerate:
			timer.Reset(s.acceleratedInterval)
		case <-timer.C:
			if err := s.RunCycle(ctx); errors.Is(err, ErrNoActiveWallet) {
				logger.Debug(ctx, "sync skipped: no active wallet")
			}
			timer.Reset(s.nextInterval())
		}
	}
}

func (s *service) nextInterval() time.Duration {
	if s.channel.State() == eventchannel.Connected {
		return s.connectedInterval
	}
	return s.disconnectedInterval
}

func (s *service) Accelerate() {
	chflow.TrySend(s.accelerate, struct{}{})
}

func (s *service) Healthy() bool {
	return s.healthy.Load()
}

func (s *service) Wallet() (wallet.Wallet, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	return s.wallet.Clone(), s.hasWallet
}

func (s *service) Activate(ctx context.Context, w wallet.Wallet) {
	s.stateMu.Lock()
	s.wallet = w.Clone()
	s.hasWallet = true
	s.prev = nil
	s.generation++
	s.stateMu.Unlock()

	ctx = logger.Derive(ctx, "wallet.name", w.Name)
	if err := s.channel.Initialize(ctx, w, s.prices.Current()); err != nil {
		logger.Warn(ctx, "push channel not initialized", "error", err)
	}

	logger.Info(ctx, "wallet activated")
	s.Accelerate()
}

func (s *service) OnFiatChange(ctx context.Context, fiat notify.FiatContext) {
	if s.channel.State() != eventchannel.Connected {
		return
	}

	w, ok := s.Wallet()
	if !ok {
		return
	}

	if err := s.channel.Initialize(ctx, w, fiat); err != nil {
		logger.Warn(ctx, "push channel not rebound to fiat context", "error", err)
	}
}

func (s *service) RunCycle(ctx context.Context) error {
	if !s.cycleMu.TryLock() {
		s.coalesced.Add(ctx, 1)
		return ErrCycleInProgress
	}
	defer s.cycleMu.Unlock()

	s.stateMu.Lock()
	w, hasWallet, generation := s.wallet.Clone(), s.hasWallet, s.generation
	s.stateMu.Unlock()

	if !hasWallet {
		return ErrNoActiveWallet
	}

	cycleID, err := uuid.NewV7()
	if err != nil {
		cycleID = uuid.New()
	}

	ctx = logger.Derive(ctx, "cycle.id", cycleID.String(), "wallet.name", w.Name)
	ctx, span := s.tracer.Start(ctx, "syncloop.Cycle", trace.WithAttributes(
		attribute.String("cycle.id", cycleID.String()),
	))
	defer span.End()

	s.cycles.Add(ctx, 1)

	result, err := s.syncer.Sync(ctx, w, s.tokens.Snapshot())
	if err != nil {
		s.fail(ctx, span, err)
		return err
	}

	s.healthy.Store(true)

	if result.CacheChanged {
		if _, err := s.tokens.Merge(ctx, result.Cache); err != nil {
			logger.Warn(ctx, "token cache not persisted", "error", err)
		}
	}

	s.stateMu.Lock()
	if generation != s.generation {
		s.stateMu.Unlock()
		logger.Debug(ctx, "sync result discarded: wallet switched")
		return nil
	}

	prev := s.prev
	curr := result.State
	snapshot := curr.Clone()
	s.prev = &snapshot
	s.wallet.State = curr.Clone()
	active := s.wallet.Clone()
	s.stateMu.Unlock()

	if err := s.store.SaveActive(ctx, active); err != nil {
		logger.Warn(ctx, "wallet state not persisted", "error", err)
	}

	fiat := s.prices.Current()
	if s.channel.State() != eventchannel.Connected {
		for _, event := range notify.Diff(prev, curr, fiat) {
			s.publisher.Publish(ctx, event)
		}
	}
	if s.channel.State() == eventchannel.Disconnected {
		if err := s.channel.Initialize(ctx, active, fiat); err != nil {
			logger.Warn(ctx, "push channel not initialized", "error", err)
		}
	}

	s.publisher.Publish(ctx, notify.BalanceUpdated{State: curr.Clone()})

	logger.Debug(ctx, "sync cycle completed",
		"endpoint.index", result.Endpoint,
		"wallet.balance", curr.Balances.Total.String(),
		"wallet.tokens", len(curr.Tokens),
	)
	return nil
}

func (s *service) fail(ctx context.Context, span trace.Span, err error) {
	s.healthy.Store(false)
	s.failures.Add(ctx, 1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	if errors.Is(err, wallet.ErrBackendUnavailable) {
		s.syncer.Failover(ctx)
	}

	logger.Warn(ctx, "sync cycle failed", "error", err)
	s.publisher.Publish(ctx, notify.SyncFailed{Reason: err})
}

type config struct {
	connectedInterval    time.Duration
	disconnectedInterval time.Duration
	acceleratedInterval  time.Duration
}

type Option func(*config)

// WithIntervals sets the refresh intervals used while the push channel is
// connected, while it is not, and right after an acceleration.
func WithIntervals(connected, disconnected, accelerated time.Duration) Option {
	return func(c *config) {
		c.connectedInterval = connected
		c.disconnectedInterval = disconnected
		c.acceleratedInterval = accelerated
	}
}

func New(
	syncer Syncer,
	store WalletStore,
	channel EventChannel,
	prices PriceSource,
	tokens *tokencache.Store,
	publisher notify.Publisher,
	opts ...Option,
) *service {
	cfg := config{
		connectedInterval:    defaultConnectedInterval,
		disconnectedInterval: defaultDisconnectedInterval,
		acceleratedInterval:  defaultAcceleratedInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	meter := otel.Meter(instrumentationName)

	return &service{
		accelerate:           make(chan struct{}, 1),
		syncer:               syncer,
		store:                store,
		channel:              channel,
		prices:               prices,
		tokens:               tokens,
		publisher:            publisher,
		connectedInterval:    cfg.connectedInterval,
		disconnectedInterval: cfg.disconnectedInterval,
		acceleratedInterval:  cfg.acceleratedInterval,
		tracer:               otel.Tracer(instrumentationName),
		cycles:               counter(meter, "walletsync.sync.cycles", "Sync cycles started"),
		failures:             counter(meter, "walletsync.sync.failures", "Sync cycles that failed"),
		coalesced:            counter(meter, "walletsync.sync.coalesced", "Triggers dropped while a cycle was running"),
	}
}

func counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return c
}
