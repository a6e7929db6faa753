package syncloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gabapcia/walletsync/internal/eventchannel"
	"github.com/gabapcia/walletsync/internal/ledgersync"
	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/stretchr/testify/mock"
)

type SyncerMock struct {
	mock.Mock
}

func NewSyncerMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *SyncerMock {
	m := &SyncerMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SyncerMock) Sync(ctx context.Context, w wallet.Wallet, cache wallet.TokenCache) (ledgersync.Result, error) {
	ret := m.Called(ctx, w, cache)
	return ret.Get(0).(ledgersync.Result), ret.Error(1)
}

func (m *SyncerMock) Failover(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

type WalletStoreMock struct {
	mock.Mock
}

func NewWalletStoreMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *WalletStoreMock {
	m := &WalletStoreMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *WalletStoreMock) SaveActive(ctx context.Context, w wallet.Wallet) error {
	return m.Called(ctx, w).Error(0)
}

type fakeChannel struct {
	mu    sync.Mutex
	state atomic.Int32
	inits []notify.FiatContext
	err   error
}

func (c *fakeChannel) Initialize(_ context.Context, _ wallet.Wallet, fiat notify.FiatContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inits = append(c.inits, fiat)
	if c.err != nil {
		return c.err
	}
	return nil
}

func (c *fakeChannel) State() eventchannel.State {
	return eventchannel.State(c.state.Load())
}

func (c *fakeChannel) setState(s eventchannel.State) {
	c.state.Store(int32(s))
}

func (c *fakeChannel) initCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.inits)
}

type fixedPrice struct {
	fiat notify.FiatContext
}

func (p fixedPrice) Current() notify.FiatContext {
	return p.fiat
}
