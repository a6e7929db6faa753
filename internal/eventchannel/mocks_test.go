package eventchannel

import (
	"context"
	"sync"

	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/stretchr/testify/mock"
)

type TxLookupMock struct {
	mock.Mock
}

func NewTxLookupMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *TxLookupMock {
	m := &TxLookupMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TxLookupMock) Tx(ctx context.Context, txid string) (wallet.Tx, error) {
	ret := m.Called(ctx, txid)
	return ret.Get(0).(wallet.Tx), ret.Error(1)
}

type GenesisLookupMock struct {
	mock.Mock
}

func NewGenesisLookupMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *GenesisLookupMock {
	m := &GenesisLookupMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *GenesisLookupMock) TokenInfo(ctx context.Context, tokenID string) (wallet.TokenInfo, error) {
	ret := m.Called(ctx, tokenID)
	return ret.Get(0).(wallet.TokenInfo), ret.Error(1)
}

type fakeConn struct {
	mu       sync.Mutex
	subs     types.Set[string]
	calls    []string
	messages chan Message
	closed   bool
}

func newFakeConn(subs ...string) *fakeConn {
	return &fakeConn{
		subs:     types.NewSet(subs...),
		messages: make(chan Message, 16),
	}
}

func (c *fakeConn) Subscribe(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs.Add(fingerprint)
	c.calls = append(c.calls, "subscribe:"+fingerprint)
	return nil
}

func (c *fakeConn) Unsubscribe(_ context.Context, fingerprint string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subs.Delete(fingerprint)
	c.calls = append(c.calls, "unsubscribe:"+fingerprint)
	return nil
}

func (c *fakeConn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.subs.ToSlice()
}

func (c *fakeConn) Messages() <-chan Message {
	return c.messages
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *fakeConn) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.calls...)
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

type fakeTransport struct {
	mu    sync.Mutex
	conn  Conn
	err   error
	opens int
}

func (t *fakeTransport) Open(context.Context) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.opens++
	if t.err != nil {
		return nil, t.err
	}
	return t.conn, nil
}

func (t *fakeTransport) Opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.opens
}
