package tokencache

import (
	"context"

	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/stretchr/testify/mock"
)

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

type PersisterMock struct {
	mock.Mock
}

func NewPersisterMock(t interface {
	mock.TestingT
	Cleanup(func())
}) *PersisterMock {
	m := &PersisterMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *PersisterMock) SaveTokenCache(ctx context.Context, cache wallet.TokenCache) error {
	return m.Called(ctx, cache).Error(0)
}
