package cli

import (
	"context"

	"github.com/gabapcia/walletsync/internal/wallet"
	"github.com/gabapcia/walletsync/internal/walletstore"

	"github.com/stretchr/testify/mock"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

type WalletsMock struct {
	mock.Mock
}

func NewWalletsMock(t testingT) *WalletsMock {
	m := &WalletsMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *WalletsMock) LoadActive(ctx context.Context) (wallet.Wallet, error) {
	ret := m.Called(ctx)
	return ret.Get(0).(wallet.Wallet), ret.Error(1)
}

func (m *WalletsMock) ListSaved(ctx context.Context) ([]wallet.Wallet, error) {
	ret := m.Called(ctx)
	return ret.Get(0).([]wallet.Wallet), ret.Error(1)
}

func (m *WalletsMock) Create(ctx context.Context, mnemonic string) (wallet.Wallet, error) {
	ret := m.Called(ctx, mnemonic)
	return ret.Get(0).(wallet.Wallet), ret.Error(1)
}

func (m *WalletsMock) AddSaved(ctx context.Context, mnemonic string) (wallet.Wallet, error) {
	ret := m.Called(ctx, mnemonic)
	return ret.Get(0).(wallet.Wallet), ret.Error(1)
}

func (m *WalletsMock) Activate(ctx context.Context, name string) (wallet.Wallet, error) {
	ret := m.Called(ctx, name)
	return ret.Get(0).(wallet.Wallet), ret.Error(1)
}

func (m *WalletsMock) Rename(ctx context.Context, oldName, newName string) error {
	return m.Called(ctx, oldName, newName).Error(0)
}

func (m *WalletsMock) Delete(ctx context.Context, w wallet.Wallet) error {
	return m.Called(ctx, w).Error(0)
}

func (m *WalletsMock) UpdateSettings(ctx context.Context, key string, value any) (walletstore.Settings, error) {
	ret := m.Called(ctx, key, value)
	return ret.Get(0).(walletstore.Settings), ret.Error(1)
}

func (m *WalletsMock) ContactList(ctx context.Context) ([]walletstore.Contact, error) {
	ret := m.Called(ctx)
	return ret.Get(0).([]walletstore.Contact), ret.Error(1)
}

func (m *WalletsMock) UpdateContactList(ctx context.Context, contacts []walletstore.Contact) error {
	return m.Called(ctx, contacts).Error(0)
}

type EngineMock struct {
	mock.Mock
}

func NewEngineMock(t testingT) *EngineMock {
	m := &EngineMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *EngineMock) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *EngineMock) Close() {
	m.Called()
}

func (m *EngineMock) Activate(ctx context.Context, w wallet.Wallet) {
	m.Called(ctx, w)
}

func (m *EngineMock) RunCycle(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *EngineMock) Wallet() (wallet.Wallet, bool) {
	ret := m.Called()
	return ret.Get(0).(wallet.Wallet), ret.Bool(1)
}

func (m *EngineMock) Healthy() bool {
	return m.Called().Bool(0)
}

type PricesMock struct {
	mock.Mock
}

func NewPricesMock(t testingT) *PricesMock {
	m := &PricesMock{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *PricesMock) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *PricesMock) Close() {
	m.Called()
}

func (m *PricesMock) SetCurrency(ctx context.Context, currency string) {
	m.Called(ctx, currency)
}
