package walletstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gabapcia/walletsync/internal/wallet"
)

var errBackend = errors.New("disk unavailable")

type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	failKey string // when set, setErr only applies to this key
	setKeys []string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getErr != nil {
		return nil, m.getErr
	}

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.setErr != nil && (m.failKey == "" || m.failKey == key) {
		return m.setErr
	}

	m.data[key] = value
	m.setKeys = append(m.setKeys, key)
	return nil
}

func (m *memKV) raw(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return string(m.data[key])
}

func (m *memKV) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = []byte(value)
}

// fakeDeriver derives accounts from the mnemonic text so the wallet name,
// the last five characters of the current address, is the mnemonic's tail.
type fakeDeriver struct {
	mu        sync.Mutex
	generated int
	err       error
}

func (d *fakeDeriver) NewMnemonic() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generated++
	return fmt.Sprintf("generated-%05d", d.generated), nil
}

func (d *fakeDeriver) DeriveAccount(mnemonic, path string) (wallet.Account, error) {
	if d.err != nil {
		return wallet.Account{}, d.err
	}

	tag := strings.NewReplacer("'", "", "/", "").Replace(path)
	return wallet.Account{
		PublicKey:  "pk-" + tag + "-" + mnemonic,
		Hash160:    "h-" + tag + "-" + mnemonic,
		Address:    "addr-" + tag + "-" + mnemonic,
		SigningKey: "wif-" + tag + "-" + mnemonic,
	}, nil
}
