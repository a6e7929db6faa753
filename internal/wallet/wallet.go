// Package wallet holds the domain model shared by the synchronization engine:
// wallets and their derived accounts, the recomputed wallet state, token
// metadata and parsed transactions.
package wallet

import (
	"maps"

	"github.com/gabapcia/walletsync/internal/pkg/types"
)

// Derivation paths every wallet carries an account for.
const (
	PathLegacy    = "m/44'/145'/0'/0/0"
	PathMigration = "m/44'/245'/0'/0/0"
	PathCurrent   = "m/44'/1899'/0'/0/0"
)

// Paths lists the derivation paths in the order fingerprints are queried.
var Paths = []string{PathMigration, PathLegacy, PathCurrent}

// Account is the key material derived for one path.
type Account struct {
	PublicKey  string
	Hash160    string
	Address    string
	SigningKey string
}

// Wallet is identified by its mnemonic. Accounts are keyed by derivation path.
type Wallet struct {
	Mnemonic string
	Name     string
	Accounts map[string]Account
	State    State
}

// Fingerprints returns the hash160 of every account the wallet has, following
// Paths order. Accounts without a hash160 are skipped.
func (w Wallet) Fingerprints() []string {
	fingerprints := make([]string, 0, len(Paths))
	for _, path := range Paths {
		if acc, ok := w.Accounts[path]; ok && acc.Hash160 != "" {
			fingerprints = append(fingerprints, acc.Hash160)
		}
	}
	return fingerprints
}

// FingerprintSet is Fingerprints as a set.
func (w Wallet) FingerprintSet() types.Set[string] {
	return types.NewSet(w.Fingerprints()...)
}

// MigrationRequired reports whether the wallet predates the current path or
// misses a public key on any path. Such a wallet must be re-derived from its
// mnemonic before it is synced.
func (w Wallet) MigrationRequired() bool {
	if _, ok := w.Accounts[PathCurrent]; !ok {
		return true
	}

	for _, path := range Paths {
		if acc, ok := w.Accounts[path]; !ok || acc.PublicKey == "" {
			return true
		}
	}

	return false
}

// Clone returns a deep copy of the wallet.
func (w Wallet) Clone() Wallet {
	w.Accounts = maps.Clone(w.Accounts)
	w.State = w.State.Clone()
	return w
}
