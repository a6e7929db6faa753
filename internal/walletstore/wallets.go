package walletstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/wallet"
)

const walletNameLength = 5

// LoadActive returns the active wallet with its decimals re-hydrated. A legacy
// wallet is migrated and written back before it is returned; a failed write
// back is logged and the migrated wallet is still returned.
func (s *Store) LoadActive(ctx context.Context) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, found, err := s.loadActive(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if !found {
		return wallet.Wallet{}, wallet.ErrWalletNotFound
	}

	if !w.MigrationRequired() {
		return w, nil
	}

	migrated, err := s.Migrate(w)
	if err != nil {
		return wallet.Wallet{}, err
	}

	if err := s.setRecord(ctx, KeyWallet, newWalletRecord(migrated)); err != nil {
		logger.Warn(ctx, "migrated wallet not persisted", "wallet.name", migrated.Name, "error", err)
	}

	logger.Info(ctx, "legacy wallet migrated", "wallet.name", migrated.Name)
	return migrated, nil
}

// SaveActive persists w as the active wallet. A legacy wallet is rejected
// since every derived account must exist before a wallet is written.
func (s *Store) SaveActive(ctx context.Context, w wallet.Wallet) error {
	if w.MigrationRequired() {
		return wallet.ErrMigrationRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setRecord(ctx, KeyWallet, newWalletRecord(w))
}

// ListSaved returns the saved wallets other than the active one.
func (s *Store) ListSaved(ctx context.Context) ([]wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadSaved(ctx)
	if err != nil {
		return nil, err
	}

	active, found, err := s.loadActive(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return saved, nil
	}

	return slices.DeleteFunc(saved, func(w wallet.Wallet) bool {
		return w.Name == active.Name
	}), nil
}

// UpsertSaved replaces the saved wallet sharing w's name, or appends w.
func (s *Store) UpsertSaved(ctx context.Context, w wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadSaved(ctx)
	if err != nil {
		return err
	}

	return s.saveSaved(ctx, upsert(saved, w))
}

// AddSaved derives a wallet from mnemonic, generating one when empty, and
// appends it to the saved list.
func (s *Store) AddSaved(ctx context.Context, mnemonic string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, saved, err := s.newWallet(ctx, mnemonic)
	if err != nil {
		return wallet.Wallet{}, err
	}

	if err := s.saveSaved(ctx, append(saved, w)); err != nil {
		return wallet.Wallet{}, err
	}

	logger.Info(ctx, "wallet added", "wallet.name", w.Name)
	return w, nil
}

// Create derives a wallet from mnemonic, generating one when empty, and makes
// it the active wallet. The previously active wallet stays in the saved list.
func (s *Store) Create(ctx context.Context, mnemonic string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, saved, err := s.newWallet(ctx, mnemonic)
	if err != nil {
		return wallet.Wallet{}, err
	}

	active, found, err := s.loadActive(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if found {
		saved = upsert(saved, active)
	}

	if err := s.saveSaved(ctx, append(saved, w)); err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.setRecord(ctx, KeyWallet, newWalletRecord(w)); err != nil {
		return wallet.Wallet{}, err
	}

	logger.Info(ctx, "wallet created", "wallet.name", w.Name)
	return w, nil
}

// Activate makes the saved wallet called name the active one. The current
// active wallet, with its latest state, is written back to the saved list
// first. A legacy target is migrated.
func (s *Store) Activate(ctx context.Context, name string) (wallet.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadSaved(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}

	idx := slices.IndexFunc(saved, func(w wallet.Wallet) bool { return w.Name == name })
	if idx < 0 {
		return wallet.Wallet{}, fmt.Errorf("%w: %s", wallet.ErrWalletNotFound, name)
	}
	target := saved[idx]

	active, found, err := s.loadActive(ctx)
	if err != nil {
		return wallet.Wallet{}, err
	}
	if found {
		saved = upsert(saved, active)
	}

	if target.MigrationRequired() {
		if target, err = s.Migrate(target); err != nil {
			return wallet.Wallet{}, err
		}
		saved = upsert(saved, target)
	}

	if err := s.saveSaved(ctx, saved); err != nil {
		return wallet.Wallet{}, err
	}
	if err := s.setRecord(ctx, KeyWallet, newWalletRecord(target)); err != nil {
		return wallet.Wallet{}, err
	}

	logger.Info(ctx, "wallet activated", "wallet.name", target.Name)
	return target, nil
}

// Rename renames the saved wallet oldName. It fails with ErrNameCollision,
// changing nothing, when newName is already taken. Renaming the active
// wallet renames it in both places.
func (s *Store) Rename(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rename(ctx, oldName, newName, false)
}

// RenameActive renames the active wallet and its saved entry.
func (s *Store) RenameActive(ctx context.Context, oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rename(ctx, oldName, newName, true)
}

func (s *Store) rename(ctx context.Context, oldName, newName string, activeOnly bool) error {
	if newName == "" {
		return fmt.Errorf("%w: empty name", wallet.ErrInvalidRecord)
	}

	saved, err := s.loadSaved(ctx)
	if err != nil {
		return err
	}

	active, found, err := s.loadActive(ctx)
	if err != nil {
		return err
	}

	renamesActive := found && active.Name == oldName
	if activeOnly && !renamesActive {
		return fmt.Errorf("%w: %s is not the active wallet", wallet.ErrWalletNotFound, oldName)
	}

	taken := func(w wallet.Wallet) bool { return w.Name == newName }
	if slices.ContainsFunc(saved, taken) || (found && active.Name == newName) {
		return fmt.Errorf("%w: %s", wallet.ErrNameCollision, newName)
	}

	idx := slices.IndexFunc(saved, func(w wallet.Wallet) bool { return w.Name == oldName })
	if idx < 0 && !renamesActive {
		return fmt.Errorf("%w: %s", wallet.ErrWalletNotFound, oldName)
	}

	previous := slices.Clone(saved)
	if idx >= 0 {
		saved[idx].Name = newName
		if err := s.saveSaved(ctx, saved); err != nil {
			return err
		}
	}

	if renamesActive {
		active.Name = newName
		if err := s.setRecord(ctx, KeyWallet, newWalletRecord(active)); err != nil {
			// The saved entry must not keep a name the active record lacks.
			if idx >= 0 {
				if rbErr := s.saveSaved(ctx, previous); rbErr != nil {
					logger.Error(ctx, "saved wallets not restored after failed rename",
						"wallet.name", oldName,
						"error", rbErr,
					)
				}
			}
			return err
		}
	}

	logger.Info(ctx, "wallet renamed", "wallet.name", newName, "wallet.previous_name", oldName)
	return nil
}

// Delete removes the saved wallet matching both w's name and mnemonic.
func (s *Store) Delete(ctx context.Context, w wallet.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, err := s.loadSaved(ctx)
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(saved, func(sw wallet.Wallet) bool {
		return sw.Name == w.Name && sw.Mnemonic == w.Mnemonic
	})
	if idx < 0 {
		return fmt.Errorf("%w: %s", wallet.ErrWalletNotFound, w.Name)
	}

	if err := s.saveSaved(ctx, slices.Delete(saved, idx, idx+1)); err != nil {
		return err
	}

	logger.Info(ctx, "wallet deleted", "wallet.name", w.Name)
	return nil
}

// Migrate re-derives every account of w from its mnemonic. Name and state
// are kept. Derivation is deterministic, so migrating twice is a no-op.
func (s *Store) Migrate(w wallet.Wallet) (wallet.Wallet, error) {
	accounts, err := s.deriveAccounts(w.Mnemonic)
	if err != nil {
		return wallet.Wallet{}, err
	}

	migrated := w.Clone()
	migrated.Accounts = accounts
	return migrated, nil
}

func (s *Store) deriveAccounts(mnemonic string) (map[string]wallet.Account, error) {
	accounts := make(map[string]wallet.Account, len(wallet.Paths))
	for _, path := range wallet.Paths {
		acc, err := s.deriver.DeriveAccount(mnemonic, path)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}
		accounts[path] = acc
	}
	return accounts, nil
}

// newWallet derives a wallet that clashes with nothing already stored. It
// returns the saved list it was checked against. Must be called with mu held.
func (s *Store) newWallet(ctx context.Context, mnemonic string) (wallet.Wallet, []wallet.Wallet, error) {
	if mnemonic == "" {
		var err error
		if mnemonic, err = s.deriver.NewMnemonic(); err != nil {
			return wallet.Wallet{}, nil, fmt.Errorf("generate mnemonic: %w", err)
		}
	}

	accounts, err := s.deriveAccounts(mnemonic)
	if err != nil {
		return wallet.Wallet{}, nil, err
	}

	w := wallet.Wallet{
		Mnemonic: mnemonic,
		Name:     defaultName(accounts[wallet.PathCurrent].Address),
		Accounts: accounts,
	}

	saved, err := s.loadSaved(ctx)
	if err != nil {
		return wallet.Wallet{}, nil, err
	}

	active, found, err := s.loadActive(ctx)
	if err != nil {
		return wallet.Wallet{}, nil, err
	}

	existing := saved
	if found {
		existing = append(slices.Clone(saved), active)
	}

	for _, other := range existing {
		if other.Mnemonic == w.Mnemonic {
			return wallet.Wallet{}, nil, fmt.Errorf("%w: %s", wallet.ErrDuplicateWallet, other.Name)
		}
		if other.Name == w.Name {
			return wallet.Wallet{}, nil, fmt.Errorf("%w: %s", wallet.ErrNameCollision, w.Name)
		}
	}

	return w, saved, nil
}

func defaultName(address string) string {
	if len(address) <= walletNameLength {
		return address
	}
	return address[len(address)-walletNameLength:]
}

func upsert(saved []wallet.Wallet, w wallet.Wallet) []wallet.Wallet {
	idx := slices.IndexFunc(saved, func(sw wallet.Wallet) bool { return sw.Name == w.Name })
	if idx < 0 {
		return append(saved, w)
	}
	saved[idx] = w
	return saved
}

func (s *Store) loadActive(ctx context.Context) (wallet.Wallet, bool, error) {
	var rec walletRecord
	found, err := s.getRecord(ctx, KeyWallet, &rec)
	if err != nil || !found {
		return wallet.Wallet{}, found, err
	}

	w, err := rec.hydrate()
	if err != nil {
		return wallet.Wallet{}, false, err
	}
	return w, true, nil
}

func (s *Store) loadSaved(ctx context.Context) ([]wallet.Wallet, error) {
	var records []walletRecord
	found, err := s.getRecord(ctx, KeySavedWallets, &records)
	if err != nil || !found {
		return nil, err
	}

	saved := make([]wallet.Wallet, 0, len(records))
	for _, rec := range records {
		w, err := rec.hydrate()
		if err != nil {
			return nil, err
		}
		saved = append(saved, w)
	}
	return saved, nil
}

func (s *Store) saveSaved(ctx context.Context, saved []wallet.Wallet) error {
	records := make([]walletRecord, 0, len(saved))
	for _, w := range saved {
		records = append(records, newWalletRecord(w))
	}
	return s.setRecord(ctx, KeySavedWallets, records)
}
