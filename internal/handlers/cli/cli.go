package cli

import (
	"context"
	"os"

	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/wallet"
	"github.com/gabapcia/walletsync/internal/walletstore"

	"github.com/urfave/cli/v3"
)

// Wallets is the persisted wallet, settings and contact surface the commands
// operate on.
type Wallets interface {
	LoadActive(ctx context.Context) (wallet.Wallet, error)
	ListSaved(ctx context.Context) ([]wallet.Wallet, error)
	Create(ctx context.Context, mnemonic string) (wallet.Wallet, error)
	AddSaved(ctx context.Context, mnemonic string) (wallet.Wallet, error)
	Activate(ctx context.Context, name string) (wallet.Wallet, error)
	Rename(ctx context.Context, oldName, newName string) error
	Delete(ctx context.Context, w wallet.Wallet) error

	UpdateSettings(ctx context.Context, key string, value any) (walletstore.Settings, error)
	ContactList(ctx context.Context) ([]walletstore.Contact, error)
	UpdateContactList(ctx context.Context, contacts []walletstore.Contact) error
}

// Engine runs sync cycles for the active wallet.
type Engine interface {
	Start(ctx context.Context) error
	Close()
	Activate(ctx context.Context, w wallet.Wallet)
	RunCycle(ctx context.Context) error
	Wallet() (wallet.Wallet, bool)
	Healthy() bool
}

// Prices is the fiat price poller.
type Prices interface {
	Start(ctx context.Context) error
	Close()
	SetCurrency(ctx context.Context, currency string)
}

// Run initializes and executes the walletsync CLI application.
//
// It registers all available commands, including:
//
//   - `start`: Runs the sync engine until interrupted, printing its events.
//   - `sync`: Runs a single sync cycle and prints the resulting balances.
//   - `wallet`: Creates, imports, lists, activates, renames and deletes wallets.
//   - `settings`: Updates a user setting.
//   - `contacts`: Manages the contact list.
//
// Events emitted by the engine are read from events while `start` runs.
func Run(ctx context.Context, wallets Wallets, engine Engine, prices Prices, events <-chan notify.Event) error {
	return newApp(wallets, engine, prices, events).Run(ctx, os.Args)
}

func newApp(wallets Wallets, engine Engine, prices Prices, events <-chan notify.Event) *cli.Command {
	return &cli.Command{
		EnableShellCompletion: true,
		Name:                  "walletsync",
		Description:           "Command-line interface for synchronizing wallet state against a remote indexer.",
		Usage:                 "walletsync [command] [flags]",
		Commands: []*cli.Command{
			startEngineCommand(wallets, engine, prices, events),
			syncOnceCommand(wallets, engine),
			walletCommand(wallets),
			settingsCommand(wallets, prices),
			contactsCommand(wallets),
		},
	}
}
