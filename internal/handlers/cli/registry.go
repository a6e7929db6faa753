package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/urfave/cli/v3"
)

// walletCommand groups the wallet management subcommands.
//
// Usage example:
//
//	walletsync wallet create
//	walletsync wallet add --mnemonic "abandon abandon ..."
//	walletsync wallet activate --name qz7m4
func walletCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:        "wallet",
		Description: "Manage the active wallet and the saved wallet list.",
		Usage:       "Creates, imports, lists, activates, renames and deletes wallets.",
		Commands: []*cli.Command{
			createWalletCommand(wallets),
			addWalletCommand(wallets),
			listWalletsCommand(wallets),
			activateWalletCommand(wallets),
			renameWalletCommand(wallets),
			deleteWalletCommand(wallets),
		},
	}
}

// createWalletCommand creates a wallet and makes it active. A fresh mnemonic
// is generated unless one is given.
func createWalletCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Creates a wallet and makes it the active one.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mnemonic",
				Usage: "BIP-39 mnemonic to restore (a new one is generated when empty)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			w, err := wallets.Create(ctx, c.String("mnemonic"))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "created %s %s\n", w.Name, w.Accounts[wallet.PathCurrent].Address)
			return nil
		},
	}
}

// addWalletCommand imports a wallet into the saved list without activating it.
func addWalletCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Adds a wallet to the saved list.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mnemonic",
				Usage: "BIP-39 mnemonic to import (a new one is generated when empty)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			w, err := wallets.AddSaved(ctx, c.String("mnemonic"))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "added %s %s\n", w.Name, w.Accounts[wallet.PathCurrent].Address)
			return nil
		},
	}
}

// listWalletsCommand prints the active wallet, marked with *, followed by the
// saved ones.
func listWalletsCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "Lists the active and saved wallets.",
		Action: func(ctx context.Context, c *cli.Command) error {
			out := c.Root().Writer

			active, err := wallets.LoadActive(ctx)
			switch {
			case err == nil:
				fmt.Fprintf(out, "* %s %s\n", active.Name, active.Accounts[wallet.PathCurrent].Address)
			case !errors.Is(err, wallet.ErrWalletNotFound):
				return err
			}

			saved, err := wallets.ListSaved(ctx)
			if err != nil {
				return err
			}

			for _, w := range saved {
				fmt.Fprintf(out, "  %s %s\n", w.Name, w.Accounts[wallet.PathCurrent].Address)
			}
			return nil
		},
	}
}

func activateWalletCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:  "activate",
		Usage: "Makes a saved wallet the active one.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Name of the saved wallet",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			w, err := wallets.Activate(ctx, c.String("name"))
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "active %s\n", w.Name)
			return nil
		},
	}
}

func renameWalletCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:  "rename",
		Usage: "Renames a wallet. Fails when the new name is already in use.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Current wallet name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "to",
				Usage:    "New wallet name",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return wallets.Rename(ctx, c.String("name"), c.String("to"))
		},
	}
}

// deleteWalletCommand removes a saved wallet. Both name and mnemonic must match.
func deleteWalletCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Deletes a saved wallet. Requires both its name and mnemonic.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Name of the saved wallet",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "mnemonic",
				Usage:    "Mnemonic of the saved wallet",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return wallets.Delete(ctx, wallet.Wallet{
				Name:     c.String("name"),
				Mnemonic: c.String("mnemonic"),
			})
		},
	}
}
