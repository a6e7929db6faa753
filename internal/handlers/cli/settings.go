package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gabapcia/walletsync/internal/walletstore"

	"github.com/urfave/cli/v3"
)

const fiatCurrencySetting = "fiatCurrency"

func settingsCommand(wallets Wallets, prices Prices) *cli.Command {
	return &cli.Command{
		Name:        "settings",
		Description: "Manage user settings.",
		Commands: []*cli.Command{
			setSettingCommand(wallets, prices),
		},
	}
}

// setSettingCommand updates a single setting. The value is read as JSON when
// it parses (true, false, numbers) and as a plain string otherwise.
//
// Usage example:
//
//	walletsync settings set --key fiatCurrency --value eur
//	walletsync settings set --key balanceVisible --value false
func setSettingCommand(wallets Wallets, prices Prices) *cli.Command {
	return &cli.Command{
		Name:  "set",
		Usage: "Updates one setting.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "key",
				Usage:    "Setting name (e.g., fiatCurrency, balanceVisible)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "value",
				Usage:    "New value",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			key := c.String("key")

			settings, err := wallets.UpdateSettings(ctx, key, parseSettingValue(c.String("value")))
			if err != nil {
				return err
			}

			if key == fiatCurrencySetting {
				prices.SetCurrency(ctx, settings.FiatCurrency)
			}

			fmt.Fprintf(c.Root().Writer, "%s updated\n", key)
			return nil
		},
	}
}

func parseSettingValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

func contactsCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:        "contacts",
		Description: "Manage the contact list.",
		Commands: []*cli.Command{
			addContactCommand(wallets),
		},
	}
}

// addContactCommand appends a contact to the stored list.
//
// Usage example:
//
//	walletsync contacts add --name alice --address ecash:qz...
func addContactCommand(wallets Wallets) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Adds a contact.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Contact name",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "address",
				Usage:    "Contact address",
				Required: true,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			contacts, err := wallets.ContactList(ctx)
			if err != nil {
				return err
			}

			contacts = append(contacts, walletstore.Contact{
				Name:    c.String("name"),
				Address: c.String("address"),
			})

			return wallets.UpdateContactList(ctx, contacts)
		},
	}
}
