package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gabapcia/walletsync/internal/notify"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/urfave/cli/v3"
)

// startEngineCommand returns a CLI command that runs the sync engine for the
// active wallet, together with the fiat price poller, and prints every event
// it emits.
//
// Usage example:
//
//	walletsync start
//
// The process runs until it receives an interrupt (SIGINT or SIGTERM), the
// context is cancelled or the event stream closes.
func startEngineCommand(wallets Wallets, engine Engine, prices Prices, events <-chan notify.Event) *cli.Command {
	return &cli.Command{
		Name:        "start",
		Description: "Runs the sync engine for the active wallet and prints its events.",
		Usage:       "Starts syncing the active wallet. Terminates gracefully on Ctrl+C or termination signals.",
		Action: func(ctx context.Context, c *cli.Command) error {
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			w, err := wallets.LoadActive(ctx)
			if err != nil {
				return err
			}

			if err := prices.Start(ctx); err != nil {
				return err
			}
			defer prices.Close()

			if err := engine.Start(ctx); err != nil {
				return err
			}
			defer engine.Close()

			engine.Activate(ctx, w)

			out := c.Root().Writer
			for {
				select {
				case <-quit:
					return nil
				case <-ctx.Done():
					return nil
				case e, ok := <-events:
					if !ok {
						return nil
					}
					printEvent(out, e)
				}
			}
		},
	}
}

// syncOnceCommand returns a CLI command that runs one sync cycle for the
// active wallet and prints the resulting balances. When the cycle fails the
// last persisted balances are printed marked as stale, followed by the error.
//
// Usage example:
//
//	walletsync sync
func syncOnceCommand(wallets Wallets, engine Engine) *cli.Command {
	return &cli.Command{
		Name:        "sync",
		Description: "Runs a single sync cycle for the active wallet.",
		Usage:       "Fetches the active wallet's unspent outputs and history once and prints its balances.",
		Action: func(ctx context.Context, c *cli.Command) error {
			w, err := wallets.LoadActive(ctx)
			if err != nil {
				return err
			}

			engine.Activate(ctx, w)
			cycleErr := engine.RunCycle(ctx)

			synced, _ := engine.Wallet()
			printBalances(c.Root().Writer, synced, engine.Healthy())
			return cycleErr
		},
	}
}

func printEvent(out io.Writer, e notify.Event) {
	switch e := e.(type) {
	case notify.ValueReceived:
		if fiat, ok := e.Fiat.Value(e.Amount); ok {
			fmt.Fprintf(out, "%s amount=%s fiat=%s %s\n", notify.Name(e), e.Amount, fiat.StringFixed(2), e.Fiat.Currency)
			return
		}
		fmt.Fprintf(out, "%s amount=%s\n", notify.Name(e), e.Amount)
	case notify.TokenReceived:
		fmt.Fprintf(out, "%s token=%s ticker=%s amount=%s\n", notify.Name(e), e.TokenID, e.Ticker, e.Amount)
	case notify.SyncFailed:
		fmt.Fprintf(out, "%s reason=%q\n", notify.Name(e), e.Reason)
	case notify.BalanceUpdated:
		fmt.Fprintf(out, "%s balance=%s tokens=%d\n", notify.Name(e), e.State.Balances.Total, len(e.State.Tokens))
	}
}

// printBalances marks the balance stale when the engine's last cycle failed.
func printBalances(out io.Writer, w wallet.Wallet, healthy bool) {
	fmt.Fprintf(out, "wallet %s (%s)\n", w.Name, w.Accounts[wallet.PathCurrent].Address)
	if healthy {
		fmt.Fprintf(out, "balance %s\n", w.State.Balances.Total)
	} else {
		fmt.Fprintf(out, "balance %s stale\n", w.State.Balances.Total)
	}
	for _, h := range w.State.Tokens {
		fmt.Fprintf(out, "token %s %s %s\n", h.Info.Ticker, h.Balance, h.TokenID)
	}
}
