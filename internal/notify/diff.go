package notify

import (
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/wallet"
)

// Diff compares two consecutive states of the same wallet and returns the
// notifications owed for the transition. prev is nil on the first cycle, in
// which case nothing is reported.
//
// Only the first newly seen token is reported when several appear at once,
// and increases of existing tokens are matched by position: scanning stops at
// the first increased position whose token id differs between the snapshots.
func Diff(prev *wallet.State, curr wallet.State, fiat FiatContext) []Event {
	if prev == nil {
		return nil
	}

	var events []Event

	if delta := curr.Balances.Total.Sub(prev.Balances.Total); delta.IsPositive() {
		events = append(events, ValueReceived{Amount: delta, Fiat: fiat})
	}

	if len(curr.Tokens) > len(prev.Tokens) {
		if e, ok := firstNewToken(prev.Tokens, curr.Tokens); ok {
			events = append(events, e)
		}
		return events
	}

	for i, token := range curr.Tokens {
		before := prev.Tokens[i]
		if !token.Balance.GreaterThan(before.Balance) {
			continue
		}
		if token.TokenID != before.TokenID {
			break
		}

		events = append(events, TokenReceived{
			TokenID: token.TokenID,
			Ticker:  token.Info.Ticker,
			Name:    token.Info.Name,
			Amount:  token.Balance.Sub(before.Balance),
		})
	}

	return events
}

func firstNewToken(prev, curr []wallet.TokenHolding) (TokenReceived, bool) {
	known := types.NewSet[string]()
	for _, token := range prev {
		known.Add(token.TokenID)
	}

	for _, token := range curr {
		if known.Has(token.TokenID) || !token.Balance.IsPositive() {
			continue
		}

		return TokenReceived{
			TokenID: token.TokenID,
			Ticker:  token.Info.Ticker,
			Name:    token.Info.Name,
			Amount:  token.Balance,
		}, true
	}

	return TokenReceived{}, false
}
