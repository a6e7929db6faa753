package wallet

import (
	"maps"

	"github.com/shopspring/decimal"
)

// TokenInfo is the genesis metadata of a token. It never changes once issued.
type TokenInfo struct {
	TokenID  string
	Ticker   string
	Name     string
	Decimals int32
}

// Display converts a raw token quantity to its display value.
func (i TokenInfo) Display(raw decimal.Decimal) decimal.Decimal {
	return raw.Shift(-i.Decimals)
}

// TokenHolding is a non-zero balance of one token.
type TokenHolding struct {
	TokenID string
	Balance decimal.Decimal
	Info    TokenInfo
}

// TokenCache maps token ids to their genesis metadata. Entries are only ever added.
type TokenCache map[string]TokenInfo

// Clone returns an independent copy. A nil cache clones to an empty one.
func (c TokenCache) Clone() TokenCache {
	if c == nil {
		return make(TokenCache)
	}
	return maps.Clone(c)
}

// Merge returns a new cache holding the union of c and other. On identical
// keys other wins. changed is false when other adds nothing new.
func (c TokenCache) Merge(other TokenCache) (merged TokenCache, changed bool) {
	merged = c.Clone()
	for id, info := range other {
		if existing, ok := merged[id]; !ok || existing != info {
			changed = true
		}
		merged[id] = info
	}
	return merged, changed
}
