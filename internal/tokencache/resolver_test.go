package tokencache

import (
	"errors"
	"testing"

	"github.com/gabapcia/walletsync/internal/pkg/logger"
	"github.com/gabapcia/walletsync/internal/pkg/types"
	"github.com/gabapcia/walletsync/internal/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	_ = logger.Init(logger.WithLevel("error"))
}

var (
	infoA = wallet.TokenInfo{TokenID: "a", Ticker: "AAA", Name: "Token A", Decimals: 2}
	infoB = wallet.TokenInfo{TokenID: "b", Ticker: "BBB", Name: "Token B"}
)

func TestResolver_Resolve(t *testing.T) {
	t.Run("looks up only missing ids", func(t *testing.T) {
		lookup := NewGenesisLookupMock(t)
		lookup.On("TokenInfo", mock.Anything, "b").Return(infoB, nil).Once()

		cache := wallet.TokenCache{"a": infoA}
		res := NewResolver(lookup, WithRateLimit(1000)).Resolve(t.Context(), types.NewSet("a", "b"), cache)

		assert.True(t, res.Changed)
		assert.Equal(t, []wallet.TokenInfo{infoA, infoB}, res.Tokens)
		assert.Equal(t, wallet.TokenCache{"a": infoA, "b": infoB}, res.Cache)
		assert.Empty(t, res.Unresolved)
		assert.Equal(t, wallet.TokenCache{"a": infoA}, cache, "input cache must not be mutated")
	})

	t.Run("cache hit issues no lookup", func(t *testing.T) {
		lookup := NewGenesisLookupMock(t)
		r := NewResolver(lookup, WithRateLimit(1000))

		res := r.Resolve(t.Context(), types.NewSet("a"), wallet.TokenCache{"a": infoA})

		assert.False(t, res.Changed)
		assert.Equal(t, []wallet.TokenInfo{infoA}, res.Tokens)
		lookup.AssertNotCalled(t, "TokenInfo", mock.Anything, mock.Anything)
	})

	t.Run("second resolution of the same id is a cache hit", func(t *testing.T) {
		lookup := NewGenesisLookupMock(t)
		lookup.On("TokenInfo", mock.Anything, "a").Return(infoA, nil).Once()
		r := NewResolver(lookup, WithRateLimit(1000))

		first := r.Resolve(t.Context(), types.NewSet("a"), nil)
		second := r.Resolve(t.Context(), types.NewSet("a"), first.Cache)

		assert.True(t, first.Changed)
		assert.False(t, second.Changed)
		assert.Equal(t, first.Cache, second.Cache)
	})

	t.Run("one failure does not abort the others", func(t *testing.T) {
		lookup := NewGenesisLookupMock(t)
		lookup.On("TokenInfo", mock.Anything, "a").Return(wallet.TokenInfo{}, errors.New("timeout")).Once()
		lookup.On("TokenInfo", mock.Anything, "b").Return(infoB, nil).Once()

		res := NewResolver(lookup, WithRateLimit(1000)).Resolve(t.Context(), types.NewSet("a", "b"), wallet.TokenCache{})

		assert.True(t, res.Changed)
		assert.Equal(t, []wallet.TokenInfo{infoB}, res.Tokens)
		assert.Equal(t, []string{"a"}, res.Unresolved)
		assert.NotContains(t, res.Cache, "a")
	})

	t.Run("all failures leave cache unchanged", func(t *testing.T) {
		lookup := NewGenesisLookupMock(t)
		lookup.On("TokenInfo", mock.Anything, "a").Return(wallet.TokenInfo{}, errors.New("boom")).Once()

		res := NewResolver(lookup, WithRateLimit(1000)).Resolve(t.Context(), types.NewSet("a"), wallet.TokenCache{})

		assert.False(t, res.Changed)
		assert.Empty(t, res.Tokens)
		assert.Empty(t, res.Cache)
	})

	t.Run("lookup result is keyed by requested id", func(t *testing.T) {
		lookup := NewGenesisLookupMock(t)
		lookup.On("TokenInfo", mock.Anything, "a").Return(wallet.TokenInfo{Ticker: "AAA"}, nil).Once()

		res := NewResolver(lookup, WithRateLimit(1000), WithConcurrency(1)).Resolve(t.Context(), types.NewSet("a"), nil)

		assert.Equal(t, "a", res.Cache["a"].TokenID)
	})
}

func TestStore(t *testing.T) {
	t.Run("merge persists only on change", func(t *testing.T) {
		persister := NewPersisterMock(t)
		persister.On("SaveTokenCache", mock.Anything, wallet.TokenCache{"a": infoA, "b": infoB}).Return(nil).Once()

		s := NewStore(wallet.TokenCache{"a": infoA}, persister)

		changed, err := s.Merge(t.Context(), wallet.TokenCache{"b": infoB})
		assert.NoError(t, err)
		assert.True(t, changed)

		changed, err = s.Merge(t.Context(), wallet.TokenCache{"b": infoB})
		assert.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("memory updated when persisting fails", func(t *testing.T) {
		persister := NewPersisterMock(t)
		persister.On("SaveTokenCache", mock.Anything, mock.Anything).Return(wallet.ErrStoreUnavailable).Once()

		s := NewStore(nil, persister)

		changed, err := s.Merge(t.Context(), wallet.TokenCache{"a": infoA})
		assert.True(t, changed)
		assert.ErrorIs(t, err, wallet.ErrStoreUnavailable)

		info, ok := s.Lookup("a")
		assert.True(t, ok)
		assert.Equal(t, infoA, info)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		s := NewStore(wallet.TokenCache{"a": infoA}, nil)

		snap := s.Snapshot()
		snap["b"] = infoB

		_, ok := s.Lookup("b")
		assert.False(t, ok)
	})
}
