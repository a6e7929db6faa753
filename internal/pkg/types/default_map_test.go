package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDefaultMap(t *testing.T) {
	t.Run("get materializes the default once", func(t *testing.T) {
		calls := 0
		m := NewDefaultMap[string](func() int {
			calls++
			return 7
		})

		assert.False(t, m.Has("token"))
		assert.Equal(t, 7, m.Get("token"))
		assert.Equal(t, 7, m.Get("token"))
		assert.True(t, m.Has("token"))
		assert.Equal(t, 1, calls)
	})

	t.Run("set overrides", func(t *testing.T) {
		m := NewDefaultMap[string](func() int { return 0 })
		m.Set("token", 3)
		m.Set("token", 4)

		assert.Equal(t, 4, m.Get("token"))
	})

	t.Run("update accumulates token totals", func(t *testing.T) {
		totals := NewDefaultMap[string](func() decimal.Decimal { return decimal.Zero })
		for _, qty := range []string{"1.5", "2", "0.25"} {
			totals.Update("tok", func(v decimal.Decimal) decimal.Decimal { return v.Add(decimal.RequireFromString(qty)) })
		}

		assert.True(t, decimal.RequireFromString("3.75").Equal(totals.Get("tok")))
	})

	t.Run("to map shares the backing storage", func(t *testing.T) {
		m := NewDefaultMap[string](func() int { return 0 })
		m.Set("a", 1)

		raw := m.ToMap()
		raw["b"] = 2

		assert.Equal(t, map[string]int{"a": 1, "b": 2}, m.ToMap())
		assert.True(t, m.Has("b"))
	})
}
