package types

// DefaultMap is a map that materializes missing entries from a factory on
// first access.
//
//	totals := NewDefaultMap[string](func() decimal.Decimal { return decimal.Zero })
//	totals.Update(tokenID, func(v decimal.Decimal) decimal.Decimal { return v.Add(qty) })
//
// Not safe for concurrent use.
type DefaultMap[K comparable, V any] struct {
	data        map[K]V
	defaultFunc func() V
}

func NewDefaultMap[K comparable, V any](defaultFunc func() V) DefaultMap[K, V] {
	return DefaultMap[K, V]{
		data:        make(map[K]V),
		defaultFunc: defaultFunc,
	}
}

// Get returns the value under key, storing defaultFunc's result first when
// the key is absent.
func (d *DefaultMap[K, V]) Get(key K) V {
	val, ok := d.data[key]
	if ok {
		return val
	}

	val = d.defaultFunc()
	d.data[key] = val
	return val
}

// Has reports whether key holds a value without materializing a default.
func (d *DefaultMap[K, V]) Has(key K) bool {
	_, ok := d.data[key]
	return ok
}

func (d *DefaultMap[K, V]) Set(key K, val V) {
	d.data[key] = val
}

// Update stores f applied to the current value and returns the result.
func (d *DefaultMap[K, V]) Update(key K, f func(V) V) V {
	val := f(d.Get(key))
	d.data[key] = val
	return val
}

// ToMap exposes the backing map. Writes to it are visible through d.
func (d *DefaultMap[K, V]) ToMap() map[K]V {
	return d.data
}
