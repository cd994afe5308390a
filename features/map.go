package features

import (
	"github.com/Velocidex/ordereddict"
)

// Map is an ordered feature name to value mapping. Values are uint64 for
// header fields, counts and sizes and float64 for entropies and means.
// A Map is never modified after Extract returns it.
type Map struct {
	dict *ordereddict.Dict
}

func newMap() *Map {
	return &Map{dict: ordereddict.NewDict()}
}

func (m *Map) set(name string, value any) {
	m.dict.Set(name, value)
}

func (m *Map) Get(name string) (any, bool) {
	return m.dict.Get(name)
}

// Float returns the value of name widened to float64.
func (m *Map) Float(name string) (float64, bool) {
	v, ok := m.dict.Get(name)
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Uint returns the value of name when it is an integer feature.
func (m *Map) Uint(name string) (uint64, bool) {
	v, ok := m.dict.Get(name)
	if !ok {
		return 0, false
	}
	u, ok := v.(uint64)
	return u, ok
}

func (m *Map) Names() []string {
	return m.dict.Keys()
}

func (m *Map) Len() int {
	return m.dict.Len()
}

// Equal reports whether both maps hold the same names, in the same order,
// with identical values.
func (m *Map) Equal(other *Map) bool {
	a, b := m.Names(), other.Names()
	if len(a) != len(b) {
		return false
	}
	for i, name := range a {
		if b[i] != name {
			return false
		}
		x, _ := m.Get(name)
		y, _ := other.Get(name)
		if x != y {
			return false
		}
	}
	return true
}

func (m *Map) MarshalJSON() ([]byte, error) {
	return m.dict.MarshalJSON()
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case uint32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
