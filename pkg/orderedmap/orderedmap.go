package orderedmap

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// OrderedMap remembers insertion order. It is not safe for concurrent use.
type OrderedMap[K constraints.Ordered, V any] struct {
	s []K
	m map[K]V
}

func New[K constraints.Ordered, V any]() OrderedMap[K, V] {
	return OrderedMap[K, V]{
		s: make([]K, 0),
		m: make(map[K]V),
	}
}

func (om *OrderedMap[K, V]) Len() int {
	return len(om.s)
}

// Set adds or replaces key. A replaced key keeps its position.
func (om *OrderedMap[K, V]) Set(key K, value V) {
	if om.m == nil {
		om.m = make(map[K]V)
	}
	if _, ok := om.m[key]; !ok {
		om.s = append(om.s, key)
	}
	om.m[key] = value
}

func (om *OrderedMap[K, V]) Get(key K) (V, bool) {
	value, ok := om.m[key]
	return value, ok
}

func (om *OrderedMap[K, V]) Exists(key K) bool {
	_, ok := om.m[key]
	return ok
}

// Delete removes key and returns the value it held.
func (om *OrderedMap[K, V]) Delete(key K) (V, bool) {
	value, ok := om.m[key]
	if !ok {
		return value, false
	}
	delete(om.m, key)
	if i := slices.Index(om.s, key); i >= 0 {
		om.s = slices.Delete(om.s, i, i+1)
	}
	return value, true
}

func (om *OrderedMap[K, V]) Clear() {
	om.s = om.s[:0]
	maps.Clear(om.m)
}

// Keys returns a copy of the keys in insertion order.
func (om *OrderedMap[K, V]) Keys() []K {
	return slices.Clone(om.s)
}

func (om *OrderedMap[K, V]) Values() []V {
	values := make([]V, 0, len(om.s))
	for _, key := range om.s {
		values = append(values, om.m[key])
	}
	return values
}

func (om *OrderedMap[K, V]) Range(fn func(key K, value V) error) error {
	for _, key := range om.s {
		if err := fn(key, om.m[key]); err != nil {
			return err
		}
	}
	return nil
}

// Clone copies the map; values are copied shallowly.
func (om *OrderedMap[K, V]) Clone() OrderedMap[K, V] {
	return OrderedMap[K, V]{
		s: slices.Clone(om.s),
		m: maps.Clone(om.m),
	}
}
