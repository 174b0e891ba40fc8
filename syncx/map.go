// Package syncx provides small generic concurrent containers used by the
// game server's registry and session table.
package syncx

import "sync"

// Map is a type-safe wrapper around sync.Map. The zero value is ready for
// use and a Map must not be copied after first use.
type Map[K comparable, V any] struct {
	m sync.Map
}

// NewMap returns an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{}
}

// Store sets the value for key k, overwriting any previous value.
func (m *Map[K, V]) Store(k K, v V) {
	m.m.Store(k, v)
}

// Load returns the value stored under k and whether it was present.
//
// Parameters:
//   - k: The key to look up
//
// Returns:
//   - The value, or the zero value of V when absent
//   - true if the key was present
func (m *Map[K, V]) Load(k K) (V, bool) {
	v, found := m.m.Load(k)
	if !found {
		var empty V
		return empty, false
	}

	return v.(V), true
}

// LoadAndDelete removes k and returns the value it held, if any. Exactly one
// of several concurrent callers observes loaded == true.
//
// Parameters:
//   - k: The key to remove
//
// Returns:
//   - The removed value, or the zero value of V when absent
//   - true if this call removed the entry
func (m *Map[K, V]) LoadAndDelete(k K) (V, bool) {
	v, loaded := m.m.LoadAndDelete(k)
	if !loaded {
		var empty V
		return empty, false
	}

	return v.(V), true
}

// Delete removes k. Deleting a missing key is a no-op.
func (m *Map[K, V]) Delete(k K) {
	m.m.Delete(k)
}

// Range calls f for each entry until f returns false. The map may be
// modified concurrently; Range does not block writers.
func (m *Map[K, V]) Range(f func(k K, v V) bool) {
	m.m.Range(func(k, v any) bool {
		return f(k.(K), v.(V))
	})
}

// Values returns a snapshot of all values in unspecified order.
func (m *Map[K, V]) Values() []V {
	var out []V
	m.Range(func(_ K, v V) bool {
		out = append(out, v)
		return true
	})

	return out
}

// Len counts the entries. It is O(n).
func (m *Map[K, V]) Len() int {
	n := 0
	m.Range(func(K, V) bool {
		n++
		return true
	})

	return n
}
