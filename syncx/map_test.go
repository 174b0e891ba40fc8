package syncx

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_StoreLoad(t *testing.T) {
	m := NewMap[uint32, string]()

	t.Run("store and load returns value", func(t *testing.T) {
		m.Store(1, "guess-my-number")
		v, ok := m.Load(1)
		assert.True(t, ok)
		assert.Equal(t, "guess-my-number", v)
	})

	t.Run("load missing key returns zero value and false", func(t *testing.T) {
		v, ok := m.Load(99)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("delete missing key is no-op", func(t *testing.T) {
		m.Delete(99)
		assert.Equal(t, 1, m.Len())
	})
}

func TestMap_LoadAndDelete(t *testing.T) {
	m := NewMap[int, int]()
	m.Store(1, 10)

	v, ok := m.LoadAndDelete(1)
	assert.True(t, ok)
	assert.Equal(t, 10, v)

	v, ok = m.LoadAndDelete(1)
	assert.False(t, ok)
	assert.Zero(t, v)
}

func TestMap_LoadAndDelete_SingleWinner(t *testing.T) {
	m := NewMap[int, int]()
	m.Store(1, 1)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.LoadAndDelete(1); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMap_ValuesAndLen(t *testing.T) {
	m := NewMap[string, int]()
	assert.Empty(t, m.Values())
	assert.Equal(t, 0, m.Len())

	m.Store("a", 1)
	m.Store("b", 2)
	m.Store("c", 3)

	require.Equal(t, 3, m.Len())
	assert.ElementsMatch(t, []int{1, 2, 3}, m.Values())
}

func TestMap_RangeStopsEarly(t *testing.T) {
	m := NewMap[int, int]()
	for i := 0; i < 10; i++ {
		m.Store(i, i)
	}

	count := 0
	m.Range(func(int, int) bool {
		count++
		return count < 3
	})
	assert.Equal(t, 3, count)
}

func TestMap_Concurrent(t *testing.T) {
	m := NewMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Store(i, i*i)
			_, _ = m.Load(i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, m.Len())
}
