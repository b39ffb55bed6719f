package advancedmap

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingKey(t *testing.T) {
	m := NewAdvancedMap[string, int](0, 0)

	value, ok := m.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, value)
	assert.Equal(t, 0, m.Len())
}

func TestPutWithoutLimitsKeepsEverything(t *testing.T) {
	m := NewAdvancedMap[string, int](0, 0)

	for i := 0; i < 100; i++ {
		m.Put(string(rune('a'+i%26))+string(rune('A'+i/26)), i)
	}
	assert.Equal(t, 100, m.Len())
}

func TestPutOverwrites(t *testing.T) {
	m := NewAdvancedMap[string, string](0, 0)

	m.Put("key", "first")
	m.Put("key", "second")

	value, ok := m.Get("key")
	require.True(t, ok)
	assert.Equal(t, "second", value)
	assert.Equal(t, 1, m.Len())
}

func TestMaxSizeEvictsLeastRecentlyUsed(t *testing.T) {
	m := NewAdvancedMap[string, int](0, 2)

	m.Put("a", 1)
	m.Put("b", 2)
	// Touch a so b becomes the oldest
	_, ok := m.Get("a")
	require.True(t, ok)
	m.Put("c", 3)

	assert.Equal(t, 2, m.Len())
	_, ok = m.Get("b")
	assert.False(t, ok)
	_, ok = m.Get("a")
	assert.True(t, ok)
	_, ok = m.Get("c")
	assert.True(t, ok)
}

func TestTimeLimitExpiresItems(t *testing.T) {
	m := NewAdvancedMap[string, int](20*time.Millisecond, 0)

	m.Put("a", 1)
	_, ok := m.Get("a")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		return m.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRemove(t *testing.T) {
	m := NewAdvancedMap[string, int](time.Minute, 0)

	m.Put("a", 1)
	m.Remove("a")
	m.Remove("never-there")

	_, ok := m.Get("a")
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	m := NewAdvancedMap[int, int](0, 50)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				m.Put(worker*1000+i, i)
				m.Get(worker*1000 + i/2)
			}
		}(worker)
	}
	wg.Wait()

	assert.LessOrEqual(t, m.Len(), 50)
}
