package advancedmap

import (
	"sync"
	"time"
)

type item[V any] struct {
	data          V
	deadline      time.Time
	deadlineTimer *time.Timer
	// Sequence of the last access, used for eviction when no time limit is set
	touched uint64
}

// A generic key-value map with an optional time limit per item and an optional maximum size.
// A zero TimeLimit keeps items forever, a zero maxSize never evicts.
type AdvancedMap[K comparable, V any] struct {
	data      map[K]*item[V]
	dataMutex sync.Mutex
	clock     uint64
	// A time limit for items in the map
	TimeLimit time.Duration
	// A maximum number of values in the map
	maxSize uint
}

// NewAdvancedMap creates a new AdvancedMap with the given time limit and max size
func NewAdvancedMap[K comparable, V any](timeLimit time.Duration, maxSize uint) *AdvancedMap[K, V] {
	return &AdvancedMap[K, V]{
		data:      make(map[K]*item[V]),
		TimeLimit: timeLimit,
		maxSize:   maxSize,
	}
}

func (m *AdvancedMap[K, V]) touch(key K, it *item[V]) {
	m.clock++
	it.touched = m.clock

	if m.TimeLimit <= 0 {
		return
	}
	it.deadline = time.Now().Add(m.TimeLimit)
	if it.deadlineTimer == nil {
		it.deadlineTimer = time.AfterFunc(m.TimeLimit, func() {
			m.expire(key, it)
		})
	} else {
		it.deadlineTimer.Reset(m.TimeLimit)
	}
}

// expire removes the item only if it is still the one stored under key
func (m *AdvancedMap[K, V]) expire(key K, it *item[V]) {
	m.dataMutex.Lock()
	defer m.dataMutex.Unlock()

	if current, ok := m.data[key]; ok && current == it && !time.Now().Before(it.deadline) {
		delete(m.data, key)
	}
}

func (m *AdvancedMap[K, V]) removeLocked(key K) {
	it, ok := m.data[key]
	if !ok {
		return
	}
	if it.deadlineTimer != nil {
		it.deadlineTimer.Stop()
	}
	delete(m.data, key)
}

func (m *AdvancedMap[K, V]) removeOldest() {
	var (
		oldestKey K
		oldest    *item[V]
	)
	for key, it := range m.data {
		if oldest == nil || it.touched < oldest.touched {
			oldestKey, oldest = key, it
		}
	}
	if oldest != nil {
		m.removeLocked(oldestKey)
	}
}

func (m *AdvancedMap[K, V]) Get(key K) (V, bool) {
	m.dataMutex.Lock()
	defer m.dataMutex.Unlock()

	it, ok := m.data[key]
	if !ok {
		var zero V
		return zero, false
	}

	// Reset deadline since it got accessed
	m.touch(key, it)

	return it.data, true
}

func (m *AdvancedMap[K, V]) Put(key K, value V) {
	m.dataMutex.Lock()
	defer m.dataMutex.Unlock()

	m.removeLocked(key)

	it := &item[V]{data: value}
	m.touch(key, it)
	m.data[key] = it

	if m.maxSize > 0 && uint(len(m.data)) > m.maxSize {
		m.removeOldest()
	}
}

func (m *AdvancedMap[K, V]) Remove(key K) {
	m.dataMutex.Lock()
	defer m.dataMutex.Unlock()

	m.removeLocked(key)
}

func (m *AdvancedMap[K, V]) Len() int {
	m.dataMutex.Lock()
	defer m.dataMutex.Unlock()

	return len(m.data)
}
