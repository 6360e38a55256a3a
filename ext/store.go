package ext

import (
	"maps"
	"slices"
	"sync"
)

// Store is a concurrency-safe key/value map holding user, chat or bot data.
// Handlers for the same user may run concurrently, so the map is never
// exposed without the lock.
type Store struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewStore returns a store with a copy of data.
func NewStore(data map[string]any) *Store {
	s := &Store{data: make(map[string]any, len(data))}
	maps.Copy(s.data, data)
	return s
}

// Get returns the value stored under key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (s *Store) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Set stores value under key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Delete removes key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Keys returns the keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.data))
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Update runs fn with exclusive access to the underlying map.
func (s *Store) Update(fn func(data map[string]any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// Snapshot returns a shallow copy of the data.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

func (s *Store) replace(data map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]any, len(data))
	maps.Copy(s.data, data)
}

// storeMap lazily creates stores keyed by user or chat id.
type storeMap struct {
	mu     sync.Mutex
	stores map[int64]*Store
}

func newStoreMap() *storeMap {
	return &storeMap{stores: make(map[int64]*Store)}
}

func (m *storeMap) get(id int64) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	if !ok {
		s = NewStore(nil)
		m.stores[id] = s
	}
	return s
}

func (m *storeMap) lookup(id int64) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	return s, ok
}

func (m *storeMap) set(id int64, s *Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[id] = s
}

func (m *storeMap) drop(id int64) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stores[id]
	delete(m.stores, id)
	return s, ok
}

func (m *storeMap) ids() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Sorted(maps.Keys(m.stores))
}
