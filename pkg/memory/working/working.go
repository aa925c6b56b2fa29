// Package working implements the bounded, volatile working memory region.
//
// Entries are kept in strict least-recently-used order. A single mutex guards
// the key index and the recency list together, so a Get can never observe a
// key that a concurrent eviction removed.
package working

import (
	"container/list"
	"sync"

	"github.com/harun/cortex/pkg/memory"
)

type entry struct {
	key   string
	value []byte
}

// EvictFunc is called, with the store lock held, for every evicted entry.
type EvictFunc func(key string)

// Option configures a Store.
type Option func(*Store)

// WithEvictFunc registers a callback invoked on capacity-driven eviction.
func WithEvictFunc(fn EvictFunc) Option {
	return func(s *Store) {
		s.onEvict = fn
	}
}

// Store is an LRU cache holding at most capacity entries.
type Store struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	items    map[string]*list.Element
	onEvict  EvictFunc
}

// New creates a working memory store. A capacity of 0 yields a store that
// evicts every entry as soon as it is put.
func New(capacity int, opts ...Option) (*Store, error) {
	if capacity < 0 {
		return nil, memory.InvalidConfigf("working memory capacity must be >= 0, got %d", capacity)
	}

	s := &Store{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Put inserts or replaces key and marks it most recently used.
func (s *Store) Put(key string, value []byte) error {
	if err := memory.ValidateKey(key); err != nil {
		return err
	}
	value = memory.CloneBytes(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value.(*entry).value = value
		s.order.MoveToFront(el)
		return nil
	}

	if s.capacity == 0 {
		s.evicted(key)
		return nil
	}

	for s.order.Len() >= s.capacity {
		s.evictOldest()
	}

	s.items[key] = s.order.PushFront(&entry{key: key, value: value})
	return nil
}

// Get returns the value for key and refreshes its recency.
func (s *Store) Get(key string) ([]byte, error) {
	if err := memory.ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, memory.ErrNotFound
	}
	s.order.MoveToFront(el)
	return memory.CloneBytes(el.Value.(*entry).value), nil
}

// Clear drops every entry. Cleared entries are not reported as evictions.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Init()
	s.items = make(map[string]*list.Element)
}

// Len returns the number of entries held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Capacity returns the configured bound.
func (s *Store) Capacity() int {
	return s.capacity
}

// Keys returns the held keys, most recently used first. It does not touch recency.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return keys
}

func (s *Store) evictOldest() {
	el := s.order.Back()
	if el == nil {
		return
	}
	e := s.order.Remove(el).(*entry)
	delete(s.items, e.key)
	s.evicted(e.key)
}

func (s *Store) evicted(key string) {
	if s.onEvict != nil {
		s.onEvict(key)
	}
}
