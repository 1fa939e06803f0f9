package rehydrate

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

var logger = slog.Default().With("component", "rehydrate")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	logger = l.With("component", "rehydrate")
}

// Store is the client's session-wide data cache.
type Store struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
	canon  map[string][]byte
	subs   map[int]func(Record)
	nextID int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		values: make(map[string]json.RawMessage),
		canon:  make(map[string][]byte),
		subs:   make(map[int]func(Record)),
	}
}

// Apply merges records in order and returns the ones that changed the
// store. A record equal by value to the one already held is skipped;
// subscribers are only told about changes.
func (s *Store) Apply(records ...Record) []Record {
	var changed []Record

	s.mu.Lock()
	for _, r := range records {
		c := canonical(r.Value)
		if old, ok := s.canon[r.Key]; ok && bytes.Equal(old, c) {
			continue
		}
		s.values[r.Key] = r.Value
		s.canon[r.Key] = c
		changed = append(changed, r)
	}
	subs := make([]func(Record), 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, r := range changed {
		for _, fn := range subs {
			fn(r)
		}
	}
	return changed
}

// Get returns the raw value held for key.
func (s *Store) Get(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Decode unmarshals the value held for key into v. ok is false when the key
// is absent.
func (s *Store) Decode(key string, v any) (ok bool, err error) {
	raw, ok := s.Get(key)
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Keys returns the held keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of held keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Subscribe registers fn for every record that changes the store, called in
// application order after the store is updated. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(Record)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// canonical re-encodes a JSON value so that values differing only in
// whitespace or object key order compare equal. Invalid JSON is compared
// byte for byte.
func canonical(raw json.RawMessage) []byte {
	var v any
	d := json.NewDecoder(bytes.NewReader(raw))
	d.UseNumber()
	if err := d.Decode(&v); err != nil {
		logger.Warn("comparing non-JSON rehydration value byte-wise", "error", err)
		return raw
	}
	b, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return b
}
