// Package memory provides the in-memory storage engine for kvwait.
//
// A single reader/writer lock guards the entry map, the credential map and
// the wait registry, so a batch write is never observed half-applied and a
// conditional reader can never miss the write it is waiting for.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/yndnr/kvwait/internal/core/domain"
)

// Pair is one key/value element of a batch write.
type Pair struct {
	Key   string
	Value []byte
}

// Recorder receives watcher lifecycle events. It is satisfied by the
// metrics registry; a nil Recorder disables reporting.
type Recorder interface {
	WatchStarted()
	WatchFinished()
	WakeupsSent(n int)
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Keys           int `json:"keys"`
	Users          int `json:"users"`
	WatchedKeys    int `json:"watched_keys"`
	ActiveWatchers int `json:"active_watchers"`
}

// Store holds the key/value map and the credential map.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]byte
	users   map[string]*domain.Credential
	waiters *registry

	recorder Recorder
}

// Option configures the Store.
type Option func(*Store)

// WithRecorder reports watcher activity to r.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string][]byte),
		users:   make(map[string]*domain.Credential),
		waiters: newRegistry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(nonNil(v)), true
}

// Put stores value under key, replacing any previous value, and wakes
// every watcher whose condition key is key.
func (s *Store) Put(key string, value []byte) {
	v := bytes.Clone(nonNil(value))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = v
	s.report(s.waiters.notify(key))
}

// MultiPut applies all pairs inside one exclusive section. Pairs are applied
// in order, so a repeated key keeps its last value.
func (s *Store) MultiPut(pairs []Pair) {
	if len(pairs) == 0 {
		return
	}

	cloned := make([]Pair, len(pairs))
	for i, p := range pairs {
		cloned[i] = Pair{Key: p.Key, Value: bytes.Clone(nonNil(p.Value))}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range cloned {
		s.entries[p.Key] = p.Value
	}
	woken := 0
	for _, p := range cloned {
		woken += s.waiters.notify(p.Key)
	}
	s.report(woken)
}

// MultiGet returns the present keys among keys. Each lookup takes its own
// read lock; the result is not a single snapshot across keys.
func (s *Store) MultiGet(keys []string) map[string][]byte {
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := s.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// GetWhen blocks until the value stored under condKey equals condValue and
// then returns the value stored under key. ok is false when key is absent at
// that moment. Cancelling ctx unblocks the wait with domain.ErrWaitCancelled.
func (s *Store) GetWhen(ctx context.Context, key, condKey string, condValue []byte) ([]byte, bool, error) {
	watching := false
	defer func() {
		if watching && s.recorder != nil {
			s.recorder.WatchFinished()
		}
	}()

	for {
		s.mu.RLock()
		if cur, ok := s.entries[condKey]; ok && bytes.Equal(cur, condValue) {
			v, found := s.entries[key]
			s.mu.RUnlock()
			if !found {
				return nil, false, nil
			}
			return bytes.Clone(nonNil(v)), true, nil
		}
		// Registered under the read lock: a writer cannot run between the
		// failed check above and this subscription.
		ch := s.waiters.subscribe(condKey)
		s.mu.RUnlock()

		if !watching {
			watching = true
			if s.recorder != nil {
				s.recorder.WatchStarted()
			}
		}

		select {
		case <-ch:
		case <-ctx.Done():
			s.waiters.unsubscribe(condKey, ch)
			return nil, false, domain.ErrWaitCancelled.WithCause(ctx.Err())
		}
	}
}

// RegisterUser stores a new credential. It returns false if username is
// already registered.
func (s *Store) RegisterUser(username, password string) (bool, error) {
	s.mu.RLock()
	_, exists := s.users[username]
	s.mu.RUnlock()
	if exists {
		return false, nil
	}

	// Hashing is slow; keep it out of the exclusive section.
	cred, err := domain.NewCredential(username, password)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return false, nil
	}
	s.users[username] = cred
	return true, nil
}

// AuthenticateUser reports whether username is registered with password.
func (s *Store) AuthenticateUser(username, password string) bool {
	s.mu.RLock()
	cred := s.users[username]
	s.mu.RUnlock()

	return cred.Verify(password)
}

// Stats returns current counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys, watchers := s.waiters.stats()
	return Stats{
		Keys:           len(s.entries),
		Users:          len(s.users),
		WatchedKeys:    keys,
		ActiveWatchers: watchers,
	}
}

func (s *Store) report(woken int) {
	if woken > 0 && s.recorder != nil {
		s.recorder.WakeupsSent(woken)
	}
}

// nonNil keeps zero-length values distinguishable from absent ones.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
