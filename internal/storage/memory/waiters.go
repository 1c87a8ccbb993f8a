package memory

import "sync"

// registry maps a condition key to the channel its watchers block on.
//
// A channel is closed, and its entry dropped, by the first write to the key
// after it was created; watchers that still need to wait subscribe again and
// get a fresh channel. Callers of subscribe hold the store read lock and
// callers of notify hold the store write lock, so the two never overlap.
type registry struct {
	mu      sync.Mutex
	watches map[string]*watch
}

type watch struct {
	ch       chan struct{}
	watchers int
}

func newRegistry() *registry {
	return &registry{
		watches: make(map[string]*watch),
	}
}

// subscribe returns the channel that the next write to key will close.
func (r *registry) subscribe(key string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[key]
	if !ok {
		w = &watch{ch: make(chan struct{})}
		r.watches[key] = w
	}
	w.watchers++
	return w.ch
}

// unsubscribe withdraws one watcher that gave up waiting on ch. It is a
// no-op if ch has already been closed by a write.
func (r *registry) unsubscribe(key string, ch <-chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[key]
	if !ok || w.ch != ch {
		return
	}
	w.watchers--
	if w.watchers <= 0 {
		delete(r.watches, key)
	}
}

// notify wakes every watcher of key and returns how many there were.
func (r *registry) notify(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[key]
	if !ok {
		return 0
	}
	delete(r.watches, key)
	close(w.ch)
	return w.watchers
}

func (r *registry) stats() (keys, watchers int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.watches {
		watchers += w.watchers
	}
	return len(r.watches), watchers
}
