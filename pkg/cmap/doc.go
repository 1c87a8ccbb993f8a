// Package cmap provides a concurrent map keyed by string.
//
// Keys are spread over a power-of-two number of shards by their murmur3
// hash; each shard has its own RWMutex, so unrelated keys never contend.
//
// Usage:
//
//	m := cmap.New[*Conn]()
//	m.Set(id, conn)
//	conn, ok := m.Get(id)
//
// Range visits shards one at a time, so it does not observe a single
// consistent snapshot of the whole map.
package cmap
