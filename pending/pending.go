// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pending implements the PendingChannels and PendingSockets sets:
// in-flight bookkeeping that prevents duplicate and self-connections before
// a channel has fully joined Connections. PendingSockets is backed by a
// generic LRU map so its bound is enforced by eviction rather than by
// blocking new in-flight attempts.
package pending

import (
	"sync"

	"github.com/decred/dcrd/container/lru"

	"github.com/bitcoin-network/p2p/authority"
)

// Channels tracks the nonces of channels that have been created but have
// not yet completed their handshake. A nonce reappearing in a peer's
// version message while still present here indicates a self-connection.
type Channels struct {
	mu     sync.Mutex
	nonces map[uint64]struct{}
}

// NewChannels returns an empty PendingChannels set.
func NewChannels() *Channels {
	return &Channels{nonces: make(map[uint64]struct{})}
}

// Add records nonce as pending.
func (c *Channels) Add(nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonces[nonce] = struct{}{}
}

// Contains reports whether nonce is currently pending.
func (c *Channels) Contains(nonce uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.nonces[nonce]
	return ok
}

// Remove clears nonce from the pending set, on handshake success or
// channel stop.
func (c *Channels) Remove(nonce uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nonces, nonce)
}

// Sockets tracks in-flight connect attempts by remote authority, bounded
// by connect_batch_size x outbound_connections (spec §3). Backed by an LRU
// map so that, in the unlikely event the bound is hit, the oldest
// in-flight attempt is evicted rather than blocking new ones.
type Sockets struct {
	m *lru.Map[string, struct{}]
}

// NewSockets returns an empty PendingSockets set bounded at capacity.
func NewSockets(capacity int) *Sockets {
	if capacity <= 0 {
		capacity = 1
	}
	return &Sockets{m: lru.NewMap[string, struct{}](uint32(capacity))}
}

// Add records a as an in-flight connect attempt.
func (s *Sockets) Add(a authority.Authority) {
	s.m.Put(a.Key(), struct{}{})
}

// Contains reports whether a has an in-flight connect attempt.
func (s *Sockets) Contains(a authority.Authority) bool {
	return s.m.Exists(a.Key())
}

// Remove clears a's in-flight marker once its connect attempt resolves.
func (s *Sockets) Remove(a authority.Authority) {
	s.m.Delete(a.Key())
}

// Len reports the number of in-flight connect attempts.
func (s *Sockets) Len() int {
	return int(s.m.Len())
}
