// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package connset implements Connections, the set of currently-live
// channels: no two channels share an authority, and no two channels share
// a nonce.
package connset

import (
	"sync"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

// Connections is the set of live channels.
type Connections struct {
	mu      sync.Mutex
	byNonce map[uint64]*channel.Channel
	byAuth  map[string]*channel.Channel
}

// New returns an empty Connections set.
func New() *Connections {
	return &Connections{
		byNonce: make(map[uint64]*channel.Channel),
		byAuth:  make(map[string]*channel.Channel),
	}
}

// Add registers c as live. Fails with code.AcceptFailed if another live
// channel already shares c's nonce or remote authority (spec §3's
// Connections invariants).
func (s *Connections) Add(c *channel.Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byNonce[c.Nonce()]; ok {
		return code.New(code.AcceptFailed, "duplicate channel nonce")
	}
	authKey := c.RemoteAuthority().Key()
	if _, ok := s.byAuth[authKey]; ok {
		return code.New(code.AcceptFailed, "already connected to this authority")
	}
	s.byNonce[c.Nonce()] = c
	s.byAuth[authKey] = c
	return nil
}

// Remove unregisters c. A no-op if c is not currently registered.
func (s *Connections) Remove(c *channel.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byNonce, c.Nonce())
	delete(s.byAuth, c.RemoteAuthority().Key())
}

// Contains reports whether a is already connected.
func (s *Connections) Contains(a authority.Authority) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byAuth[a.Key()]
	return ok
}

// Count returns the number of live channels.
func (s *Connections) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byNonce)
}

// Each calls fn once for every live channel, on a snapshot taken under the
// lock so fn may safely call back into Connections (e.g. to stop a
// channel) without deadlocking.
func (s *Connections) Each(fn func(*channel.Channel)) {
	s.mu.Lock()
	snapshot := make([]*channel.Channel, 0, len(s.byNonce))
	for _, c := range s.byNonce {
		snapshot = append(snapshot, c)
	}
	s.mu.Unlock()

	for _, c := range snapshot {
		fn(c)
	}
}
