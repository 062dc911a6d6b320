// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pending

import (
	"testing"

	"github.com/bitcoin-network/p2p/authority"
)

func TestChannelsAddContainsRemove(t *testing.T) {
	c := NewChannels()
	if c.Contains(42) {
		t.Fatal("expected empty set")
	}
	c.Add(42)
	if !c.Contains(42) {
		t.Fatal("expected 42 to be pending")
	}
	c.Remove(42)
	if c.Contains(42) {
		t.Fatal("expected 42 removed")
	}
}

func TestSocketsBoundedByCapacity(t *testing.T) {
	s := NewSockets(2)
	a1, _ := authority.Parse("1.1.1.1:8333")
	a2, _ := authority.Parse("2.2.2.2:8333")
	a3, _ := authority.Parse("3.3.3.3:8333")

	s.Add(a1)
	s.Add(a2)
	s.Add(a3) // evicts a1, the oldest

	if s.Len() != 2 {
		t.Fatalf("expected bounded at 2, got %d", s.Len())
	}
	if s.Contains(a1) {
		t.Fatal("expected oldest entry evicted")
	}
	if !s.Contains(a3) {
		t.Fatal("expected newest entry present")
	}
}

func TestSocketsRemove(t *testing.T) {
	s := NewSockets(4)
	a, _ := authority.Parse("1.1.1.1:8333")
	s.Add(a)
	s.Remove(a)
	if s.Contains(a) {
		t.Fatal("expected removed entry to be absent")
	}
}
