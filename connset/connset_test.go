// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package connset

import (
	"net"
	"testing"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

func newTestChannel(t *testing.T, remote authority.Authority) *channel.Channel {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() { client.Close() })
	c := channel.New(server, true, remote, channel.Config{Magic: 1})
	c.Start()
	t.Cleanup(func() { c.Stop(code.ServiceStopped) })
	return c
}

func TestAddRejectsDuplicateAuthority(t *testing.T) {
	s := New()
	a, _ := authority.Parse("1.1.1.1:8333")
	c1 := newTestChannel(t, a)
	c2 := newTestChannel(t, a)

	if err := s.Add(c1); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := s.Add(c2); err == nil {
		t.Fatal("expected second channel to the same authority to be rejected")
	}
	if s.Count() != 1 {
		t.Fatalf("expected count 1, got %d", s.Count())
	}
}

func TestRemoveAndContains(t *testing.T) {
	s := New()
	a, _ := authority.Parse("2.2.2.2:8333")
	c := newTestChannel(t, a)

	if err := s.Add(c); err != nil {
		t.Fatal(err)
	}
	if !s.Contains(a) {
		t.Fatal("expected authority to be present")
	}
	s.Remove(c)
	if s.Contains(a) {
		t.Fatal("expected authority removed")
	}
}

func TestEachVisitsAllChannels(t *testing.T) {
	s := New()
	a1, _ := authority.Parse("3.3.3.3:8333")
	a2, _ := authority.Parse("4.4.4.4:8333")
	c1 := newTestChannel(t, a1)
	c2 := newTestChannel(t, a2)
	s.Add(c1)
	s.Add(c2)

	seen := make(map[uint64]bool)
	s.Each(func(c *channel.Channel) { seen[c.Nonce()] = true })
	if len(seen) != 2 {
		t.Fatalf("expected 2 channels visited, got %d", len(seen))
	}
}
