// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package banlist implements static blacklist enforcement: a fixed set of
// authorities or CIDR prefixes consulted before a handshake starts. There
// is no dynamic ban score — entries are config-time only.
package banlist

import (
	"net"

	"github.com/bitcoin-network/p2p/authority"
)

// List is an immutable set of blocked authorities and CIDR prefixes.
type List struct {
	exact   map[string]struct{}
	entries []*net.IPNet
}

// Parse builds a List from the textual entries in spec §6's `blacklist`
// option. Each entry is either a bare "host[:port]" authority (matched
// exactly, ignoring port) or a CIDR prefix such as "10.0.0.0/8". Invalid
// entries are skipped rather than failing the whole list, since a single
// malformed blacklist line shouldn't block startup.
func Parse(entries []string) *List {
	l := &List{exact: make(map[string]struct{})}
	for _, raw := range entries {
		if _, ipnet, err := net.ParseCIDR(raw); err == nil {
			l.entries = append(l.entries, ipnet)
			continue
		}
		a, err := authority.Parse(raw)
		if err != nil {
			continue
		}
		l.exact[a.IP().String()] = struct{}{}
	}
	return l
}

// Blocked reports whether a is disallowed: either its address matches an
// exact entry, or it falls within a blacklisted CIDR prefix.
func (l *List) Blocked(a authority.Authority) bool {
	if l == nil {
		return false
	}
	ip := a.IP()
	if _, ok := l.exact[ip.String()]; ok {
		return true
	}
	for _, ipnet := range l.entries {
		if ipnet.Contains(ip) {
			return true
		}
	}
	return false
}
