// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package banlist

import (
	"testing"

	"github.com/bitcoin-network/p2p/authority"
)

func TestExactAuthorityBlocked(t *testing.T) {
	l := Parse([]string{"1.2.3.4:8333"})
	a, err := authority.Parse("1.2.3.4:9999") // different port, same address
	if err != nil {
		t.Fatal(err)
	}
	if !l.Blocked(a) {
		t.Fatal("expected address match regardless of port")
	}
}

func TestCIDRPrefixBlocked(t *testing.T) {
	l := Parse([]string{"10.0.0.0/8"})
	a, err := authority.Parse("10.1.2.3:8333")
	if err != nil {
		t.Fatal(err)
	}
	if !l.Blocked(a) {
		t.Fatal("expected address within CIDR prefix to be blocked")
	}

	other, err := authority.Parse("11.1.2.3:8333")
	if err != nil {
		t.Fatal(err)
	}
	if l.Blocked(other) {
		t.Fatal("expected address outside CIDR prefix to be allowed")
	}
}

func TestNilListAllowsEverything(t *testing.T) {
	var l *List
	a, _ := authority.Parse("1.2.3.4:8333")
	if l.Blocked(a) {
		t.Fatal("expected nil list to block nothing")
	}
}

func TestInvalidEntrySkipped(t *testing.T) {
	l := Parse([]string{"not-an-authority-or-cidr!!"})
	a, _ := authority.Parse("1.2.3.4:8333")
	if l.Blocked(a) {
		t.Fatal("expected invalid entries to be ignored, not matched")
	}
}
