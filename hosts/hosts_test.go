// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package hosts

import (
	"path/filepath"
	"testing"

	"github.com/bitcoin-network/p2p/authority"
)

func mustParse(t *testing.T, s string) authority.Authority {
	t.Helper()
	a, err := authority.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return a
}

func TestStoreDeduplicatesAndEvictsOverCapacity(t *testing.T) {
	h := New(2, filepath.Join(t.TempDir(), "hosts.txt"))
	a1 := mustParse(t, "1.1.1.1:8333")
	a2 := mustParse(t, "2.2.2.2:8333")
	a3 := mustParse(t, "3.3.3.3:8333")

	h.Store(a1)
	h.Store(a1) // duplicate, no-op
	if h.Count() != 1 {
		t.Fatalf("expected count 1 after duplicate store, got %d", h.Count())
	}

	h.Store(a2)
	h.Store(a3) // evicts a1, the oldest
	if h.Count() != 2 {
		t.Fatalf("expected count capped at 2, got %d", h.Count())
	}
	if _, err := h.Fetch(); err != nil {
		t.Fatalf("expected a fetchable authority, got %v", err)
	}
}

func TestFetchFailsWhenEmpty(t *testing.T) {
	h := New(10, filepath.Join(t.TempDir(), "hosts.txt"))
	if _, err := h.Fetch(); err == nil {
		t.Fatal("expected NotFound on empty pool")
	}
}

func TestFetchSkipsOnLoanUntilReleased(t *testing.T) {
	h := New(10, filepath.Join(t.TempDir(), "hosts.txt"))
	a := mustParse(t, "1.1.1.1:8333")
	h.Store(a)

	got, err := h.Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(a) {
		t.Fatalf("expected %v, got %v", a, got)
	}

	if _, err := h.Fetch(); err == nil {
		t.Fatal("expected the only entry to be on loan and unavailable")
	}

	h.Release(a)
	if _, err := h.Fetch(); err != nil {
		t.Fatalf("expected entry to be fetchable again after release: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.txt")
	h := New(10, path)
	h.Store(mustParse(t, "1.1.1.1:8333"))
	h.Store(mustParse(t, "2.2.2.2:8333"))

	if err := h.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	h2 := New(10, path)
	if err := h2.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if h2.Count() != 2 {
		t.Fatalf("expected 2 loaded authorities, got %d", h2.Count())
	}
}

func TestLoadMissingFileIsEmptyNotError(t *testing.T) {
	h := New(10, filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err := h.Load(); err != nil {
		t.Fatalf("expected no error for missing hosts file, got %v", err)
	}
	if h.Count() != 0 {
		t.Fatalf("expected empty pool, got %d", h.Count())
	}
}

func TestRemove(t *testing.T) {
	h := New(10, filepath.Join(t.TempDir(), "hosts.txt"))
	a := mustParse(t, "1.1.1.1:8333")
	h.Store(a)
	h.Remove(a)
	if h.Count() != 0 {
		t.Fatalf("expected 0 after remove, got %d", h.Count())
	}
}
