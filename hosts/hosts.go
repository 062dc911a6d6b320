// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package hosts implements the bounded, deduplicated, persisted pool of
// known peer authorities. Persistence uses a write-temp-then-rename pattern
// so a crash mid-save never leaves a corrupt hosts file, and the pool
// itself is a flat ordered sequence with LRU-style eviction.
package hosts

import (
	"bufio"
	"os"
	"sync"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/code"
)

// entry is one stored authority plus its on-loan marker (SPEC_FULL.md
// "Host pool fetch diversity"): while true, Fetch skips this authority so
// concurrent outbound slots don't race each other onto the same address.
type entry struct {
	auth   authority.Authority
	onLoan bool
}

// Hosts is a bounded, ordered, deduplicated pool of peer authorities.
type Hosts struct {
	mu       sync.Mutex
	order    []authority.Authority // oldest-stored first, for LRU eviction
	index    map[string]*entry
	capacity int
	path     string
}

// New returns an empty pool bounded at capacity and persisted at path.
func New(capacity int, path string) *Hosts {
	if capacity <= 0 {
		capacity = 1
	}
	return &Hosts{
		index:    make(map[string]*entry),
		capacity: capacity,
		path:     path,
	}
}

// Count returns the number of stored authorities.
func (h *Hosts) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.order)
}

// Store inserts a if not already present. If the pool is at capacity, the
// least-recently-stored entry is evicted first.
func (h *Hosts) Store(a authority.Authority) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storeLocked(a)
}

// StoreList inserts each authority in list, deduplicating and evicting as
// Store does.
func (h *Hosts) StoreList(list []authority.Authority) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range list {
		h.storeLocked(a)
	}
}

func (h *Hosts) storeLocked(a authority.Authority) {
	key := a.Key()
	if _, ok := h.index[key]; ok {
		return
	}
	if len(h.order) >= h.capacity {
		h.evictOldestLocked()
	}
	h.order = append(h.order, a)
	h.index[key] = &entry{auth: a}
}

func (h *Hosts) evictOldestLocked() {
	if len(h.order) == 0 {
		return
	}
	oldest := h.order[0]
	h.order = h.order[1:]
	delete(h.index, oldest.Key())
}

// Remove deletes a from the pool, if present.
func (h *Hosts) Remove(a authority.Authority) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := a.Key()
	if _, ok := h.index[key]; !ok {
		return
	}
	delete(h.index, key)
	for i, existing := range h.order {
		if existing.Key() == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Fetch returns a random authority not currently on loan, marking it on
// loan. Callers must call Release when done with the authority (handshake
// complete or attempt abandoned) so it becomes eligible for Fetch again.
// Fails with code.NotFound if the pool is empty or every entry is on loan.
func (h *Hosts) Fetch() (authority.Authority, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var free []string
	for key, e := range h.index {
		if !e.onLoan {
			free = append(free, key)
		}
	}
	if len(free) == 0 {
		return authority.Authority{}, code.New(code.NotFound, "hosts pool has no available authority")
	}

	key := free[rand.Uint32N(uint32(len(free)))]
	e := h.index[key]
	e.onLoan = true
	return e.auth, nil
}

// Release clears the on-loan marker for a, making it eligible for Fetch
// again. A no-op if a is not present or not on loan.
func (h *Hosts) Release(a authority.Authority) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.index[a.Key()]; ok {
		e.onLoan = false
	}
}

// Sample returns up to n authorities chosen at random from the pool,
// without marking them on loan — unlike Fetch, it's used to answer a
// peer's get_address request (spec §4.10), where handing out the same
// authority to several peers concurrently is fine.
func (h *Hosts) Sample(n int) []authority.Authority {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n >= len(h.order) {
		out := make([]authority.Authority, len(h.order))
		copy(out, h.order)
		return out
	}

	pool := make([]authority.Authority, len(h.order))
	copy(pool, h.order)
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n]
}

// Load reads the pool from its configured path. A missing file leaves the
// pool empty rather than failing, per spec §6 "Persistent state".
func (h *Hosts) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Open(h.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return code.Wrap(code.FileSystem, "opening hosts file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		a, err := authority.Parse(line)
		if err != nil {
			continue // a single malformed line shouldn't abort the whole load
		}
		h.storeLocked(a)
	}
	return nil
}

// Save writes the pool to its configured path atomically (write-temp-then-
// rename, per addrmgr.savePeers).
func (h *Hosts) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	tmp := h.path + ".new"
	f, err := os.Create(tmp)
	if err != nil {
		return code.Wrap(code.FileSystem, "creating hosts temp file", err)
	}

	w := bufio.NewWriter(f)
	for _, a := range h.order {
		if _, err := w.WriteString(a.String() + "\n"); err != nil {
			f.Close()
			return code.Wrap(code.FileSystem, "writing hosts temp file", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return code.Wrap(code.FileSystem, "flushing hosts temp file", err)
	}
	if err := f.Close(); err != nil {
		return code.Wrap(code.FileSystem, "closing hosts temp file", err)
	}
	if err := os.Rename(tmp, h.path); err != nil {
		return code.Wrap(code.FileSystem, "renaming hosts temp file", err)
	}
	return nil
}
