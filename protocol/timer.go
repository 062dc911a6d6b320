// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"sync"
	"time"

	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

// Timer is protocol_timer (spec §4.6): in addition to Events' stop
// wiring, it schedules a callback every interval, dispatched on the
// channel's strand so a firing never races a message notification for the
// same channel. A perpetual timer reschedules itself after every firing; a
// one-shot timer fires once and stops.
type Timer struct {
	*Events

	interval  time.Duration
	perpetual bool

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewTimer returns a Timer bound to ch with the given period. perpetual
// selects whether the timer reschedules itself after each firing (the
// default per spec §4.6) or fires only once.
func NewTimer(ch *channel.Channel, interval time.Duration, perpetual bool) *Timer {
	t := &Timer{Events: NewEvents(ch), interval: interval, perpetual: perpetual}
	t.OnStopped(func(code.Code) { t.cancel() })
	return t
}

// Start begins the timer, invoking fn on the channel's strand at each
// firing.
func (t *Timer) Start(fn func()) {
	t.reset(fn)
}

// Reset restarts the interval from now, as though the timer had just
// fired without invoking fn. Protocols use this to push back an
// idle-driven timer after other traffic establishes liveness.
func (t *Timer) Reset(fn func()) {
	t.reset(fn)
}

func (t *Timer) reset(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	ch := t.Channel()
	t.timer = time.AfterFunc(t.interval, func() {
		ch.Strand(func() { t.fire(fn) })
	})
}

func (t *Timer) fire(fn func()) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	fn()

	if t.perpetual {
		t.reset(fn)
	}
}

func (t *Timer) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}
