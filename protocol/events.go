// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package protocol implements the per-channel protocol state machines of
// spec §4.6-4.10: the protocol_events/protocol_timer base behavior, the
// version/verack handshake (protocol_version, protocol_version_70002), the
// ping/pong keep-alive, and address gossip. Each protocol is attached to
// exactly one channel and does not outlive it (spec §9, "Hosts
// back-pointer").
package protocol

import (
	"sync"

	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

// Events is protocol_events (spec §4.6): it guarantees a protocol's
// "channel stopped" notification fires exactly once, regardless of how
// many different failure paths lead to the channel stopping.
type Events struct {
	ch   *channel.Channel
	once sync.Once
}

// NewEvents returns an Events bound to ch.
func NewEvents(ch *channel.Channel) *Events {
	return &Events{ch: ch}
}

// Channel returns the channel this protocol is attached to. Protocols
// hold this as a plain pointer, not a keep-alive reference: they never
// outlive the channel's own lifetime (spec §9).
func (e *Events) Channel() *channel.Channel { return e.ch }

// OnStopped registers fn to run exactly once, with the channel's stop
// code, the first time the channel stops.
func (e *Events) OnStopped(fn func(code.Code)) {
	e.ch.OnStop(func(c code.Code) {
		e.once.Do(func() { fn(c) })
	})
}
