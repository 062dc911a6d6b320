// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"time"

	"github.com/bitcoin-network/p2p/banlist"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/config"
	"github.com/bitcoin-network/p2p/connset"
	"github.com/bitcoin-network/p2p/hosts"
	"github.com/bitcoin-network/p2p/pending"
	"github.com/bitcoin-network/p2p/protocol"
)

// Deps bundles the shared capabilities every session strategy needs: the
// configuration, the Hosts pool, the live Connections set, the pending-
// channel/socket bookkeeping, the blacklist, and the external height
// collaborator (spec §1 excludes block validation; only height() is
// needed). A Deps value is constructed once by the p2p orchestrator and
// passed to every session it starts.
type Deps struct {
	Config      config.Config
	Hosts       *hosts.Hosts
	Connections *connset.Connections
	Pending     *pending.Channels
	Sockets     *pending.Sockets
	Blacklist   *banlist.List
	Height      protocol.HeightFunc
	Now         protocol.NowFunc
}

// ExtraProtocol is a caller-supplied protocol start function attached after
// the standard ping/address pair completes a handshake (spec §4.11,
// "and any caller-supplied extras").
type ExtraProtocol func(ch *channel.Channel)

// attachStandard runs the version handshake on ch, and — only on handshake
// success (spec §4.11: "version first, and only after handshake success,
// ping + address") — starts protocol_ping and protocol_address plus any
// extras. handler is invoked exactly once with the handshake's outcome.
//
// selfOriginated marks ch as a channel this process dialed out on: its own
// nonce is registered in PendingChannels before the handshake starts and
// removed on handshake success or channel stop (spec §3), so an inbound
// loopback of this same connection can be recognized as a self-connection.
func attachStandard(ch *channel.Channel, deps Deps, selfOriginated bool, extras []ExtraProtocol, handler func(code.Code)) {
	if selfOriginated && deps.Pending != nil {
		deps.Pending.Add(ch.Nonce())
		ch.OnStop(func(code.Code) { deps.Pending.Remove(ch.Nonce()) })
	}

	use70002 := deps.Config.ProtocolMaximum >= protocol.Version70002Threshold
	v := protocol.NewVersion(ch, deps.Config, deps.Pending, deps.Height, use70002)
	v.SetClock(deps.Now)

	v.Start(func(c code.Code) {
		if selfOriginated && deps.Pending != nil {
			deps.Pending.Remove(ch.Nonce())
		}
		if c != code.Success {
			if handler != nil {
				handler(c)
			}
			return
		}

		ping := protocol.NewPing(ch, deps.Config.ChannelHeartbeat)
		ping.Start(nil)

		addr := protocol.NewAddress(ch, deps.Hosts)
		addr.Start(nil)

		for _, extra := range extras {
			extra(ch)
		}

		if handler != nil {
			handler(code.Success)
		}
	})
}

// blocked reports whether ch's remote authority is disallowed by deps'
// blacklist (SPEC_FULL.md supplemented feature #2).
func blocked(deps Deps, ch *channel.Channel) bool {
	return deps.Blacklist.Blocked(ch.RemoteAuthority())
}

// sleepOrDone waits for d or for ctx to be cancelled first, reporting which
// happened. Every session's retry/backoff loop uses this so a stop signal
// interrupts a pending wait immediately instead of completing it first.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
