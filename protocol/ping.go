// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"sync"
	"time"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/wiremsg"
)

// PingNonceMinVersion is the negotiated version at and above which ping
// and pong carry a matching nonce (spec §4.9); below it (31402), ping
// carries no payload and pong is not expected to echo anything meaningful.
const PingNonceMinVersion = 60001

// Ping keeps a channel alive with a periodic ping/pong exchange (spec
// §4.9). Construct with NewPing once the handshake has negotiated a
// version, then call Start.
type Ping struct {
	*Timer

	hasNonce bool

	mu           sync.Mutex
	outstanding  bool
	pendingNonce uint64
}

// NewPing returns a Ping protocol for ch, ticking every heartbeat.
func NewPing(ch *channel.Channel, heartbeat time.Duration) *Ping {
	return &Ping{
		Timer:    NewTimer(ch, heartbeat, true),
		hasNonce: ch.NegotiatedVersion() >= PingNonceMinVersion,
	}
}

// Start subscribes to ping and pong and starts the heartbeat timer.
func (p *Ping) Start(handler func(code.Code)) {
	ch := p.Channel()
	ch.Subscribe(wiremsg.CmdPing, p.handlePing)
	ch.Subscribe(wiremsg.CmdPong, p.handlePong)
	p.Timer.Start(p.tick)
	if handler != nil {
		handler(code.Success)
	}
}

// tick fires every channel_heartbeat. If the previous ping is still
// unanswered, the channel has gone quiet and is stopped with
// code.ChannelTimeout; otherwise a fresh ping is sent.
func (p *Ping) tick() {
	ch := p.Channel()

	p.mu.Lock()
	if p.outstanding {
		p.mu.Unlock()
		log.Debugf("protocol_ping: no pong from %s before next heartbeat", ch.RemoteAuthority())
		ch.Stop(code.ChannelTimeout)
		return
	}

	msg := &wiremsg.MsgPing{}
	if p.hasNonce {
		msg.Nonce = rand.Uint64()
		msg.HasNonce = true
		p.pendingNonce = msg.Nonce
	}
	p.outstanding = true
	p.mu.Unlock()

	ch.Send(msg, func(c code.Code) {
		if c != code.Success {
			ch.Stop(c)
		}
	})
}

// handlePing answers a peer's own ping with a pong echoing its nonce, so an
// unresponsive node doesn't look stalled from the peer's side.
func (p *Ping) handlePing(c code.Code, msg wiremsg.Message) bool {
	if c != code.Success {
		return false
	}
	ping := msg.(*wiremsg.MsgPing)
	p.Channel().Send(&wiremsg.MsgPong{Nonce: ping.Nonce}, nil)
	return true
}

func (p *Ping) handlePong(c code.Code, msg wiremsg.Message) bool {
	if c != code.Success {
		return false
	}
	pong := msg.(*wiremsg.MsgPong)

	p.mu.Lock()
	if p.hasNonce && pong.Nonce != p.pendingNonce {
		p.mu.Unlock()
		log.Debugf("protocol_ping: mismatched pong nonce from %s", p.Channel().RemoteAuthority())
		p.Channel().Stop(code.BadStream)
		return true
	}
	p.outstanding = false
	p.mu.Unlock()
	return true
}
