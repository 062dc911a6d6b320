// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"sync"

	"github.com/bitcoin-network/p2p/accept"
	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/banlist"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/config"
	"github.com/bitcoin-network/p2p/connset"
	"github.com/bitcoin-network/p2p/hosts"
	"github.com/bitcoin-network/p2p/pending"
	"github.com/bitcoin-network/p2p/protocol"
	"github.com/bitcoin-network/p2p/session"
	"github.com/bitcoin-network/p2p/wiremsg"
)

// P2P is the top-level orchestrator (spec §4.12). It exclusively owns
// Hosts, Connections, PendingChannels, and PendingSockets (spec §3
// "Ownership"), and drives the seed/manual/outbound/inbound sessions built
// over them.
type P2P struct {
	cfg config.Config

	hosts  *hosts.Hosts
	conns  *connset.Connections
	pendCh *pending.Channels
	pendSk *pending.Sockets
	bans   *banlist.List

	height protocol.HeightFunc
	now    protocol.NowFunc

	acceptor  *accept.Acceptor
	connector *accept.Connector

	mu       sync.Mutex
	started  bool
	seed     *session.Seed
	manual   *session.Manual
	outbound *session.Outbound
	inbound  *session.Inbound
}

// Resolver abstracts DNS or other endpoint resolution (spec §1); passed
// through to the Connector unchanged. A nil resolver treats every
// authority as already routable.
type Resolver = accept.Resolver

// New constructs a P2P core from cfg. height reports the current
// best-known chain height (spec §1, "only a height() accessor is
// required"); resolver performs any DNS-like resolution the Connector
// needs before dialing; both may be nil.
func New(cfg config.Config, height protocol.HeightFunc, resolver Resolver) *P2P {
	cfg = cfg.Normalize()

	channelCfg := channel.Config{
		Magic:             cfg.Identifier,
		ChannelExpiration: cfg.ChannelExpiration,
		ChannelInactivity: cfg.ChannelInactivity,
	}

	return &P2P{
		cfg:       cfg,
		hosts:     hosts.New(cfg.HostPoolCapacity, cfg.HostsFile),
		conns:     connset.New(),
		pendCh:    pending.NewChannels(),
		pendSk:    pending.NewSockets(cfg.ConnectBatchSize * cfg.OutboundConnections),
		bans:      banlist.Parse(cfg.Blacklist),
		height:    height,
		acceptor:  accept.NewAcceptor(channelCfg),
		connector: accept.NewConnector(channelCfg, cfg.ConnectTimeout, resolver, nil),
	}
}

func (p *P2P) deps() session.Deps {
	return session.Deps{
		Config:      p.cfg,
		Hosts:       p.hosts,
		Connections: p.conns,
		Pending:     p.pendCh,
		Sockets:     p.pendSk,
		Blacklist:   p.bans,
		Height:      p.height,
		Now:         p.now,
	}
}

// Start validates the configuration, loads Hosts from disk, runs the seed
// session to completion, then starts the manual, outbound, and inbound
// sessions. handler is invoked exactly once with the outcome: any fatal
// configuration error or Hosts load failure aborts startup and is reported
// through it, per spec §6 "Exit conditions".
func (p *P2P) Start(handler func(code.Code)) {
	if err := p.cfg.Validate(); err != nil {
		log.Errorf("p2p: invalid configuration: %v", err)
		if handler != nil {
			handler(code.Of(err))
		}
		return
	}

	if err := p.hosts.Load(); err != nil {
		log.Errorf("p2p: failed to load hosts file: %v", err)
		if handler != nil {
			handler(code.Of(err))
		}
		return
	}
	log.Infof("p2p: loaded %d hosts from %s", p.hosts.Count(), p.cfg.HostsFile)

	p.mu.Lock()
	p.started = true
	p.seed = session.NewSeed(p.deps(), p.connector)
	p.manual = session.NewManual(p.deps(), p.connector)
	p.outbound = session.NewOutbound(p.deps(), p.connector)
	p.inbound = session.NewInbound(p.deps(), p.acceptor)
	p.mu.Unlock()

	p.seed.Start(func(c code.Code) {
		if c != code.Success {
			// Seeding failure is logged, not fatal (spec §7: peripheral
			// runtime errors don't abort the core). Other sessions can
			// still bring up connections from manual peers or whatever
			// Hosts already had persisted.
			log.Errorf("p2p: seeding did not find any hosts: %s", c)
		}

		p.manual.Start(func(code.Code) {})
		p.outbound.Start(func(code.Code) {})
		p.inbound.Start(func(ic code.Code) {
			if handler != nil {
				handler(ic)
			}
		})
	})
}

// Stop stops every running session (which stops all their channels),
// saves Hosts, and releases listeners. Peripheral failures (e.g. a Hosts
// save failure) are logged, not reported, per spec §7.
func (p *P2P) Stop() {
	p.mu.Lock()
	started := p.started
	seed, manual, outbound, inbound := p.seed, p.manual, p.outbound, p.inbound
	p.started = false
	p.mu.Unlock()

	if !started {
		return
	}

	if seed != nil {
		seed.Stop()
	}
	if manual != nil {
		manual.Stop()
	}
	if outbound != nil {
		outbound.Stop()
	}
	if inbound != nil {
		inbound.Stop()
	}

	p.conns.Each(func(ch *channel.Channel) { ch.Stop(code.ServiceStopped) })

	if err := p.hosts.Save(); err != nil {
		log.Errorf("p2p: failed to save hosts file: %v", err)
	}
}

// Connect adds endpoint to the manually-maintained connection set,
// delegating to session_manual (spec §4.12).
func (p *P2P) Connect(endpoint authority.Authority) {
	p.mu.Lock()
	manual := p.manual
	p.mu.Unlock()
	if manual == nil {
		log.Errorf("p2p: Connect called before Start")
		return
	}
	manual.Connect(endpoint)
}

// Broadcast sends message to every live channel in Connections. handler,
// if non-nil, is invoked once per channel with that channel's own send
// outcome (spec §4.12).
func (p *P2P) Broadcast(message wiremsg.Message, handler func(*channel.Channel, code.Code)) {
	p.conns.Each(func(ch *channel.Channel) {
		ch.Send(message, func(c code.Code) {
			if handler != nil {
				handler(ch, c)
			}
		})
	})
}

// Connections exposes the live connection set for read-only inspection
// (connection counts, iteration) by callers outside the core.
func (p *P2P) Connections() *connset.Connections { return p.conns }

// Hosts exposes the known-hosts pool for read-only inspection.
func (p *P2P) Hosts() *hosts.Hosts { return p.hosts }
