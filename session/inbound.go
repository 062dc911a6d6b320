// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"sync"

	"github.com/bitcoin-network/p2p/accept"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

// Inbound implements session_inbound (spec §4.11): if inbound_connections
// is greater than zero, it opens a listener via Acceptor and, on each
// accept, rejects connections beyond the configured cap or a remote
// authority already holding a live channel, otherwise attaching the
// standard protocol set.
type Inbound struct {
	deps     Deps
	acceptor *accept.Acceptor

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewInbound returns an Inbound session accepting with acceptor.
func NewInbound(deps Deps, acceptor *accept.Acceptor) *Inbound {
	return &Inbound{deps: deps, acceptor: acceptor}
}

// Start binds the listener and runs the accept loop in the background.
// handler is invoked once the listener is bound (or immediately with
// code.Success if inbound_connections is zero, per spec §4.11).
func (s *Inbound) Start(handler func(code.Code)) {
	if s.deps.Config.InboundConnections <= 0 {
		log.Debugf("session_inbound: inbound disabled by configuration")
		if handler != nil {
			handler(code.Success)
		}
		return
	}

	if err := s.acceptor.Listen("", s.deps.Config.InboundPort); err != nil {
		log.Errorf("session_inbound: failed to listen on port %d: %v", s.deps.Config.InboundPort, err)
		if handler != nil {
			handler(code.Of(err))
		}
		return
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptor.Accept(s.ctx, s.handleAccept)
	}()

	if handler != nil {
		handler(code.Success)
	}
}

// Stop closes the listener, unblocking the accept loop, and waits for it
// to exit.
func (s *Inbound) Stop() {
	s.acceptor.Stop()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Inbound) handleAccept(c code.Code, ch *channel.Channel) {
	if c != code.Success {
		if c != code.ServiceStopped {
			log.Debugf("session_inbound: accept failed: %s", c)
		}
		return
	}

	remote := ch.RemoteAuthority()
	switch {
	case s.deps.Blacklist.Blocked(remote):
		log.Debugf("session_inbound: rejecting blacklisted %s", remote)
		ch.Stop(code.AcceptFailed)
		return
	case s.deps.Connections.Count() >= s.deps.Config.InboundConnections:
		log.Debugf("session_inbound: rejecting %s, at capacity", remote)
		ch.Stop(code.AcceptFailed)
		return
	case s.deps.Connections.Contains(remote):
		log.Debugf("session_inbound: rejecting %s, already connected", remote)
		ch.Stop(code.AcceptFailed)
		return
	}

	ch.Start()
	attachStandard(ch, s.deps, false, nil, func(c code.Code) {
		if c != code.Success {
			return
		}
		if err := s.deps.Connections.Add(ch); err != nil {
			log.Debugf("session_inbound: %s lost race to join Connections: %s", remote, err)
			ch.Stop(code.AcceptFailed)
			return
		}
		ch.OnStop(func(code.Code) { s.deps.Connections.Remove(ch) })
	})
}
