// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package session

import (
	"context"
	"sync"

	"github.com/bitcoin-network/p2p/accept"
	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

// Seed implements session_seed (spec §4.11): if Hosts is already at
// capacity it completes immediately; otherwise it concurrently contacts
// every configured seed endpoint, performs the handshake, requests
// addresses, and collects replies until channel_germination elapses, then
// stops every seed channel. It completes once, successfully if Hosts ends
// non-empty.
type Seed struct {
	deps      Deps
	connector *accept.Connector

	mu       sync.Mutex
	channels []*channel.Channel
	cancel   context.CancelFunc
}

// NewSeed returns a Seed session dialing out with connector.
func NewSeed(deps Deps, connector *accept.Connector) *Seed {
	return &Seed{deps: deps, connector: connector}
}

// Start runs the seeding campaign and invokes handler exactly once with its
// outcome, decided once channel_germination has elapsed (or at once when
// no seeds are configured): code.Success if Hosts is then non-empty, or
// code.SeedingUnsuccessful if it is still empty.
func (s *Seed) Start(handler func(code.Code)) {
	if s.deps.Hosts.Count() >= s.deps.Config.HostPoolCapacity {
		log.Debugf("session_seed: hosts pool already at capacity, skipping")
		if handler != nil {
			handler(code.Success)
		}
		return
	}

	seeds := s.deps.Config.Seeds
	if len(seeds) == 0 {
		log.Debugf("session_seed: no seed endpoints configured")
		s.finish(handler)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Config.ChannelGermination)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, seedAuth := range seeds {
		wg.Add(1)
		go func(seedAuth authority.Authority) {
			defer wg.Done()
			s.connector.Connect(ctx, seedAuth, func(c code.Code, ch *channel.Channel) {
				if c != code.Success {
					log.Debugf("session_seed: connect to %s failed: %s", seedAuth, c)
					return
				}
				s.runSeedChannel(ctx, ch)
			})
		}(seedAuth)
	}

	go func() {
		wg.Wait()
		<-ctx.Done()
		cancel()
		s.Stop()
		s.finish(handler)
	}()
}

func (s *Seed) runSeedChannel(ctx context.Context, ch *channel.Channel) {
	ch.Start()
	s.mu.Lock()
	s.channels = append(s.channels, ch)
	s.mu.Unlock()

	attachStandard(ch, s.deps, true, nil, func(c code.Code) {
		if c != code.Success {
			return
		}
		// protocol_address already sends get_address on Start; addr
		// replies flow into Hosts via its Addr handler until
		// channel_germination elapses and Stop tears this channel down.
	})

	<-ctx.Done()
}

func (s *Seed) finish(handler func(code.Code)) {
	c := code.SeedingUnsuccessful
	if s.deps.Hosts.Count() > 0 {
		c = code.Success
	}
	log.Debugf("session_seed: finished with %d hosts: %s", s.deps.Hosts.Count(), c)
	if handler != nil {
		handler(c)
	}
}

// Stop cancels the seeding campaign (if still in flight) and stops every
// seed channel.
func (s *Seed) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	channels := s.channels
	s.channels = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, ch := range channels {
		ch.Stop(code.ServiceStopped)
	}
}
