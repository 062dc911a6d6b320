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

// Outbound implements session_outbound (spec §4.11): it maintains exactly
// outbound_connections live outbound channels, one slot goroutine per
// connection. Each slot draws an authority from Hosts, dials a batch of
// connect_batch_size simultaneous candidates, keeps the first to complete
// the handshake and stops the rest, and restarts whenever its channel
// dies.
type Outbound struct {
	deps      Deps
	connector *accept.Connector

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOutbound returns an Outbound session dialing out with connector.
func NewOutbound(deps Deps, connector *accept.Connector) *Outbound {
	return &Outbound{deps: deps, connector: connector}
}

// Start launches outbound_connections slot goroutines and returns
// immediately; handler is invoked with code.Success once they're launched
// (spec §4.11 does not require waiting for any slot to actually connect
// before the session is considered started).
func (o *Outbound) Start(handler func(code.Code)) {
	o.ctx, o.cancel = context.WithCancel(context.Background())

	n := o.deps.Config.OutboundConnections
	o.wg.Add(n)
	for i := 0; i < n; i++ {
		go func(slot int) {
			defer o.wg.Done()
			o.runSlot(slot)
		}(i)
	}
	if handler != nil {
		handler(code.Success)
	}
}

// Stop cancels every slot and waits for its goroutine to exit.
func (o *Outbound) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

func (o *Outbound) runSlot(slot int) {
	for o.ctx.Err() == nil {
		target, err := o.drawTarget()
		if err != nil {
			// No eligible target right now; channel_poll is the cadence at
			// which Hosts is re-checked for newly-available candidates.
			if !sleepOrDone(o.ctx, o.deps.Config.ChannelPoll) {
				return
			}
			continue
		}

		ch := o.connectBatch(target)
		o.deps.Hosts.Release(target)
		if ch == nil {
			// The batch produced no successful handshake; back off for
			// connect_timeout before redrawing, same as session_manual,
			// so a dead host can't spin the slot into a busy reconnect loop.
			if !sleepOrDone(o.ctx, o.deps.Config.ConnectTimeout) {
				return
			}
			continue
		}

		stopped := make(chan struct{})
		ch.OnStop(func(code.Code) { close(stopped) })
		select {
		case <-stopped:
		case <-o.ctx.Done():
			ch.Stop(code.ServiceStopped)
			<-stopped
			return
		}
	}
}

// drawTarget fetches a candidate authority from Hosts that isn't already
// connected, pending, or blacklisted, retrying within the slot's own loop
// rather than blocking other slots.
func (o *Outbound) drawTarget() (authority.Authority, error) {
	for attempt := 0; attempt < 8; attempt++ {
		a, err := o.deps.Hosts.Fetch()
		if err != nil {
			return authority.Authority{}, err
		}
		if o.deps.Connections.Contains(a) || o.deps.Sockets.Contains(a) || o.deps.Blacklist.Blocked(a) {
			o.deps.Hosts.Release(a)
			continue
		}
		return a, nil
	}
	return authority.Authority{}, code.New(code.NotFound, "no eligible outbound target")
}

// connectBatch dials connect_batch_size simultaneous candidates toward
// target: the first to complete the handshake wins and the rest are
// stopped. Since Hosts.Fetch returns a single authority, the batch races
// repeated connect attempts to the same authority rather than distinct
// candidates, tolerating one slow or unresponsive dial without stalling
// the slot.
func (o *Outbound) connectBatch(target authority.Authority) *channel.Channel {
	batch := o.deps.Config.ConnectBatchSize
	if batch < 1 {
		batch = 1
	}

	o.deps.Sockets.Add(target)
	defer o.deps.Sockets.Remove(target)

	ctx, cancel := context.WithCancel(o.ctx)
	defer cancel()

	type result struct {
		ch *channel.Channel
	}
	results := make(chan result, batch)

	var wg sync.WaitGroup
	for i := 0; i < batch; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.connector.Connect(ctx, target, func(c code.Code, ch *channel.Channel) {
				if c != code.Success {
					results <- result{}
					return
				}
				if blocked(o.deps, ch) {
					ch.Stop(code.AcceptFailed)
					results <- result{}
					return
				}
				ch.Start()
				done := make(chan code.Code, 1)
				attachStandard(ch, o.deps, true, nil, func(c code.Code) { done <- c })
				select {
				case c := <-done:
					if c != code.Success {
						results <- result{}
						return
					}
				case <-ctx.Done():
					ch.Stop(code.ServiceStopped)
					results <- result{}
					return
				}
				results <- result{ch: ch}
			})
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var winner *channel.Channel
	for r := range results {
		if r.ch == nil {
			continue
		}
		if winner != nil {
			r.ch.Stop(code.AcceptFailed)
			continue
		}
		if err := o.deps.Connections.Add(r.ch); err != nil {
			log.Debugf("session_outbound: %s lost the race to join Connections: %s", target, err)
			r.ch.Stop(code.AcceptFailed)
			continue
		}
		r.ch.OnStop(func(code.Code) { o.deps.Connections.Remove(r.ch) })
		winner = r.ch
		cancel() // stop the remaining in-flight candidates in this batch
	}
	return winner
}
