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

// Manual implements session_manual (spec §4.11): one supervisor per
// configured endpoint that connects, attaches the standard protocol set,
// and reconnects after connect_timeout on any channel stop — forever by
// default, or up to manual_attempt_limit attempts per endpoint
// (SPEC_FULL.md supplemented feature #3).
type Manual struct {
	deps      Deps
	connector *accept.Connector

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active map[string]context.CancelFunc
}

// NewManual returns a Manual session dialing out with connector.
func NewManual(deps Deps, connector *accept.Connector) *Manual {
	return &Manual{deps: deps, connector: connector, active: make(map[string]context.CancelFunc)}
}

// Start launches a supervisor goroutine for every endpoint already
// configured in deps.Config.Peers, plus any later added with Connect. It
// completes immediately; the reconnect loops run in the background until
// Stop.
func (m *Manual) Start(handler func(code.Code)) {
	m.mu.Lock()
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.mu.Unlock()

	for _, peer := range m.deps.Config.Peers {
		m.Connect(peer)
	}
	if handler != nil {
		handler(code.Success)
	}
}

// Connect adds endpoint to the set of manually-maintained connections,
// starting its supervisor loop if it isn't already running.
func (m *Manual) Connect(endpoint authority.Authority) {
	key := endpoint.Key()

	m.mu.Lock()
	if _, ok := m.active[key]; ok {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.active[key] = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		m.supervise(ctx, endpoint)
	}()
}

func (m *Manual) supervise(ctx context.Context, endpoint authority.Authority) {
	attempts := 0
	limit := m.deps.Config.ManualAttemptLimit

	for {
		if ctx.Err() != nil {
			return
		}
		if limit > 0 && attempts >= limit {
			log.Debugf("session_manual: giving up on %s after %d attempts", endpoint, attempts)
			return
		}
		attempts++

		done := make(chan struct{})
		m.connector.Connect(ctx, endpoint, func(c code.Code, ch *channel.Channel) {
			defer close(done)
			if c != code.Success {
				log.Debugf("session_manual: connect to %s failed: %s", endpoint, c)
				return
			}
			if blocked(m.deps, ch) {
				log.Debugf("session_manual: %s is blacklisted, dropping", endpoint)
				ch.Stop(code.AcceptFailed)
				return
			}
			m.runChannel(ctx, ch, endpoint)
		})
		<-done

		if !sleepOrDone(ctx, m.deps.Config.ConnectTimeout) {
			return
		}
	}
}

func (m *Manual) runChannel(ctx context.Context, ch *channel.Channel, endpoint authority.Authority) {
	ch.Start()
	stopped := make(chan struct{})
	ch.OnStop(func(code.Code) { close(stopped) })

	attachStandard(ch, m.deps, true, nil, func(c code.Code) {
		if c != code.Success {
			return
		}
		if err := m.deps.Connections.Add(ch); err != nil {
			log.Debugf("session_manual: %s already connected: %s", endpoint, err)
			ch.Stop(code.AcceptFailed)
			return
		}
		ch.OnStop(func(code.Code) { m.deps.Connections.Remove(ch) })
	})

	select {
	case <-stopped:
	case <-ctx.Done():
		ch.Stop(code.ServiceStopped)
		<-stopped
	}
}

// Stop cancels every supervisor loop and waits for them to exit.
func (m *Manual) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}
