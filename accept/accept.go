// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package accept implements the Acceptor and Connector factories that turn
// raw listen/dial primitives into Channels, reporting every outcome through
// a handler callback rather than a connection-request object.
package accept

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

// Handler receives the result of a listen or connect attempt: the result
// code and, on success, the Channel built from the new socket.
type Handler func(c code.Code, ch *channel.Channel)

// Resolver abstracts DNS or other endpoint resolution. Spec §1 excludes
// DNS resolution internals; callers supply whatever hook they like
// (including a no-op that returns the authority unchanged).
type Resolver func(ctx context.Context, a authority.Authority) (authority.Authority, error)

// Acceptor binds a listener and produces a Channel for each accepted
// connection.
type Acceptor struct {
	channelCfg channel.Config

	listener net.Listener
	cancel   context.CancelFunc
}

// NewAcceptor returns an Acceptor that builds Channels with channelCfg.
func NewAcceptor(channelCfg channel.Config) *Acceptor {
	return &Acceptor{channelCfg: channelCfg}
}

// Listen binds a TCP listener on bindAddr:port. The listener is held until
// Stop is called.
func (a *Acceptor) Listen(bindAddr string, port uint16) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(bindAddr, strconv.Itoa(int(port))))
	if err != nil {
		return code.Wrap(code.AddressInUse, "binding listener", err)
	}
	a.listener = ln
	return nil
}

// Accept runs the accept loop until Stop is called, invoking handler for
// every incoming connection (and once more with code.ServiceStopped when
// the loop exits). Must be run as a goroutine by the caller.
func (a *Acceptor) Accept(ctx context.Context, handler Handler) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				handler(code.ServiceStopped, nil)
				return
			}
			log.Debugf("accept failed: %v", err)
			handler(code.AcceptFailed, nil)
			continue
		}
		remote := remoteAuthority(conn)
		ch := channel.New(conn, true, remote, a.channelCfg)
		handler(code.Success, ch)
	}
}

// Addr returns the listener's bound address, or nil if Listen hasn't been
// called (or failed).
func (a *Acceptor) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Stop closes the listener, unblocking any in-progress Accept.
func (a *Acceptor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.listener != nil {
		_ = a.listener.Close()
	}
}

// Connector dials remote authorities and produces Channels.
type Connector struct {
	channelCfg channel.Config
	timeout    time.Duration
	resolver   Resolver
	dial       func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewConnector returns a Connector that dials with the given timeout and
// resolver, building Channels with channelCfg. A nil resolver is treated
// as identity (the authority is already a routable endpoint). A nil dial
// function defaults to the standard library dialer.
func NewConnector(channelCfg channel.Config, timeout time.Duration, resolver Resolver, dial func(ctx context.Context, network, addr string) (net.Conn, error)) *Connector {
	if dial == nil {
		var d net.Dialer
		dial = d.DialContext
	}
	return &Connector{channelCfg: channelCfg, timeout: timeout, resolver: resolver, dial: dial}
}

// Connect resolves a (if a resolver is configured), dials it within the
// connector's timeout, and invokes handler with the resulting Channel. If
// ctx is cancelled first, handler is invoked with code.ServiceStopped.
func (c *Connector) Connect(ctx context.Context, a authority.Authority, handler Handler) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := a
	if c.resolver != nil {
		resolved, err := c.resolver(ctx, a)
		if err != nil {
			handler(code.ResolveFailed, nil)
			return
		}
		target = resolved
	}

	conn, err := c.dial(ctx, "tcp", target.Key())
	if err != nil {
		if ctx.Err() != nil {
			handler(code.ServiceStopped, nil)
			return
		}
		handler(code.NetworkUnreachable, nil)
		return
	}

	ch := channel.New(conn, false, target, c.channelCfg)
	handler(code.Success, ch)
}

func remoteAuthority(conn net.Conn) authority.Authority {
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		return authority.FromTCPAddr(tcpAddr)
	}
	a, _ := authority.Parse(conn.RemoteAddr().String())
	return a
}
