// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package accept

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
)

func TestAcceptorProducesChannelOnConnect(t *testing.T) {
	a := NewAcceptor(channel.Config{Magic: 1})
	if err := a.Listen("127.0.0.1", 0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer a.Stop()

	_, portStr, err := splitAddr(a.listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	accepted := make(chan *channel.Channel, 1)
	go a.Accept(context.Background(), func(c code.Code, ch *channel.Channel) {
		if c == code.Success {
			accepted <- ch
		}
	})

	connector := NewConnector(channel.Config{Magic: 1}, 2*time.Second, nil, nil)
	target := authority.FromIP(net.ParseIP("127.0.0.1"), uint16(port))

	connectDone := make(chan code.Code, 1)
	connector.Connect(context.Background(), target, func(c code.Code, ch *channel.Channel) {
		connectDone <- c
		if ch != nil {
			ch.Stop(code.ServiceStopped)
		}
	})

	select {
	case c := <-connectDone:
		if c != code.Success {
			t.Fatalf("expected successful connect, got %v", c)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for connect")
	}

	select {
	case ch := <-accepted:
		ch.Stop(code.ServiceStopped)
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for accept")
	}
}

func TestConnectorFailsOnUnreachableAddress(t *testing.T) {
	connector := NewConnector(channel.Config{Magic: 1}, 500*time.Millisecond, nil, nil)
	target := authority.FromIP(net.ParseIP("127.0.0.1"), 1) // nothing listening on port 1

	done := make(chan code.Code, 1)
	connector.Connect(context.Background(), target, func(c code.Code, ch *channel.Channel) {
		done <- c
	})

	select {
	case c := <-done:
		if c == code.Success {
			t.Fatal("expected connect to an unreachable port to fail")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connect failure")
	}
}

func splitAddr(addr string) (host, port string, err error) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:], nil
		}
	}
	return addr, "", nil
}
