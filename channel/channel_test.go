// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/wiremsg"
)

const testMagic = uint32(0xd9b4bef9)

func newPair(t *testing.T) (*Channel, *Channel) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	cfg := Config{Magic: testMagic}
	a := New(serverConn, true, authority.Authority{}, cfg)
	b := New(clientConn, false, authority.Authority{}, cfg)
	a.Start()
	b.Start()
	t.Cleanup(func() {
		a.Stop(code.ServiceStopped)
		b.Stop(code.ServiceStopped)
	})
	return a, b
}

func TestSendAndReceive(t *testing.T) {
	a, b := newPair(t)

	received := make(chan *wiremsg.MsgPing, 1)
	b.Subscribe(wiremsg.CmdPing, func(c code.Code, msg wiremsg.Message) bool {
		if c == code.Success {
			received <- msg.(*wiremsg.MsgPing)
		}
		return true
	})

	sent := make(chan code.Code, 1)
	a.Send(&wiremsg.MsgPing{Nonce: 42, HasNonce: true}, func(c code.Code) {
		sent <- c
	})

	select {
	case c := <-sent:
		if c != code.Success {
			t.Fatalf("send failed: %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send callback")
	}

	select {
	case msg := <-received:
		if !msg.HasNonce || msg.Nonce != 42 {
			t.Fatalf("unexpected ping: %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message delivery")
	}
}

func TestStopFiresSubscribersAndOnStop(t *testing.T) {
	a, b := newPair(t)
	_ = b

	stopNotified := make(chan code.Code, 1)
	a.Subscribe(wiremsg.CmdPing, func(c code.Code, msg wiremsg.Message) bool {
		stopNotified <- c
		return true
	})

	onStopNotified := make(chan code.Code, 1)
	a.OnStop(func(c code.Code) {
		onStopNotified <- c
	})

	a.Stop(code.ChannelTimeout)
	a.Stop(code.NotFound) // second call must be a no-op, code must not change

	if !a.Stopped() {
		t.Fatal("expected channel to report stopped")
	}

	select {
	case c := <-stopNotified:
		if c != code.ChannelTimeout {
			t.Fatalf("expected ChannelTimeout, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for subscriber stop notification")
	}

	select {
	case c := <-onStopNotified:
		if c != code.ChannelTimeout {
			t.Fatalf("expected ChannelTimeout, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnStop notification")
	}
}

func TestOnStopAfterStopFiresImmediately(t *testing.T) {
	a, _ := newPair(t)
	a.Stop(code.ChannelOversize)

	called := make(chan code.Code, 1)
	a.OnStop(func(c code.Code) { called <- c })

	select {
	case c := <-called:
		if c != code.ChannelOversize {
			t.Fatalf("expected ChannelOversize, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected immediate callback for OnStop after stop")
	}
}

func TestSendAfterStopReportsChannelStopped(t *testing.T) {
	a, _ := newPair(t)
	a.Stop(code.ServiceStopped)

	got := make(chan code.Code, 1)
	a.Send(&wiremsg.MsgPing{}, func(c code.Code) { got <- c })

	select {
	case c := <-got:
		if c != code.ChannelStopped {
			t.Fatalf("expected ChannelStopped, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for send callback")
	}
}

func TestMismatchedMagicStopsChannel(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	a := New(serverConn, true, authority.Authority{}, Config{Magic: testMagic})
	a.Start()
	t.Cleanup(func() { a.Stop(code.ServiceStopped) })

	stoppedWith := make(chan code.Code, 1)
	a.OnStop(func(c code.Code) { stoppedWith <- c })

	go wiremsg.WriteMessage(clientConn, testMagic^0xffffffff, &wiremsg.MsgVerAck{})

	select {
	case c := <-stoppedWith:
		if c != code.ChannelBadMagic {
			t.Fatalf("expected ChannelBadMagic, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel to stop on bad magic")
	}
}

// rawMsg is a minimal wiremsg.Message for commands this package doesn't
// model, used to exercise the unhandled-command path in readLoop.
type rawMsg struct{ cmd string }

func (m rawMsg) Command() string          { return m.cmd }
func (m rawMsg) Encode(w io.Writer) error { return nil }
func (m rawMsg) Decode(r io.Reader) error { return nil }

func TestUnhandledCommandIsDroppedNotFatal(t *testing.T) {
	a, b := newPair(t)

	received := make(chan *wiremsg.MsgPing, 1)
	a.Subscribe(wiremsg.CmdPing, func(c code.Code, msg wiremsg.Message) bool {
		if c == code.Success {
			received <- msg.(*wiremsg.MsgPing)
		}
		return true
	})

	stopped := make(chan code.Code, 1)
	a.OnStop(func(c code.Code) { stopped <- c })

	if err := wiremsg.WriteMessage(b.socket.Conn(), testMagic, rawMsg{cmd: "sendheaders"}); err != nil {
		t.Fatalf("writing unhandled command: %v", err)
	}

	b.Send(&wiremsg.MsgPing{Nonce: 7, HasNonce: true}, nil)

	select {
	case msg := <-received:
		if !msg.HasNonce || msg.Nonce != 7 {
			t.Fatalf("unexpected ping: %+v", msg)
		}
	case c := <-stopped:
		t.Fatalf("channel stopped with %v instead of dropping unhandled command", c)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message delivery after unhandled command")
	}
}

func TestNegotiatedVersion(t *testing.T) {
	a, _ := newPair(t)
	if a.NegotiatedVersion() != 0 {
		t.Fatalf("expected zero negotiated version before handshake")
	}
	a.SetNegotiatedVersion(70015)
	if a.NegotiatedVersion() != 70015 {
		t.Fatalf("expected 70015, got %d", a.NegotiatedVersion())
	}
}
