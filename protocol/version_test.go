// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/config"
	"github.com/bitcoin-network/p2p/pending"
	"github.com/bitcoin-network/p2p/wiremsg"
)

const testMagic = uint32(0xd9b4bef9)

func newChannelPair(t *testing.T) (*channel.Channel, *channel.Channel) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	cfg := channel.Config{Magic: testMagic}
	a := channel.New(serverConn, true, authority.Authority{}, cfg)
	b := channel.New(clientConn, false, authority.Authority{}, cfg)
	a.Start()
	b.Start()
	t.Cleanup(func() {
		a.Stop(code.ServiceStopped)
		b.Stop(code.ServiceStopped)
	})
	return a, b
}

func testConfig() config.Config {
	return config.Config{
		ProtocolMinimum:  31402,
		ProtocolMaximum:  70015,
		MinimumVersion:   31402,
		Services:         1,
		MinimumServices:  1,
		UserAgent:        "/test:0.1/",
		ChannelHandshake: 2 * time.Second,
	}.Normalize()
}

func TestVersionHandshakeSuccess(t *testing.T) {
	a, b := newChannelPair(t)

	va := NewVersion(a, testConfig(), nil, func() uint32 { return 400 }, false)
	vb := NewVersion(b, testConfig(), nil, func() uint32 { return 400 }, false)

	doneA := make(chan code.Code, 1)
	doneB := make(chan code.Code, 1)
	va.Start(func(c code.Code) { doneA <- c })
	vb.Start(func(c code.Code) { doneB <- c })

	for _, ch := range []chan code.Code{doneA, doneB} {
		select {
		case c := <-ch:
			if c != code.Success {
				t.Fatalf("expected successful handshake, got %v", c)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for handshake completion")
		}
	}

	if a.NegotiatedVersion() != 70015 || b.NegotiatedVersion() != 70015 {
		t.Fatalf("expected negotiated version 70015 on both sides, got %d/%d",
			a.NegotiatedVersion(), b.NegotiatedVersion())
	}
}

func TestVersionRejectsInsufficientServices(t *testing.T) {
	a, b := newChannelPair(t)

	cfgA := testConfig()
	cfgA.MinimumServices = 4 // b will advertise 1, which lacks the 4 (1<<2) bit
	va := NewVersion(a, cfgA, nil, func() uint32 { return 0 }, false)

	cfgB := testConfig()
	cfgB.Services = 1
	vb := NewVersion(b, cfgB, nil, func() uint32 { return 0 }, false)

	doneA := make(chan code.Code, 1)
	va.Start(func(c code.Code) { doneA <- c })
	vb.Start(func(code.Code) {})

	rejected := make(chan *wiremsg.MsgReject, 1)
	b.Subscribe(wiremsg.CmdReject, func(c code.Code, msg wiremsg.Message) bool {
		if c == code.Success {
			rejected <- msg.(*wiremsg.MsgReject)
		}
		return true
	})

	select {
	case c := <-doneA:
		if c != code.ChannelStopped {
			t.Fatalf("expected ChannelStopped, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handshake failure")
	}

	select {
	case r := <-rejected:
		if r.Reason != "insufficient-services" {
			t.Fatalf("expected insufficient-services reject, got %q", r.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reject message")
	}

	if !a.Stopped() {
		t.Fatal("expected channel to stop after rejecting peer")
	}
}

func TestVersionRejectsInsufficientVersion(t *testing.T) {
	a, b := newChannelPair(t)

	cfgA := testConfig()
	cfgA.MinimumVersion = 60000
	va := NewVersion(a, cfgA, nil, func() uint32 { return 0 }, false)

	cfgB := testConfig()
	cfgB.ProtocolMaximum = 31402
	vb := NewVersion(b, cfgB, nil, func() uint32 { return 0 }, false)

	doneA := make(chan code.Code, 1)
	va.Start(func(c code.Code) { doneA <- c })
	vb.Start(func(code.Code) {})

	select {
	case c := <-doneA:
		if c != code.ChannelStopped {
			t.Fatalf("expected ChannelStopped, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for handshake failure")
	}
}

func TestVersionDetectsSelfConnection(t *testing.T) {
	a, b := newChannelPair(t)

	pend := pending.NewChannels()
	pend.Add(b.Nonce()) // simulate b's nonce already known as one of our own

	va := NewVersion(a, testConfig(), pend, func() uint32 { return 0 }, false)
	vb := NewVersion(b, testConfig(), nil, func() uint32 { return 0 }, false)

	doneA := make(chan code.Code, 1)
	va.Start(func(c code.Code) { doneA <- c })
	vb.Start(func(code.Code) {})

	select {
	case c := <-doneA:
		if c != code.AcceptFailed {
			t.Fatalf("expected AcceptFailed, got %v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for self-connection detection")
	}
}

func TestVersionNameReflectsVariant(t *testing.T) {
	a, _ := newChannelPair(t)
	v31402 := NewVersion(a, testConfig(), nil, nil, false)
	v70002 := NewVersion(a, testConfig(), nil, nil, true)

	if v31402.Name() != "protocol_version_31402" {
		t.Fatalf("unexpected name: %s", v31402.Name())
	}
	if v70002.Name() != "protocol_version_70002" {
		t.Fatalf("unexpected name: %s", v70002.Name())
	}
}
