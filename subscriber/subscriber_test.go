// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package subscriber

import (
	"testing"

	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/wiremsg"
)

func TestNotifyOrderAndUnsubscribe(t *testing.T) {
	s := New()
	var order []int
	s.Subscribe("ping", func(c code.Code, msg wiremsg.Message) bool {
		order = append(order, 1)
		return true
	})
	s.Subscribe("ping", func(c code.Code, msg wiremsg.Message) bool {
		order = append(order, 2)
		return false // unsubscribe after first notify
	})

	s.Notify("ping", code.Success, &wiremsg.MsgPing{})
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected order: %v", order)
	}

	order = nil
	s.Notify("ping", code.Success, &wiremsg.MsgPing{})
	if len(order) != 1 || order[0] != 1 {
		t.Fatalf("expected only surviving handler to fire, got %v", order)
	}
}

func TestStopInvokesEachHandlerOnce(t *testing.T) {
	s := New()
	calls := 0
	var gotCode code.Code
	s.Subscribe("pong", func(c code.Code, msg wiremsg.Message) bool {
		calls++
		gotCode = c
		return true
	})

	s.Stop(code.ChannelStopped)
	s.Stop(code.ChannelStopped) // second call is a no-op

	if calls != 1 {
		t.Fatalf("expected exactly one callback, got %d", calls)
	}
	if gotCode != code.ChannelStopped {
		t.Fatalf("expected ChannelStopped, got %v", gotCode)
	}
}

func TestSubscribeAfterStopFiresImmediately(t *testing.T) {
	s := New()
	s.Stop(code.ChannelStopped)

	called := false
	s.Subscribe("addr", func(c code.Code, msg wiremsg.Message) bool {
		called = true
		if c != code.ChannelStopped {
			t.Fatalf("expected ChannelStopped, got %v", c)
		}
		return true
	})
	if !called {
		t.Fatalf("expected immediate callback for subscribe-after-stop")
	}
}
