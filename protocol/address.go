// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"time"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/hosts"
	"github.com/bitcoin-network/p2p/wiremsg"
)

// AddressSampleSize bounds the number of entries returned in a getaddr
// reply (spec §4.10).
const AddressSampleSize = wiremsg.MaxAddrEntries

// Address implements protocol_address (spec §4.10): it stores addresses a
// peer gossips, answers that peer's own address requests from the local
// Hosts pool, and rate-limits unsolicited bursts.
type Address struct {
	*Events

	hosts *hosts.Hosts
}

// NewAddress returns an Address protocol for ch, storing and sampling from
// h.
func NewAddress(ch *channel.Channel, h *hosts.Hosts) *Address {
	return &Address{Events: NewEvents(ch), hosts: h}
}

// Start subscribes to addr and getaddr, then sends an initial getaddr —
// spec §4.10 sends this on start for every supported protocol version.
func (a *Address) Start(handler func(code.Code)) {
	ch := a.Channel()
	ch.Subscribe(wiremsg.CmdAddr, a.handleAddr)
	ch.Subscribe(wiremsg.CmdGetAddr, a.handleGetAddr)
	ch.Send(&wiremsg.MsgGetAddr{}, nil)
	if handler != nil {
		handler(code.Success)
	}
}

func (a *Address) handleAddr(c code.Code, msg wiremsg.Message) bool {
	if c != code.Success {
		return false
	}
	addr := msg.(*wiremsg.MsgAddr)
	if addr.Oversized {
		log.Debugf("protocol_address: dropping oversized addr burst from %s", a.Channel().RemoteAuthority())
		return true
	}

	list := make([]authority.Authority, 0, len(addr.AddrList))
	for _, ta := range addr.AddrList {
		list = append(list, networkAddressToAuthority(ta.Addr))
	}
	a.hosts.StoreList(list)
	return true
}

func (a *Address) handleGetAddr(c code.Code, msg wiremsg.Message) bool {
	if c != code.Success {
		return false
	}

	sample := a.hosts.Sample(AddressSampleSize)
	now := uint32(time.Now().Unix())
	reply := &wiremsg.MsgAddr{AddrList: make([]wiremsg.TimestampedAddress, len(sample))}
	for i, auth := range sample {
		reply.AddrList[i] = wiremsg.TimestampedAddress{
			Timestamp: now,
			Addr:      toNetworkAddress(auth, 0),
		}
	}
	a.Channel().Send(reply, nil)
	return true
}
