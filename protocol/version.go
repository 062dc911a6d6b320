// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package protocol

import (
	"net"
	"sync"
	"time"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/channel"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/config"
	"github.com/bitcoin-network/p2p/pending"
	"github.com/bitcoin-network/p2p/wiremsg"
)

// VersionFloor and VersionCeiling bound the protocol_minimum/protocol_maximum
// configuration pair itself (spec §4.7's "validate configuration" step) —
// independent of anything a peer advertises.
const (
	VersionFloor   = 31402
	VersionCeiling = 70015
)

// Version70002Threshold is the local protocol_maximum at and above which
// the handshake runs as protocol_version_70002 (spec §4.8) rather than the
// base protocol_version_31402 (spec §4.7). Per spec §9's resolved open
// question, selection can only use locally-known information — our own
// advertised version — since the peer's isn't known until the handshake is
// already underway.
const Version70002Threshold = 70002

// HeightFunc returns the current best-known chain height, truncated to
// u32 for the version message's start_height field. Block validation is
// an external collaborator (spec §1); this core only ever calls the hook.
type HeightFunc func() uint32

// NowFunc returns the current wall-clock time. Nil defaults to time.Now;
// tests supply a fixed clock.
type NowFunc func() time.Time

// Version drives the version/verack handshake for one channel (spec §4.7,
// §4.8). Construct with NewVersion and call Start once.
type Version struct {
	*Events

	cfg      config.Config
	pending  *pending.Channels
	height   HeightFunc
	now      NowFunc
	use70002 bool

	mu          sync.Mutex
	versionDone bool
	verackDone  bool
	finished    bool
	handler     func(code.Code)

	handshakeTimer *time.Timer
}

// NewVersion returns a Version protocol for ch. pend is consulted for
// self-connection detection (spec §4.7); it may be nil to skip that check.
// use70002 selects the protocol_version_70002 variant (spec §4.8) versus
// the base protocol_version_31402 (spec §4.7); see Version70002Threshold.
// Both variants run the same handshake and send the same messages (the
// relay byte follows the advertised version, and a reject is sent on
// failure either way); use70002 changes only the name Name reports.
func NewVersion(ch *channel.Channel, cfg config.Config, pend *pending.Channels, height HeightFunc, use70002 bool) *Version {
	v := &Version{
		Events:   NewEvents(ch),
		cfg:      cfg,
		pending:  pend,
		height:   height,
		use70002: use70002,
	}
	v.OnStopped(func(c code.Code) {
		v.mu.Lock()
		if v.handshakeTimer != nil {
			v.handshakeTimer.Stop()
		}
		v.mu.Unlock()
		v.finish(c)
	})
	return v
}

// SetClock overrides the wall clock used for version.timestamp. A nil now
// leaves the default (time.Now) in place; tests supply a fixed clock.
func (v *Version) SetClock(now NowFunc) {
	v.now = now
}

// Name reports which handshake variant this instance runs as, for logging
// (spec §4.8's "protocol_version_70002" extends "protocol_version_31402").
func (v *Version) Name() string {
	if v.use70002 {
		return "protocol_version_70002"
	}
	return "protocol_version_31402"
}

func (v *Version) wallClockSeconds() uint64 {
	if v.now != nil {
		return uint64(v.now().Unix())
	}
	return uint64(time.Now().Unix())
}

// Start subscribes to version and verack, sends the local version, and
// starts the channel_handshake timer. handler is invoked exactly once,
// either when both version and verack have been exchanged successfully or
// when any failure ends the handshake early.
func (v *Version) Start(handler func(code.Code)) {
	v.mu.Lock()
	v.handler = handler
	v.mu.Unlock()

	ch := v.Channel()
	ch.Subscribe(wiremsg.CmdVersion, v.handleVersion)
	ch.Subscribe(wiremsg.CmdVerAck, v.handleVerAck)

	var h uint32
	if v.height != nil {
		h = v.height()
	}

	msg := &wiremsg.MsgVersion{
		Value:        int32(v.cfg.ProtocolMaximum),
		Services:     v.cfg.Services,
		Timestamp:    v.wallClockSeconds(),
		AddrReceiver: toNetworkAddress(ch.RemoteAuthority(), 0),
		AddrSender:   toNetworkAddress(v.cfg.Self, v.cfg.Services),
		Nonce:        ch.Nonce(),
		UserAgent:    v.cfg.UserAgent,
		StartHeight:  int32(h),
		Relay:        v.cfg.Relay,
	}

	if v.cfg.ChannelHandshake > 0 {
		v.mu.Lock()
		v.handshakeTimer = time.AfterFunc(v.cfg.ChannelHandshake, func() {
			ch.Strand(func() { v.finish(code.ChannelTimeout) })
		})
		v.mu.Unlock()
	}

	ch.Send(msg, func(c code.Code) {
		if c != code.Success {
			log.Debugf("%s: failed sending version to %s: %s", v.Name(), ch.RemoteAuthority(), c)
			v.finish(c)
		}
	})
}

func (v *Version) handleVersion(c code.Code, msg wiremsg.Message) bool {
	ch := v.Channel()
	if c != code.Success {
		log.Debugf("%s: failure receiving version from %s: %s", v.Name(), ch.RemoteAuthority(), c)
		v.finish(c)
		return false
	}
	peer := msg.(*wiremsg.MsgVersion)

	if v.cfg.ProtocolMinimum < VersionFloor || v.cfg.ProtocolMaximum > VersionCeiling ||
		v.cfg.ProtocolMinimum > v.cfg.ProtocolMaximum {
		log.Errorf("invalid protocol version configuration for %s", ch.RemoteAuthority())
		v.finish(code.ChannelStopped)
		return false
	}

	if v.pending != nil && v.pending.Contains(peer.Nonce) {
		log.Debugf("self-connection detected on %s (nonce %d)", ch.RemoteAuthority(), peer.Nonce)
		v.finish(code.AcceptFailed)
		return false
	}

	if (peer.Services & v.cfg.MinimumServices) != v.cfg.MinimumServices {
		log.Debugf("%s: insufficient services (%d) from %s", v.Name(), peer.Services, ch.RemoteAuthority())
		v.sendRejectAndStop("insufficient-services")
		return false
	}
	if peer.Value < int32(v.cfg.MinimumVersion) {
		log.Debugf("%s: insufficient version (%d) from %s", v.Name(), peer.Value, ch.RemoteAuthority())
		v.sendRejectAndStop("insufficient-version")
		return false
	}

	negotiated := v.cfg.ProtocolMaximum
	if uint32(peer.Value) < negotiated {
		negotiated = uint32(peer.Value)
	}
	ch.SetNegotiatedVersion(negotiated)
	log.Debugf("%s: negotiated protocol version %d with %s", v.Name(), negotiated, ch.RemoteAuthority())

	ch.Send(&wiremsg.MsgVerAck{}, func(sendCode code.Code) {
		if sendCode != code.Success {
			v.finish(sendCode)
		}
	})

	v.mu.Lock()
	v.versionDone = true
	done := v.versionDone && v.verackDone
	v.mu.Unlock()
	if done {
		v.finish(code.Success)
	}
	return false
}

func (v *Version) handleVerAck(c code.Code, msg wiremsg.Message) bool {
	if c != code.Success {
		log.Debugf("%s: failure receiving verack from %s: %s", v.Name(), v.Channel().RemoteAuthority(), c)
		v.finish(c)
		return false
	}

	v.mu.Lock()
	v.verackDone = true
	done := v.versionDone && v.verackDone
	v.mu.Unlock()
	if done {
		v.finish(code.Success)
	}
	return false
}

// sendRejectAndStop sends a reject{message="version", code=obsolete,
// reason=reason}, then finishes the handshake with code.ChannelStopped.
// Per spec §9's resolved open question, the reject is sent unconditionally
// — even to peers below 70002, which predates the reject message — on a
// best-effort basis: stop does not wait for it to reach the wire.
func (v *Version) sendRejectAndStop(reason string) {
	v.Channel().Send(&wiremsg.MsgReject{
		Message: wiremsg.CmdVersion,
		Code:    wiremsg.RejectObsolete,
		Reason:  reason,
	}, nil)
	v.finish(code.ChannelStopped)
}

func (v *Version) finish(c code.Code) {
	v.mu.Lock()
	if v.finished {
		v.mu.Unlock()
		return
	}
	v.finished = true
	handler := v.handler
	v.mu.Unlock()

	if c != code.Success {
		v.Channel().Stop(c)
	}
	if handler != nil {
		handler(c)
	}
}

func toNetworkAddress(a authority.Authority, services uint64) wiremsg.NetworkAddress {
	na := wiremsg.NetworkAddress{Services: services, Port: a.Port()}
	copy(na.IP[:], a.IP())
	return na
}

func networkAddressToAuthority(na wiremsg.NetworkAddress) authority.Authority {
	ip := make(net.IP, 16)
	copy(ip, na.IP[:])
	return authority.FromIP(ip, na.Port)
}
