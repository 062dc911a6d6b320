// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package channel implements a single live peer connection: framed message
// I/O, the expiration and inactivity timers, the channel's
// unique nonce and negotiated version, and its message subscriber. All
// per-channel callbacks — message notifications, timer firings, and stop —
// are dispatched through a single internal goroutine so that, as spec §5
// requires, no two callbacks for the same channel ever run concurrently
// while different channels still run in parallel.
package channel

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/crypto/rand"

	"github.com/bitcoin-network/p2p/authority"
	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/socket"
	"github.com/bitcoin-network/p2p/subscriber"
	"github.com/bitcoin-network/p2p/wiremsg"
)

// Channel is a live peer connection. Construct with New, then call Start to
// begin reading frames and driving timers.
type Channel struct {
	nonce   uint64
	remote  authority.Authority
	inbound bool
	magic   uint32

	socket *socket.Socket
	sub    *subscriber.Subscriber

	negotiatedVersion uint32 // atomic

	stopped   atomic.Bool
	stopOnce  sync.Once
	stopCode  atomic.Int32
	stopMu    sync.Mutex
	onStop    []func(code.Code)
	readDone  chan struct{}
	strandJob chan func()
	strandEnd chan struct{}

	expiration *time.Timer
	inactivity *time.Timer
	timersMu   sync.Mutex
	expireDur  time.Duration
	idleDur    time.Duration
}

// Config carries the timer durations and protocol magic a Channel needs. It
// is deliberately small: everything else about wire policy lives in the
// protocols attached to the channel.
type Config struct {
	Magic             uint32
	ChannelExpiration time.Duration
	ChannelInactivity time.Duration
}

// New creates a Channel over conn. The channel is not yet reading frames or
// running timers; call Start to begin.
func New(conn net.Conn, inbound bool, remote authority.Authority, cfg Config) *Channel {
	return &Channel{
		nonce:     rand.Uint64(),
		remote:    remote,
		inbound:   inbound,
		magic:     cfg.Magic,
		socket:    socket.New(conn),
		sub:       subscriber.New(),
		readDone:  make(chan struct{}),
		strandJob: make(chan func(), 16),
		strandEnd: make(chan struct{}),
		expireDur: cfg.ChannelExpiration,
		idleDur:   cfg.ChannelInactivity,
	}
	// negotiatedVersion starts at zero (the version protocol sets the
	// negotiated value once the peer's version arrives); callers should
	// treat zero as "unknown".
}

// Nonce returns the channel's unique nonce. It is unique across all
// channels this process originates.
func (c *Channel) Nonce() uint64 { return c.nonce }

// RemoteAuthority returns the peer endpoint this channel connects to.
func (c *Channel) RemoteAuthority() authority.Authority { return c.remote }

// Inbound reports whether this channel was accepted rather than dialed.
func (c *Channel) Inbound() bool { return c.inbound }

// NegotiatedVersion reports the negotiated protocol version. Zero until
// SetNegotiatedVersion has been called.
func (c *Channel) NegotiatedVersion() uint32 {
	return atomic.LoadUint32(&c.negotiatedVersion)
}

// SetNegotiatedVersion is called once by the version protocol after a
// successful handshake.
func (c *Channel) SetNegotiatedVersion(v uint32) {
	atomic.StoreUint32(&c.negotiatedVersion, v)
}

// Stopped reports whether the channel has been stopped.
func (c *Channel) Stopped() bool { return c.stopped.Load() }

// Subscribe forwards to the channel's message subscriber.
func (c *Channel) Subscribe(command string, handler subscriber.Handler) {
	c.sub.Subscribe(command, handler)
}

// OnStop registers handler to be invoked exactly once when the channel
// stops, with the stop code. If the channel has already stopped, handler
// fires immediately (on the caller's goroutine).
func (c *Channel) OnStop(handler func(code.Code)) {
	c.stopMu.Lock()
	if c.stopped.Load() {
		stopCode := code.Code(c.stopCode.Load())
		c.stopMu.Unlock()
		handler(stopCode)
		return
	}
	c.onStop = append(c.onStop, handler)
	c.stopMu.Unlock()
}

// Start begins the channel's read loop, its serialized dispatch strand, and
// its expiration/inactivity timers.
func (c *Channel) Start() {
	go c.strandLoop()
	go c.readLoop()
	c.resetTimers()
}

// Strand enqueues fn to run on the channel's strand, the same serialized
// execution context message notifications and stop logic use. Protocols
// attached to this channel use it to dispatch their own timer firings so
// that, per spec §5, no two callbacks for one channel ever run concurrently.
func (c *Channel) Strand(fn func()) {
	c.submit(fn)
}

// submit enqueues fn to run on the channel's strand. It is the only path by
// which message notifications, timer firings, and stop logic execute, so
// they never run concurrently with each other for this channel.
func (c *Channel) submit(fn func()) {
	select {
	case c.strandJob <- fn:
	case <-c.strandEnd:
	}
}

func (c *Channel) strandLoop() {
	for {
		select {
		case fn := <-c.strandJob:
			fn()
		case <-c.strandEnd:
			// Drain any already-queued work before exiting so in-flight
			// notifications are not silently dropped.
			for {
				select {
				case fn := <-c.strandJob:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Send encodes message, writes the frame under the socket's write lock, and
// invokes handler once the bytes have been submitted to the transport.
// Fails with code.ChannelStopped if the channel has already stopped.
func (c *Channel) Send(msg wiremsg.Message, handler func(code.Code)) {
	if c.stopped.Load() {
		if handler != nil {
			handler(code.ChannelStopped)
		}
		return
	}

	var buf bytes.Buffer
	if err := wiremsg.WriteMessage(&buf, c.magic, msg); err != nil {
		c.Stop(code.OperationFailed)
		if handler != nil {
			handler(code.OperationFailed)
		}
		return
	}
	_, err := c.socket.Write(buf.Bytes())
	if err != nil {
		c.Stop(code.ChannelTransport)
		if handler != nil {
			handler(code.ChannelTransport)
		}
		return
	}
	if handler != nil {
		handler(code.Success)
	}
}

// Stop is idempotent: the first call flips the stopped flag, cancels
// timers, and closes the transport immediately so Stopped and Send observe
// it right away, even when Stop is called from outside the channel's
// strand. Subscriber and stop-handler notification is dispatched onto the
// strand so it can never run concurrently with an in-flight message
// notification for this channel (spec §5(iii)). Later calls are no-ops.
func (c *Channel) Stop(c2 code.Code) {
	first := false
	c.stopOnce.Do(func() {
		first = true
		log.Debugf("channel %d (%s) stopping: %s", c.nonce, c.remote, c2)
		c.stopped.Store(true)
		c.stopCode.Store(int32(c2))

		c.timersMu.Lock()
		if c.expiration != nil {
			c.expiration.Stop()
		}
		if c.inactivity != nil {
			c.inactivity.Stop()
		}
		c.timersMu.Unlock()

		_ = c.socket.Close()
		close(c.readDone)
	})
	if !first {
		return
	}

	c.submit(func() {
		c.sub.Stop(c2)

		c.stopMu.Lock()
		handlers := c.onStop
		c.onStop = nil
		c.stopMu.Unlock()
		for _, h := range handlers {
			h(c2)
		}

		close(c.strandEnd)
	})
}

// resetTimers (re)starts the expiration and inactivity timers. Called once
// from Start and again on every frame of traffic.
func (c *Channel) resetTimers() {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()

	if c.expireDur > 0 {
		if c.expiration == nil {
			c.expiration = time.AfterFunc(c.expireDur, func() {
				c.submit(func() { c.Stop(code.ChannelTimeout) })
			})
		} else {
			c.expiration.Reset(c.expireDur)
		}
	}
	if c.idleDur > 0 {
		if c.inactivity == nil {
			c.inactivity = time.AfterFunc(c.idleDur, func() {
				c.submit(func() { c.Stop(code.ChannelTimeout) })
			})
		} else {
			c.inactivity.Reset(c.idleDur)
		}
	}
}

// readLoop reads frames until the channel stops or a read fails, handing
// each decoded message to the strand for subscriber dispatch.
func (c *Channel) readLoop() {
	conn := c.socket.Conn()
	for {
		hdr, err := wiremsg.ReadHeader(conn)
		if err != nil {
			c.stopFromRead(readErrorCode(err))
			return
		}

		var stopCode code.Code
		switch {
		case hdr.Magic != c.magic:
			stopCode = code.ChannelBadMagic
		case hdr.Length > wiremsg.MaxPayloadSize:
			stopCode = code.ChannelOversize
		}
		if stopCode != code.Success {
			c.stopFromRead(stopCode)
			return
		}

		payload, err := wiremsg.ReadPayload(conn, hdr, c.magic)
		if err != nil {
			if wiremsg.IsBadChecksum(err) {
				c.stopFromRead(code.BadStream)
			} else {
				c.stopFromRead(readErrorCode(err))
			}
			return
		}

		msg, err := wiremsg.Decode(hdr.Command, payload)
		if err != nil && !wiremsg.IsUnknownCommand(err) {
			c.stopFromRead(code.BadStream)
			return
		}

		command := hdr.Command
		if err != nil {
			// Well-framed but unrecognized command (sendheaders, feefilter,
			// inv, ...): reset the idle timers and drop it rather than
			// tearing the channel down.
			log.Debugf("channel %d (%s): dropping unhandled command %q", c.nonce, c.remote, command)
			c.submit(func() { c.resetTimers() })
		} else {
			c.submit(func() {
				c.resetTimers()
				c.sub.Notify(command, code.Success, msg)
			})
		}

		select {
		case <-c.readDone:
			return
		default:
		}
	}
}

func (c *Channel) stopFromRead(stopCode code.Code) {
	c.submit(func() { c.Stop(stopCode) })
}

func readErrorCode(err error) code.Code {
	if err == io.EOF || err == io.ErrClosedPipe {
		return code.ChannelTransport
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return code.ChannelTimeout
	}
	return code.ChannelTransport
}
