// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config holds the configuration struct consumed by the core.
// Parsing it from a CLI or file is out of scope; this package only defines
// the struct and its defaulting pass over a caller-supplied Config.
package config

import (
	"time"

	"github.com/bitcoin-network/p2p/authority"
)

// Default values applied by Normalize for fields left at their zero value.
// Mirrors connmgr's defaultTargetOutbound/defaultRetryDuration pattern of
// naming each default individually.
const (
	DefaultThreads             = 4
	DefaultInboundConnections  = 8
	DefaultOutboundConnections = 8
	DefaultManualAttemptLimit  = 0 // unlimited
	DefaultConnectBatchSize    = 3
	DefaultConnectTimeout      = 10 * time.Second
	DefaultChannelHandshake    = 30 * time.Second
	DefaultChannelGermination  = 30 * time.Second
	DefaultChannelHeartbeat    = 2 * time.Minute
	DefaultChannelInactivity   = 90 * time.Second
	DefaultChannelExpiration   = 24 * time.Hour
	DefaultChannelPoll         = 5 * time.Second
	DefaultHostPoolCapacity    = 1000
	DefaultHostsFile           = "hosts.txt"
	DefaultProtocolMinimum     = 31402
	DefaultProtocolMaximum     = 70015
	DefaultUserAgent           = "/bitcoin-network-p2p:0.1/"
)

// Config is the fully-resolved configuration the core consumes, mirroring
// spec §6's recognized options. Assembling it from a CLI or config file is
// the caller's responsibility.
type Config struct {
	Threads int

	Identifier uint32 // wire magic

	InboundPort uint16

	// InboundConnections and OutboundConnections cap the respective
	// session's live channel count (spec §4.11). Zero is the Go zero
	// value and is treated as "unset", receiving the documented default;
	// to deliberately disable a session (spec §4.11's "if
	// inbound_connections > 0, opens a listener" allows exactly this),
	// set it to -1, which Normalize coerces to 0.
	InboundConnections  int
	OutboundConnections int
	ManualAttemptLimit  int // 0 means unlimited

	ConnectBatchSize int
	ConnectTimeout   time.Duration

	ChannelHandshake   time.Duration
	ChannelGermination time.Duration
	ChannelHeartbeat   time.Duration
	ChannelInactivity  time.Duration
	ChannelExpiration  time.Duration
	ChannelPoll        time.Duration

	HostPoolCapacity int
	HostsFile        string

	ProtocolMinimum uint32
	ProtocolMaximum uint32
	Services        uint64
	Relay           bool

	// MinimumVersion and MinimumServices are the floor a remote peer's own
	// advertised version must clear during the handshake (spec §4.7). They
	// default to ProtocolMinimum and zero respectively, i.e. "accept
	// whatever protocol_minimum already accepts, require no services".
	MinimumVersion  uint32
	MinimumServices uint64

	UserAgent string
	Self      authority.Authority

	Seeds     []authority.Authority
	Peers     []authority.Authority
	Blacklist []string // authority or CIDR-prefix strings, per banlist.Parse
}

// Normalize returns a copy of cfg with every zero-valued field that has a
// documented default replaced by that default. Fields with no sensible
// default (Identifier, Self, Seeds, Peers, Blacklist) are left untouched.
func (cfg Config) Normalize() Config {
	if cfg.Threads <= 0 {
		cfg.Threads = DefaultThreads
	}
	switch {
	case cfg.InboundConnections < 0:
		cfg.InboundConnections = 0 // explicit disable
	case cfg.InboundConnections == 0:
		cfg.InboundConnections = DefaultInboundConnections
	}
	switch {
	case cfg.OutboundConnections < 0:
		cfg.OutboundConnections = 0 // explicit disable
	case cfg.OutboundConnections == 0:
		cfg.OutboundConnections = DefaultOutboundConnections
	}
	if cfg.ManualAttemptLimit < 0 {
		cfg.ManualAttemptLimit = DefaultManualAttemptLimit
	}
	if cfg.ConnectBatchSize <= 0 {
		cfg.ConnectBatchSize = DefaultConnectBatchSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.ChannelHandshake <= 0 {
		cfg.ChannelHandshake = DefaultChannelHandshake
	}
	if cfg.ChannelGermination <= 0 {
		cfg.ChannelGermination = DefaultChannelGermination
	}
	if cfg.ChannelHeartbeat <= 0 {
		cfg.ChannelHeartbeat = DefaultChannelHeartbeat
	}
	if cfg.ChannelInactivity <= 0 {
		cfg.ChannelInactivity = DefaultChannelInactivity
	}
	if cfg.ChannelExpiration <= 0 {
		cfg.ChannelExpiration = DefaultChannelExpiration
	}
	if cfg.ChannelPoll <= 0 {
		cfg.ChannelPoll = DefaultChannelPoll
	}
	if cfg.HostPoolCapacity <= 0 {
		cfg.HostPoolCapacity = DefaultHostPoolCapacity
	}
	if cfg.HostsFile == "" {
		cfg.HostsFile = DefaultHostsFile
	}
	if cfg.ProtocolMinimum == 0 {
		cfg.ProtocolMinimum = DefaultProtocolMinimum
	}
	if cfg.ProtocolMaximum == 0 {
		cfg.ProtocolMaximum = DefaultProtocolMaximum
	}
	if cfg.MinimumVersion == 0 {
		cfg.MinimumVersion = cfg.ProtocolMinimum
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return cfg
}

// Validate reports a fatal configuration error (spec §6 "Exit conditions"),
// or nil if cfg is internally consistent.
func (cfg Config) Validate() error {
	if cfg.ProtocolMinimum > cfg.ProtocolMaximum {
		return errInvalidProtocolBounds
	}
	return nil
}
