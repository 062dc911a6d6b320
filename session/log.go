// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package session implements the connection campaign strategies of spec
// §4.11: session_seed bootstraps the Hosts pool, session_manual maintains
// explicit reconnect-forever endpoints, session_outbound maintains a fixed
// number of live outbound slots drawn from Hosts, and session_inbound
// accepts and screens incoming connections. Every session attaches the
// standard protocol set — version first, then ping and address once the
// handshake succeeds — to each channel it produces.
package session

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the logger used by this package.
func UseLogger(logger slog.Logger) {
	log = logger
}
