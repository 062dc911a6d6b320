// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package p2p implements the top-level orchestrator of spec §4.12: it holds
// the configuration, the Hosts pool, the live Connections set, and the
// running sessions, and drives the whole core's start/stop/connect/
// broadcast surface.
package p2p

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the logger used by this package.
func UseLogger(logger slog.Logger) {
	log = logger
}
