// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package channel

import "github.com/decred/slog"

// log is the package-level logger, disabled until a caller installs one
// with UseLogger.
var log = slog.Disabled

// UseLogger sets the logger used by this package. It should be called
// before starting any channel.
func UseLogger(logger slog.Logger) {
	log = logger
}
