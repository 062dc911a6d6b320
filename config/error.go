// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import "github.com/bitcoin-network/p2p/code"

var errInvalidProtocolBounds = code.New(code.OperationFailed,
	"protocol_minimum must not exceed protocol_maximum")
