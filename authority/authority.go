// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package authority implements the canonical peer endpoint type: an
// IPv6-normalized address plus a port, with parsing and formatting for the
// textual forms peers and configuration files use.
package authority

import (
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/bitcoin-network/p2p/code"
)

// authorityPattern matches "host", "host:port", and "[v6]:port" forms. The
// bracketed group is used for literal IPv6 addresses; the unbracketed group
// covers IPv4 and bare hostnames that happen to already be dotted-quad.
var authorityPattern = regexp.MustCompile(`^(?:\[([0-9a-fA-F:.]+)\]|([0-9.]+))(?::([0-9]{1,10}))?$`)

// Authority is a canonical peer endpoint: an IPv6-mapped address and a port.
// Port zero means "unspecified". Authority is a value type; all operations
// return a new value rather than mutating the receiver.
type Authority struct {
	ip   [16]byte
	port uint16
}

// Parse parses a textual authority of the form "host", "host:port", or
// "[v6]:port". It fails with code.InvalidAuthority if the string doesn't
// match that grammar or the port exceeds 65535.
func Parse(value string) (Authority, error) {
	m := authorityPattern.FindStringSubmatch(strings.TrimSpace(value))
	if m == nil {
		return Authority{}, code.New(code.InvalidAuthority,
			"invalid authority: "+value)
	}

	host := m[1]
	if host == "" {
		host = m[2]
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return Authority{}, code.New(code.InvalidAuthority,
			"invalid authority host: "+value)
	}

	var port uint16
	if m[3] != "" {
		p, err := strconv.ParseUint(m[3], 10, 16)
		if err != nil {
			return Authority{}, code.New(code.InvalidAuthority,
				"invalid authority port: "+value)
		}
		port = uint16(p)
	}

	return FromIP(ip, port), nil
}

// FromIP builds an Authority from a net.IP and port, normalizing IPv4 to its
// IPv4-mapped-IPv6 form (::ffff:a.b.c.d) as spec.md's data model requires.
func FromIP(ip net.IP, port uint16) Authority {
	var a Authority
	copy(a.ip[:], ip.To16())
	a.port = port
	return a
}

// FromTCPAddr builds an Authority from a resolved *net.TCPAddr.
func FromTCPAddr(addr *net.TCPAddr) Authority {
	return FromIP(addr.IP, uint16(addr.Port))
}

// IP returns the 16-byte IPv6 (or IPv4-mapped-IPv6) address.
func (a Authority) IP() net.IP {
	ip := make(net.IP, 16)
	copy(ip, a.ip[:])
	return ip
}

// Port returns the port. Zero means unspecified.
func (a Authority) Port() uint16 {
	return a.port
}

// IsZero reports whether a is the zero-value Authority.
func (a Authority) IsZero() bool {
	return a == Authority{}
}

// Equal reports whether two authorities share the same (ip, port).
func (a Authority) Equal(other Authority) bool {
	return a == other
}

// Key returns a canonical string usable as a map/set key: ip and port joined
// by net.JoinHostPort. Unlike String, the port is always included, even
// when it is zero.
func (a Authority) Key() string {
	return net.JoinHostPort(a.IP().String(), strconv.FormatUint(uint64(a.port), 10))
}

// String formats the authority back to its textual form: "1.2.3.4:8333" for
// IPv4-mapped addresses, "[2001:db8::1]:8333" for native IPv6. Port 0 is
// omitted.
func (a Authority) String() string {
	ip := a.IP()
	host := ip.String()
	isV4 := ip.To4() != nil
	if !isV4 {
		host = "[" + host + "]"
	}
	if a.port == 0 {
		return host
	}
	return host + ":" + strconv.FormatUint(uint64(a.port), 10)
}
