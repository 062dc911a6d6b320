// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package socket implements the owning wrapper over a transport connection
// described in spec §4.0: a net.Conn plus a mutex that serializes writes so
// a send is atomic even when invoked from multiple strands.
package socket

import (
	"net"
	"sync"
)

// Socket owns a net.Conn and serializes writes to it. Reads are not
// serialized: spec §5 assigns exactly one reader per channel (the channel's
// own read loop), so only writes need the lock.
type Socket struct {
	conn net.Conn

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// New wraps conn in a Socket.
func New(conn net.Conn) *Socket {
	return &Socket{conn: conn}
}

// Conn returns the underlying connection, for reads and for obtaining
// addresses.
func (s *Socket) Conn() net.Conn {
	return s.conn
}

// Write acquires the write lock, writes p in full, and releases the lock.
func (s *Socket) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.Write(p)
}

// LocalAddr returns the local end of the connection.
func (s *Socket) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// RemoteAddr returns the remote end of the connection.
func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Close closes the underlying connection. It is safe to call more than
// once; only the first call closes the transport.
func (s *Socket) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
