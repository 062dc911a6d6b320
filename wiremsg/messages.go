// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wiremsg

import (
	"encoding/binary"
	"io"
)

// MsgVersion is the initial handshake message. Value carries the sender's
// protocol version; Relay is only meaningful (and only encoded) for
// Value >= RelayMinVersion.
type MsgVersion struct {
	Value         int32
	Services      uint64
	Timestamp     uint64 // unsigned seconds since epoch, per spec §9
	AddrReceiver  NetworkAddress
	AddrSender    NetworkAddress
	Nonce         uint64
	UserAgent     string
	StartHeight   int32
	Relay         bool
	hasRelayField bool // set by Decode when the wire payload carried a relay byte
}

// RelayMinVersion is the protocol version at and above which the relay byte
// is present in the version payload.
const RelayMinVersion = 70001

func (m *MsgVersion) Command() string { return CmdVersion }

func (m *MsgVersion) Encode(w io.Writer) error {
	if err := writeInt32(w, m.Value); err != nil {
		return err
	}
	if err := writeUint64(w, m.Services); err != nil {
		return err
	}
	if err := writeInt64(w, int64(m.Timestamp)); err != nil {
		return err
	}
	if err := m.AddrReceiver.encode(w); err != nil {
		return err
	}
	if err := m.AddrSender.encode(w); err != nil {
		return err
	}
	if err := writeUint64(w, m.Nonce); err != nil {
		return err
	}
	if err := writeVarString(w, m.UserAgent); err != nil {
		return err
	}
	if err := writeInt32(w, m.StartHeight); err != nil {
		return err
	}
	if m.Value >= RelayMinVersion {
		relay := byte(0)
		if m.Relay {
			relay = 1
		}
		if _, err := w.Write([]byte{relay}); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgVersion) Decode(r io.Reader) error {
	var err error
	if m.Value, err = readInt32(r); err != nil {
		return err
	}
	if m.Services, err = readUint64(r); err != nil {
		return err
	}
	var ts int64
	if ts, err = readInt64(r); err != nil {
		return err
	}
	m.Timestamp = uint64(ts)
	if err = m.AddrReceiver.decode(r); err != nil {
		return err
	}
	if err = m.AddrSender.decode(r); err != nil {
		return err
	}
	if m.Nonce, err = readUint64(r); err != nil {
		return err
	}
	if m.UserAgent, err = readVarString(r); err != nil {
		return err
	}
	if m.StartHeight, err = readInt32(r); err != nil {
		return err
	}
	if m.Value >= RelayMinVersion {
		var relay [1]byte
		if _, err := io.ReadFull(r, relay[:]); err == nil {
			m.Relay = relay[0] != 0
			m.hasRelayField = true
		}
		// A missing relay byte on an old-format 70001+ payload is tolerated:
		// some historical peers omitted it. Relay defaults to false.
	}
	return nil
}

// MsgVerAck acknowledges a version message. It carries no payload.
type MsgVerAck struct{}

func (m *MsgVerAck) Command() string          { return CmdVerAck }
func (m *MsgVerAck) Encode(w io.Writer) error { return nil }
func (m *MsgVerAck) Decode(r io.Reader) error { return nil }

// MsgPing carries an optional nonce. Pre-60001 peers send an empty ping;
// the protocol layer decides whether to populate Nonce based on the
// negotiated version, not this type.
type MsgPing struct {
	Nonce    uint64
	HasNonce bool
}

func (m *MsgPing) Command() string { return CmdPing }

func (m *MsgPing) Encode(w io.Writer) error {
	if !m.HasNonce {
		return nil
	}
	return writeUint64(w, m.Nonce)
}

func (m *MsgPing) Decode(r io.Reader) error {
	n, err := readUint64(r)
	if err == io.EOF {
		m.HasNonce = false
		return nil
	}
	if err != nil {
		return err
	}
	m.Nonce = n
	m.HasNonce = true
	return nil
}

// MsgPong echoes the nonce from a ping.
type MsgPong struct {
	Nonce uint64
}

func (m *MsgPong) Command() string          { return CmdPong }
func (m *MsgPong) Encode(w io.Writer) error { return writeUint64(w, m.Nonce) }
func (m *MsgPong) Decode(r io.Reader) error {
	n, err := readUint64(r)
	if err != nil {
		return err
	}
	m.Nonce = n
	return nil
}

// MaxAddrEntries bounds the number of entries a single addr message may
// carry, per spec §4.10's rate limit.
const MaxAddrEntries = 1000

// MsgAddr carries a list of recently-seen peer addresses.
type MsgAddr struct {
	AddrList []TimestampedAddress

	// Oversized is set by Decode when the wire payload claimed more than
	// MaxAddrEntries entries. Entries beyond the cap are not decoded; the
	// message is still parsed successfully so the channel isn't stopped
	// over what spec §4.10 treats as a rate-limit violation to drop, not a
	// wire-protocol error.
	Oversized bool
}

func (m *MsgAddr) Command() string { return CmdAddr }

func (m *MsgAddr) Encode(w io.Writer) error {
	if err := writeVarInt(w, uint64(len(m.AddrList))); err != nil {
		return err
	}
	for i := range m.AddrList {
		if err := m.AddrList[i].encode(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgAddr) Decode(r io.Reader) error {
	n, err := readVarInt(r)
	if err != nil {
		return err
	}
	count := n
	if count > MaxAddrEntries {
		m.Oversized = true
		count = MaxAddrEntries
	}
	m.AddrList = make([]TimestampedAddress, count)
	for i := range m.AddrList {
		if err := m.AddrList[i].decode(r); err != nil {
			return err
		}
	}
	return nil
}

// MsgGetAddr requests a sample of known peer addresses. It carries no
// payload.
type MsgGetAddr struct{}

func (m *MsgGetAddr) Command() string          { return CmdGetAddr }
func (m *MsgGetAddr) Encode(w io.Writer) error { return nil }
func (m *MsgGetAddr) Decode(r io.Reader) error { return nil }

// RejectCode identifies the reason category of a reject message.
type RejectCode byte

// The subset of reject codes this core emits.
const (
	RejectObsolete RejectCode = 0x11
)

// MsgReject reports why a previously received message (named by Message)
// was refused.
type MsgReject struct {
	Message string
	Code    RejectCode
	Reason  string
	Extra   []byte
}

func (m *MsgReject) Command() string { return CmdReject }

func (m *MsgReject) Encode(w io.Writer) error {
	if err := writeVarString(w, m.Message); err != nil {
		return err
	}
	if _, err := w.Write([]byte{byte(m.Code)}); err != nil {
		return err
	}
	if err := writeVarString(w, m.Reason); err != nil {
		return err
	}
	_, err := w.Write(m.Extra)
	return err
}

func (m *MsgReject) Decode(r io.Reader) error {
	var err error
	if m.Message, err = readVarString(r); err != nil {
		return err
	}
	var codeByte [1]byte
	if _, err = io.ReadFull(r, codeByte[:]); err != nil {
		return err
	}
	m.Code = RejectCode(codeByte[0])
	if m.Reason, err = readVarString(r); err != nil {
		return err
	}
	extra, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Extra = extra
	return nil
}

func writeInt32(w io.Writer, v int32) error { return writeUint32(w, uint32(v)) }
func writeInt64(w io.Writer, v int64) error { return writeUint64(w, uint64(v)) }

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}

func readInt64(r io.Reader) (int64, error) {
	v, err := readUint64(r)
	return int64(v), err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
