// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wiremsg implements the byte-level encoding of the Bitcoin wire
// messages this core's handshake and keep-alive protocols need: version,
// verack, ping, pong, addr, getaddr, and reject. It is a deliberately small,
// Bitcoin-classic-specific codec rather than a general-purpose wire
// library; see DESIGN.md for the rationale.
package wiremsg

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Command names, as they appear zero-padded in the 12-byte command field of
// the message header.
const (
	CmdVersion = "version"
	CmdVerAck  = "verack"
	CmdPing    = "ping"
	CmdPong    = "pong"
	CmdAddr    = "addr"
	CmdGetAddr = "getaddr"
	CmdReject  = "reject"
)

// HeaderSize is the size in bytes of a message frame header: 4-byte magic,
// 12-byte zero-padded command, 4-byte length, 4-byte checksum.
const HeaderSize = 24

// CommandSize is the fixed width of the command field within the header.
const CommandSize = 12

// MaxPayloadSize is the hard cap on a single message's payload, enforced
// independent of any message-specific limit. Frames claiming a larger
// payload are rejected with code.ChannelOversize before any allocation.
const MaxPayloadSize = 32 * 1024 * 1024

// Message is implemented by every wire message type this core exchanges.
type Message interface {
	Command() string
	Encode(w io.Writer) error
	Decode(r io.Reader) error
}

// Header is the decoded fixed-size frame header.
type Header struct {
	Magic    uint32
	Command  string
	Length   uint32
	Checksum [4]byte
}

// checksum returns the first four bytes of the double-SHA256 of payload, per
// spec §6.
func checksum(payload []byte) [4]byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	var out [4]byte
	copy(out[:], second[:4])
	return out
}

// ReadHeader reads and decodes a 24-byte frame header from r.
func ReadHeader(r io.Reader) (*Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}
	h := &Header{
		Magic:  binary.LittleEndian.Uint32(buf[0:4]),
		Length: binary.LittleEndian.Uint32(buf[16:20]),
	}
	copy(h.Checksum[:], buf[20:24])
	cmd := buf[4:16]
	end := bytes.IndexByte(cmd, 0)
	if end < 0 {
		end = len(cmd)
	}
	h.Command = string(cmd[:end])
	return h, nil
}

// WriteMessage encodes msg's payload, computes its checksum, and writes the
// full frame (header + payload) to w under the given magic value.
func WriteMessage(w io.Writer, magic uint32, msg Message) error {
	var payload bytes.Buffer
	if err := msg.Encode(&payload); err != nil {
		return err
	}
	if payload.Len() > MaxPayloadSize {
		return fmt.Errorf("wiremsg: payload too large: %d bytes", payload.Len())
	}

	cmd := msg.Command()
	if len(cmd) > CommandSize {
		return fmt.Errorf("wiremsg: command %q too long", cmd)
	}

	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], magic)
	copy(header[4:16], cmd)
	binary.LittleEndian.PutUint32(header[16:20], uint32(payload.Len()))
	cksum := checksum(payload.Bytes())
	copy(header[20:24], cksum[:])

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload.Bytes())
	return err
}

// ReadPayload reads and validates the payload described by hdr from r,
// checking the declared magic, size cap, and checksum.
func ReadPayload(r io.Reader, hdr *Header, expectedMagic uint32) ([]byte, error) {
	if hdr.Magic != expectedMagic {
		return nil, errBadMagic
	}
	if hdr.Length > MaxPayloadSize {
		return nil, errOversize
	}
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	if checksum(payload) != hdr.Checksum {
		return nil, errBadChecksum
	}
	return payload, nil
}

var (
	errBadMagic       = errors.New("wiremsg: wrong network magic")
	errOversize       = errors.New("wiremsg: payload exceeds maximum size")
	errBadChecksum    = errors.New("wiremsg: checksum mismatch")
	errUnknownCommand = errors.New("wiremsg: unknown command")
)

// IsBadMagic reports whether err is the "wrong network magic" sentinel.
func IsBadMagic(err error) bool { return errors.Is(err, errBadMagic) }

// IsOversize reports whether err is the "payload too large" sentinel.
func IsOversize(err error) bool { return errors.Is(err, errOversize) }

// IsBadChecksum reports whether err is the "checksum mismatch" sentinel.
func IsBadChecksum(err error) bool { return errors.Is(err, errBadChecksum) }

// IsUnknownCommand reports whether err is the "unrecognized but
// well-framed command" sentinel returned by Decode. A well-formed frame
// outside the handshake command set is well-framed at the header/checksum
// level but carries a payload this package has no Message type for.
func IsUnknownCommand(err error) bool { return errors.Is(err, errUnknownCommand) }

// Decode parses payload into a new Message of the type named by command.
// An unrecognized command is reported distinctly from a malformed payload
// (IsUnknownCommand), since a peer sending a command this package doesn't
// model (sendheaders, feefilter, inv, ...) is not itself a protocol
// violation.
func Decode(command string, payload []byte) (Message, error) {
	var msg Message
	switch command {
	case CmdVersion:
		msg = &MsgVersion{}
	case CmdVerAck:
		msg = &MsgVerAck{}
	case CmdPing:
		msg = &MsgPing{}
	case CmdPong:
		msg = &MsgPong{}
	case CmdAddr:
		msg = &MsgAddr{}
	case CmdGetAddr:
		msg = &MsgGetAddr{}
	case CmdReject:
		msg = &MsgReject{}
	default:
		return nil, fmt.Errorf("%w %q", errUnknownCommand, command)
	}
	if err := msg.Decode(bytes.NewReader(payload)); err != nil {
		return nil, err
	}
	return msg, nil
}
