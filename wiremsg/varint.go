// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wiremsg

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxVarStringLength bounds the length of a single var_string payload this
// core will decode, independent of the overall message size cap.
const MaxVarStringLength = 1 << 20

// writeVarInt writes val as a Bitcoin-style compact size integer.
func writeVarInt(w io.Writer, val uint64) error {
	switch {
	case val < 0xfd:
		_, err := w.Write([]byte{byte(val)})
		return err
	case val <= 0xffff:
		var buf [3]byte
		buf[0] = 0xfd
		binary.LittleEndian.PutUint16(buf[1:], uint16(val))
		_, err := w.Write(buf[:])
		return err
	case val <= 0xffffffff:
		var buf [5]byte
		buf[0] = 0xfe
		binary.LittleEndian.PutUint32(buf[1:], uint32(val))
		_, err := w.Write(buf[:])
		return err
	default:
		var buf [9]byte
		buf[0] = 0xff
		binary.LittleEndian.PutUint64(buf[1:], val)
		_, err := w.Write(buf[:])
		return err
	}
}

// readVarInt reads a Bitcoin-style compact size integer from r.
func readVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}
	switch prefix[0] {
	case 0xfd:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(buf[:])), nil
	case 0xfe:
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(buf[:])), nil
	case 0xff:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(buf[:]), nil
	default:
		return uint64(prefix[0]), nil
	}
}

// writeVarString writes s as a var_string: a compact-size length prefix
// followed by the raw bytes.
func writeVarString(w io.Writer, s string) error {
	if err := writeVarInt(w, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// readVarString reads a var_string from r, rejecting lengths beyond
// MaxVarStringLength.
func readVarString(r io.Reader) (string, error) {
	n, err := readVarInt(r)
	if err != nil {
		return "", err
	}
	if n > MaxVarStringLength {
		return "", fmt.Errorf("wiremsg: var_string too long: %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
