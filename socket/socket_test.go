// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package socket

import (
	"net"
	"sync"
	"testing"
)

func TestWriteIsSerializedUnderConcurrency(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := New(server)

	const writers = 8
	const size = 37 // deliberately not a divisor of any buffer size
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte('A' + i%26)
	}

	received := make([]byte, 0, writers*size)
	done := make(chan struct{})
	go func() {
		buf := make([]byte, writers*size)
		n := 0
		for n < len(buf) {
			m, err := client.Read(buf[n:])
			if err != nil {
				break
			}
			n += m
		}
		received = buf[:n]
		close(done)
	}()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Write(payload); err != nil {
				t.Errorf("write: %v", err)
			}
		}()
	}
	wg.Wait()
	<-done

	if len(received) != writers*size {
		t.Fatalf("expected %d bytes, got %d", writers*size, len(received))
	}
	for i := 0; i < writers; i++ {
		chunk := received[i*size : (i+1)*size]
		if string(chunk) != string(payload) {
			t.Fatalf("chunk %d was interleaved with another writer's bytes: %q", i, chunk)
		}
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	s := New(server)
	if err := s.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
}

func TestLocalRemoteAddr(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	defer server.Close()

	s := New(server)
	if s.LocalAddr() == nil || s.RemoteAddr() == nil {
		t.Fatalf("expected non-nil pipe addresses")
	}
}
