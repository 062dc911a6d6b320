// Copyright (c) 2024 The bitcoin-network-p2p developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package subscriber implements the per-channel message fan-out registry
// described in spec §4.2: for each wire command, an ordered list of typed
// callbacks, notified in arrival order and invoked exactly once with a stop
// code when the channel stops.
package subscriber

import (
	"sync"

	"github.com/bitcoin-network/p2p/code"
	"github.com/bitcoin-network/p2p/wiremsg"
)

// Handler is invoked with the result code and, on success, the decoded
// message for the command it was registered against. Returning false
// unsubscribes the handler; returning true keeps it registered.
type Handler func(c code.Code, msg wiremsg.Message) bool

// Subscriber is a per-channel registry of command handlers. The zero value
// is not usable; construct with New.
type Subscriber struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	stopped  bool
	stopCode code.Code
}

// New returns an empty Subscriber.
func New() *Subscriber {
	return &Subscriber{handlers: make(map[string][]Handler)}
}

// Subscribe appends handler to the ordered list for command. If the
// subscriber has already been stopped, handler is invoked immediately with
// the stop code instead of being registered, per spec §4.2.
func (s *Subscriber) Subscribe(command string, handler Handler) {
	s.mu.Lock()
	if s.stopped {
		stopCode := s.stopCode
		s.mu.Unlock()
		handler(stopCode, nil)
		return
	}
	s.handlers[command] = append(s.handlers[command], handler)
	s.mu.Unlock()
}

// Notify invokes, in registration order, every handler subscribed to
// command with the given code and message. Handlers that return false are
// dropped from the list.
func (s *Subscriber) Notify(command string, c code.Code, msg wiremsg.Message) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	handlers := s.handlers[command]
	s.mu.Unlock()

	kept := handlers[:0:0]
	for _, h := range handlers {
		if h(c, msg) {
			kept = append(kept, h)
		}
	}

	s.mu.Lock()
	if !s.stopped {
		if len(kept) == 0 {
			delete(s.handlers, command)
		} else {
			s.handlers[command] = kept
		}
	}
	s.mu.Unlock()
}

// Stop invokes every registered handler exactly once with c, then empties
// the registry and marks it stopped. Calling Stop more than once is a
// no-op; only the first call delivers callbacks.
func (s *Subscriber) Stop(c code.Code) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.stopCode = c
	all := s.handlers
	s.handlers = make(map[string][]Handler)
	s.mu.Unlock()

	for _, handlers := range all {
		for _, h := range handlers {
			h(c, nil)
		}
	}
}
