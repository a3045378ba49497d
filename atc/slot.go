package atc

import (
	"context"
	"sync"

	"github.com/go-ublox/cellular/digest"
)

// SlotState is one of Empty | Pending | Filled, per spec §3's ResponseSlot.
type SlotState int

const (
	SlotEmpty SlotState = iota
	SlotPending
	SlotFilled
)

func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "Empty"
	case SlotPending:
		return "Pending"
	case SlotFilled:
		return "Filled"
	default:
		return "Unknown"
	}
}

// Result is the accumulated outcome of one AT command: the terminal
// Response's outcome/code, plus every Info line seen along the way
// (assembled by the Ingress, not the digester — see spec §9's design note
// that the digester is stateless with respect to response windows).
type Result struct {
	Outcome digest.Outcome
	ErrKind string
	Code    string
	Lines   [][]byte
}

// Slot is the single-element mailbox shared between the Ingress (which
// fills it) and the AT Client (which owns every other transition).
//
// Invariant (spec §3): only the AT Client may transition Empty->Pending;
// only the Ingress may transition Pending->Filled; only the AT Client may
// transition Filled->Empty.
type Slot struct {
	mu    sync.Mutex
	state SlotState
	ch    chan Result
}

// NewSlot creates an empty Slot.
func NewSlot() *Slot {
	return &Slot{state: SlotEmpty, ch: make(chan Result, 1)}
}

// State returns the current slot state.
func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Begin transitions Empty -> Pending. Called only by the AT Client,
// immediately before writing a command to the UART.
func (s *Slot) Begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SlotEmpty {
		return ErrSlotBusy
	}
	s.state = SlotPending
	return nil
}

// Fill transitions Pending -> Filled. Called only by the Ingress. It
// returns false without changing state if the slot is not Pending — a
// stale response from a cancelled or already-timed-out command, which the
// Ingress should drop and log rather than deliver.
func (s *Slot) Fill(r Result) bool {
	s.mu.Lock()
	if s.state != SlotPending {
		s.mu.Unlock()
		return false
	}
	s.state = SlotFilled
	s.ch <- r
	s.mu.Unlock()
	return true
}

// Take blocks until the slot is Filled or ctx is done, then transitions
// Filled -> Empty and returns the result. Called only by the AT Client.
func (s *Slot) Take(ctx context.Context) (Result, error) {
	select {
	case r := <-s.ch:
		s.mu.Lock()
		s.state = SlotEmpty
		s.mu.Unlock()
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Reset forces the slot back to Empty after a timeout or cancellation where
// Take never observed a Fill. A result filled after Take gave up is
// discarded, so it is never delivered to the next command. Called only by
// the AT Client.
func (s *Slot) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ch:
	default:
	}
	s.state = SlotEmpty
}
