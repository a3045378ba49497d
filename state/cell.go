package state

import (
	"context"
	"sync"
)

// Cell is the shared observable (current, desired, link) of §3's StateCell.
// The Runner writes current and link; Control handles write desired. Reads
// and waits may come from any number of Control handles concurrently.
//
// Waiting is implemented with a *sync.Cond rather than a channel-per-waiter,
// following the teacher's pattern of a single broadcast point
// (at.AT.nLoop closes channels to broadcast shutdown); Cond.Broadcast plays
// the same role for a condition that, unlike a close, must be signaled
// repeatedly over the cell's lifetime.
type Cell struct {
	mu      sync.Mutex
	cond    *sync.Cond
	current OperationState
	desired OperationState
	link    LinkState
}

// NewCell creates a Cell with the given initial current/desired state. Link
// starts Down.
func NewCell(initial OperationState) *Cell {
	c := &Cell{current: initial, desired: initial}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Current returns the actual operation state.
func (c *Cell) Current() OperationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Desired returns the desired operation state.
func (c *Cell) Desired() OperationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desired
}

// Link returns the current link state.
func (c *Cell) Link() LinkState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

// Snapshot returns all three fields atomically.
func (c *Cell) Snapshot() (current, desired OperationState, link LinkState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.desired, c.link
}

// SetDesired writes the desired field and wakes any waiters. Called by
// Control on behalf of a caller's intent.
func (c *Cell) SetDesired(s OperationState) {
	c.mu.Lock()
	c.desired = s
	c.mu.Unlock()
	c.cond.Broadcast()
}

// SetCurrent writes the actual field and wakes any waiters. Called only by
// the Runner.
func (c *Cell) SetCurrent(s OperationState) {
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	c.cond.Broadcast()
}

// SetLink writes the link field and wakes any waiters. Called only by the
// Runner.
func (c *Cell) SetLink(l LinkState) {
	c.mu.Lock()
	c.link = l
	c.mu.Unlock()
	c.cond.Broadcast()
}

// WaitForCurrent blocks until Current() == s or ctx is done.
func (c *Cell) WaitForCurrent(ctx context.Context, s OperationState) error {
	return c.wait(ctx, func() bool { return c.current == s })
}

// WaitForDesired blocks until Desired() == s or ctx is done.
func (c *Cell) WaitForDesired(ctx context.Context, s OperationState) error {
	return c.wait(ctx, func() bool { return c.desired == s })
}

// WaitForLink blocks until Link() == l or ctx is done.
func (c *Cell) WaitForLink(ctx context.Context, l LinkState) error {
	return c.wait(ctx, func() bool { return c.link == l })
}

// WaitForDesiredChange blocks until Desired() no longer equals last, or ctx
// is done. The Runner uses this to wake its main loop without polling.
func (c *Cell) WaitForDesiredChange(ctx context.Context, last OperationState) error {
	return c.wait(ctx, func() bool { return c.desired != last })
}

// wait blocks on cond until pred() is true or ctx is canceled. Cancellation
// is delivered by a watcher goroutine that wakes the Cond when ctx is done,
// since sync.Cond has no native context support.
func (c *Cell) wait(ctx context.Context, pred func() bool) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			c.cond.Broadcast()
		case <-stop:
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	for !pred() {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cond.Wait()
	}
	return nil
}
