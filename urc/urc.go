// Package urc implements the bounded, multi-subscriber broadcast channel
// that the Ingress uses to fan out unsolicited result codes to the Runner
// and any number of secondary observers.
//
// Each subscriber owns an independent cursor (its own buffered channel) so
// that one slow reader cannot stall another. A subscriber that falls behind
// the channel's capacity K sees its oldest unread item dropped and is
// flagged Lagged(n) the next time it reads.
package urc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/go-ublox/cellular/digest"
)

// ErrTooManySubscribers is returned by Subscribe once the channel's
// subscriber slot limit S is reached.
var ErrTooManySubscribers = errors.New("urc: too many subscribers")

// Item is one URC delivered to subscribers.
type Item struct {
	Kind    digest.URCKind
	Payload []byte
	Seq     uint64
}

// Channel is the bounded multi-producer, multi-consumer broadcast described
// in spec §3. Capacity is K items per subscriber; at most S subscribers may
// be registered at once.
type Channel struct {
	capacity    int
	maxSubs     int
	mu          sync.Mutex
	subs        map[uint64]*subscription
	nextSubID   uint64
	nextSeq     uint64
}

// New creates a Channel with the given per-subscriber capacity K and
// subscriber slot limit S.
func New(capacity, maxSubscribers int) *Channel {
	return &Channel{
		capacity: capacity,
		maxSubs:  maxSubscribers,
		subs:     make(map[uint64]*subscription),
	}
}

type subscription struct {
	ch   chan Item
	lost atomic.Int64
}

// Subscription is a live registration on a Channel. Callers must Close it
// when done to free the subscriber slot.
type Subscription struct {
	id int64
	c  *Channel
	s  *subscription
}

// Subscribe registers a new subscriber and returns its handle, or
// ErrTooManySubscribers if the channel is already at its subscriber limit.
func (c *Channel) Subscribe() (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) >= c.maxSubs {
		return nil, ErrTooManySubscribers
	}
	id := c.nextSubID
	c.nextSubID++
	s := &subscription{ch: make(chan Item, c.capacity)}
	c.subs[id] = s
	return &Subscription{id: int64(id), c: c, s: s}, nil
}

// Close unregisters the subscription. Any further Recv calls on it block
// forever (callers should stop using it after Close); use a context to
// bound Recv calls made concurrently with Close.
func (sub *Subscription) Close() {
	sub.c.mu.Lock()
	defer sub.c.mu.Unlock()
	delete(sub.c.subs, uint64(sub.id))
}

// Recv blocks until an item is available or ctx is done. Close removes the
// subscription from the channel but does not wake a Recv that is already
// blocked; only ctx does. lost reports how many items were evicted out from
// under this subscriber before the returned item, per the Lagged(n) contract.
func (sub *Subscription) Recv(ctx context.Context) (item Item, lost int, err error) {
	select {
	case it, ok := <-sub.s.ch:
		if !ok {
			return Item{}, 0, errors.New("urc: subscription closed")
		}
		return it, int(sub.s.lost.Swap(0)), nil
	case <-ctx.Done():
		return Item{}, 0, ctx.Err()
	}
}

// Publish delivers item to every live subscriber. If a subscriber's buffer
// is full, the oldest unread item for that subscriber is dropped to make
// room, and that subscriber's lag counter is incremented — the eviction
// policy is per-subscriber, since each subscriber has an independent
// cursor over the same logical stream.
func (c *Channel) Publish(kind digest.URCKind, payload []byte) {
	c.mu.Lock()
	seq := c.nextSeq
	c.nextSeq++
	subs := make([]*subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	it := Item{Kind: kind, Payload: payload, Seq: seq}
	for _, s := range subs {
		select {
		case s.ch <- it:
		default:
			select {
			case <-s.ch:
				s.lost.Add(1)
			default:
			}
			select {
			case s.ch <- it:
			default:
				// Subscriber's buffer was refilled concurrently; drop this
				// delivery for them rather than block the publisher.
				s.lost.Add(1)
			}
		}
	}
}
