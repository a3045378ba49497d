package ingress

import (
	"github.com/pkg/errors"

	"github.com/go-ublox/cellular/gpio"
)

// ErrBufferFull indicates a single frame would require more than the
// buffer's fixed capacity B to complete. This can only happen with a
// pathologically large binary payload declaration; B should be sized to the
// largest legitimate frame the deployment expects.
var ErrBufferFull = errors.New("ingress: buffer full without a complete frame")

// Buffer is the fixed-capacity byte ring of spec §3: the digester consumes
// a strict prefix of Unread(), and Compact moves the leftover suffix back
// to the front so the next Fill can use the freed capacity at the tail.
type Buffer struct {
	arr        []byte
	start, end int
}

// NewBuffer allocates a Buffer with the given fixed capacity B.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{arr: make([]byte, capacity)}
}

// Unread returns the currently unread prefix.
func (b *Buffer) Unread() []byte {
	return b.arr[b.start:b.end]
}

// Consume advances past n unread bytes, as returned by digest.Digest.
func (b *Buffer) Consume(n int) {
	b.start += n
}

// Free returns how much tail capacity remains for the next Fill.
func (b *Buffer) Free() int {
	return len(b.arr) - b.end
}

// Len returns how many unread bytes remain.
func (b *Buffer) Len() int {
	return b.end - b.start
}

// Cap returns the buffer's fixed capacity B.
func (b *Buffer) Cap() int {
	return len(b.arr)
}

// Compact moves the unread suffix to the front of the backing array,
// reclaiming tail capacity. Spec §4.2 step 4.
func (b *Buffer) Compact() {
	if b.start == 0 {
		return
	}
	n := copy(b.arr, b.arr[b.start:b.end])
	b.start = 0
	b.end = n
}

// Fill reads up to the buffer's free tail capacity from rx, appending to the
// unread prefix. It compacts first if there is no free tail capacity.
// Returns ErrBufferFull if compaction still leaves no room — the unread
// prefix alone already fills the whole buffer.
func (b *Buffer) Fill(rx gpio.UartRx) (int, error) {
	if b.Free() == 0 {
		b.Compact()
		if b.Free() == 0 {
			return 0, ErrBufferFull
		}
	}
	n, err := rx.Read(b.arr[b.end:])
	b.end += n
	return n, err
}
