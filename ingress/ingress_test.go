package ingress

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/digest"
	"github.com/go-ublox/cellular/urc"
)

// scriptedRx feeds a fixed byte sequence to Read in arbitrary-sized chunks,
// then blocks until the test is done (mimicking an idle UART) rather than
// returning EOF, so the Ingress loop under test doesn't exit on its own.
type scriptedRx struct {
	mu     sync.Mutex
	chunks [][]byte
	idle   chan struct{}
}

func newScriptedRx(chunks ...[]byte) *scriptedRx {
	return &scriptedRx{chunks: chunks, idle: make(chan struct{})}
}

func (r *scriptedRx) Read(buf []byte) (int, error) {
	r.mu.Lock()
	if len(r.chunks) > 0 {
		c := r.chunks[0]
		r.chunks = r.chunks[1:]
		r.mu.Unlock()
		n := copy(buf, c)
		return n, nil
	}
	r.mu.Unlock()
	<-r.idle
	return 0, io.EOF
}

func TestIngressFillsResponseSlot(t *testing.T) {
	rx := newScriptedRx([]byte("+CPIN: READY\r\nOK\r\n"))
	defer close(rx.idle)
	slot := atc.NewSlot()
	require.NoError(t, slot.Begin())

	ch := urc.New(4, 2)
	g := New(Config{Rx: rx, BufferSize: 256, Slot: slot, URCChannel: ch})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	result, err := slot.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, digest.OutcomeOK, result.Outcome)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "+CPIN: READY", string(result.Lines[0]))
}

func TestIngressRoutesURCsWhileResponseComposing(t *testing.T) {
	rx := newScriptedRx([]byte("+CPIN: READY\r\n+CREG: 1\r\nOK\r\n"))
	defer close(rx.idle)
	slot := atc.NewSlot()
	require.NoError(t, slot.Begin())
	ch := urc.New(4, 2)
	sub, err := ch.Subscribe()
	require.NoError(t, err)
	defer sub.Close()

	g := New(Config{Rx: rx, BufferSize: 256, Slot: slot, URCChannel: ch})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	item, _, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, digest.URCCREG, item.Kind)

	result, err := slot.Take(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "+CPIN: READY", string(result.Lines[0]))
}

func TestIngressDropsStaleResponseWhenNotPending(t *testing.T) {
	rx := newScriptedRx([]byte("OK\r\n"))
	defer close(rx.idle)
	slot := atc.NewSlot() // left Empty: nothing is pending
	ch := urc.New(4, 2)
	g := New(Config{Rx: rx, BufferSize: 256, Slot: slot, URCChannel: ch})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, atc.SlotEmpty, slot.State())
	assert.Equal(t, uint64(1), g.metrics.ResponsesDropped.Load())
}

func TestIngressFiresPrompt(t *testing.T) {
	rx := newScriptedRx([]byte("> "))
	defer close(rx.idle)
	slot := atc.NewSlot()
	ch := urc.New(4, 2)
	g := New(Config{Rx: rx, BufferSize: 256, Slot: slot, URCChannel: ch})

	waiter := g.Prompt()
	next := waiter.Next()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	select {
	case <-next:
	case <-time.After(time.Second):
		t.Fatal("prompt not fired")
	}
}

func TestIngressHandlesSplitReads(t *testing.T) {
	rx := newScriptedRx([]byte("+CP"), []byte("IN: READY\r"), []byte("\nOK\r\n"))
	defer close(rx.idle)
	slot := atc.NewSlot()
	require.NoError(t, slot.Begin())
	ch := urc.New(4, 2)
	g := New(Config{Rx: rx, BufferSize: 256, Slot: slot, URCChannel: ch})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	result, err := slot.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, digest.OutcomeOK, result.Outcome)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, "+CPIN: READY", string(result.Lines[0]))
}
