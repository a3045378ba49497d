// Package ingress implements the Ingress (C2): it owns the RX side of the
// UART, runs the digester over a fixed-capacity ring buffer, and routes
// each framed unit to either the AT Client's response slot or the URC
// broadcast channel.
package ingress

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/digest"
	"github.com/go-ublox/cellular/gpio"
	"github.com/go-ublox/cellular/metrics"
	"github.com/go-ublox/cellular/urc"
)

// Ingress pumps the UART RX stream through the digester and dispatches the
// results. One Ingress exists per modem for the process lifetime.
type Ingress struct {
	rx      gpio.UartRx
	buf     *Buffer
	slot    *atc.Slot
	urcCh   *urc.Channel
	prompt  *PromptSignal
	hexMode bool
	log     *slog.Logger
	metrics *metrics.Metrics

	pending [][]byte // accumulated Info/Binary lines for the in-flight response
}

// Config bundles the construction parameters for an Ingress.
type Config struct {
	Rx         gpio.UartRx
	BufferSize int // B
	Slot       *atc.Slot
	URCChannel *urc.Channel
	HexMode    bool
	Log        *slog.Logger
	Metrics    *metrics.Metrics
}

// New creates an Ingress from cfg.
func New(cfg Config) *Ingress {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Ingress{
		rx:      cfg.Rx,
		buf:     NewBuffer(cfg.BufferSize),
		slot:    cfg.Slot,
		urcCh:   cfg.URCChannel,
		prompt:  NewPromptSignal(),
		hexMode: cfg.HexMode,
		log:     log,
		metrics: m,
	}
}

// Prompt returns the atc.PromptWaiter the AT Client should use to await
// write-data prompts from this Ingress.
func (g *Ingress) Prompt() atc.PromptWaiter { return g.prompt }

// SetHexMode updates whether socket payload bytes are doubled per the hex
// framing rule. It is safe to call only before Run starts or from within
// the Runner's goroutine while Run is not actively mid-digest, matching the
// spec's "frozen for the Runner's lifetime" CellularConfig contract — in
// practice this is set once at construction and never changed.
func (g *Ingress) SetHexMode(on bool) { g.hexMode = on }

// Run pumps the UART until ctx is done or the UART returns a fatal error.
// It runs the read/digest/dispatch loop alongside a metrics sampler under
// one cancellation scope: an error from either stops both.
func (g *Ingress) Run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return g.pump(ctx) })
	grp.Go(func() error { return g.sample(ctx) })
	return grp.Wait()
}

func (g *Ingress) pump(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := g.buf.Fill(g.rx)
		if err != nil {
			if err == ErrBufferFull {
				g.log.Error("ingress buffer overflow, discarding unread prefix", "len", g.buf.Len())
				g.buf.Consume(g.buf.Len())
				continue
			}
			return err
		}
		g.metrics.BytesRead.Add(uint64(n))

		for {
			consumed, action := digest.Digest(g.buf.Unread(), g.hexMode)
			if consumed == 0 && action.Kind == digest.Incomplete {
				break
			}
			g.buf.Consume(consumed)
			if action.Kind != digest.Incomplete {
				g.metrics.FramesDigested.Add(1)
				g.dispatch(action)
			}
		}
		g.buf.Compact()
		g.metrics.BufferOccupancy.Store(uint32(g.buf.Len()))
	}
}

func (g *Ingress) sample(ctx context.Context) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			g.metrics.BufferOccupancy.Store(uint32(g.buf.Len()))
		}
	}
}

func (g *Ingress) dispatch(a digest.Action) {
	switch a.Kind {
	case digest.Prompt:
		g.prompt.Fire()
	case digest.Info:
		g.pending = append(g.pending, a.Body)
	case digest.Binary:
		g.pending = append(g.pending, a.Body)
	case digest.Urc:
		g.urcCh.Publish(a.URC, a.Body)
		g.metrics.URCsPublished.Add(1)
	case digest.Response:
		lines := g.pending
		g.pending = nil
		filled := g.slot.Fill(atc.Result{Outcome: a.Outcome, ErrKind: a.ErrKind, Code: a.Code, Lines: lines})
		if filled {
			g.metrics.ResponsesFilled.Add(1)
		} else {
			g.metrics.ResponsesDropped.Add(1)
			g.log.Warn("dropped stale response (no command pending)", "outcome", a.Outcome)
		}
	}
}
