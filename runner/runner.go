// Package runner implements the Runner (C4): the long-running state machine
// that owns the modem's power, registration, and data lifecycle. It
// reconciles the StateCell's desired and current OperationState through the
// ordered advance()/retreat() step tables of spec §4.4, reacts to URCs, and
// hard-resets the modem after repeated per-state failures.
package runner

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/digest"
	"github.com/go-ublox/cellular/gpio"
	"github.com/go-ublox/cellular/metrics"
	"github.com/go-ublox/cellular/ppp"
	"github.com/go-ublox/cellular/profile"
	"github.com/go-ublox/cellular/state"
	"github.com/go-ublox/cellular/urc"
)

// Config bundles everything the Runner needs at construction. Client, Cell
// and URCChannel are required; the rest have sensible defaults.
type Config struct {
	Client     *atc.Client
	Cell       *state.Cell
	Profile    profile.ModemProfile
	CellConfig profile.CellularConfig
	URCChannel *urc.Channel

	// Secondary receives URCs for Control.SecondaryEvents to subscribe to:
	// the ones that don't affect state directly (+UUSOCL, +UUSORD, +UMWI,
	// +UUPSDA, vendor) and also +UUPSDD, after the Runner has acted on it.
	// Optional.
	Secondary *urc.Channel

	// UartRx/UartTx are handed off to PPPSink on reaching DataEstablished,
	// and used directly for the "+++" escape sequence during retreat.
	UartRx gpio.UartRx
	UartTx gpio.UartTx

	Clock   gpio.Clock
	Log     *slog.Logger
	Metrics *metrics.Metrics

	// PPPSink receives the one-shot capability token when the modem enters
	// data phase. Optional; if nil, the Runner still tracks LinkState but
	// nothing consumes the UART.
	PPPSink func(*ppp.Handoff)
	// PPPTerminate asks the PPP consumer to end the data session during
	// retreat. Optional.
	PPPTerminate func()
}

// Runner is the bring-up/teardown state machine. One instance per modem.
type Runner struct {
	client    *atc.Client
	cell      *state.Cell
	profile   profile.ModemProfile
	cfg       profile.CellularConfig
	urcSub    *urc.Subscription
	secondary *urc.Channel
	uartRx    gpio.UartRx
	uartTx    gpio.UartTx
	clock     gpio.Clock
	log       *slog.Logger
	metrics   *metrics.Metrics

	pppSink      func(*ppp.Handoff)
	pppTerminate func()

	regMu      sync.Mutex
	reg        state.Registration
	failCounts [8]int
	cpinGroup  singleflight.Group
	wake       chan struct{}
}

// New constructs a Runner and subscribes it to cfg.URCChannel. The
// subscription is released only when the process exits; Runner has no
// Close because it is meant to run for the process lifetime (spec §3).
func New(cfg Config) (*Runner, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = gpio.SystemClock{}
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New()
	}
	var sub *urc.Subscription
	if cfg.URCChannel != nil {
		s, err := cfg.URCChannel.Subscribe()
		if err != nil {
			return nil, errors.Wrap(err, "runner: subscribe urc channel")
		}
		sub = s
	}
	return &Runner{
		client:       cfg.Client,
		cell:         cfg.Cell,
		profile:      cfg.Profile,
		cfg:          cfg.CellConfig,
		urcSub:       sub,
		secondary:    cfg.Secondary,
		uartRx:       cfg.UartRx,
		uartTx:       cfg.UartTx,
		clock:        clock,
		log:          log,
		metrics:      m,
		pppSink:      cfg.PPPSink,
		pppTerminate: cfg.PPPTerminate,
		wake:         make(chan struct{}, 1),
	}, nil
}

// Run drives the Runner until ctx is done. Three cooperating goroutines
// share one cancellation scope: the URC reactor, the desired-state watcher,
// and the main advance/retreat loop — an error or ctx cancellation from any
// one stops all three, mirroring the single-executor model of spec §5 with
// Go's concurrency primitives standing in for cooperative suspension points.
func (r *Runner) Run(ctx context.Context) error {
	grp, ctx := errgroup.WithContext(ctx)
	if r.urcSub != nil {
		grp.Go(func() error { return r.urcLoop(ctx) })
	}
	grp.Go(func() error { return r.desiredWatcher(ctx) })
	grp.Go(func() error { return r.stateLoop(ctx) })
	return grp.Wait()
}

func (r *Runner) signalWake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// stateLoop is the cooperative loop of spec §4.4, expressed as a Go
// for-select: act immediately while desired and current disagree, otherwise
// block for the next wake (a desired-state change, a URC, or the 1s tick).
func (r *Runner) stateLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		current, desired, _ := r.cell.Snapshot()
		switch {
		case desired > current:
			r.advanceStep(ctx, current)
			continue
		case desired < current:
			r.retreatStep(ctx, current)
			continue
		default:
			r.idleHousekeeping(ctx)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.wake:
		case <-r.clock.After(ctx, time.Second):
		}
	}
}

func (r *Runner) desiredWatcher(ctx context.Context) error {
	for {
		last := r.cell.Desired()
		if err := r.cell.WaitForDesiredChange(ctx, last); err != nil {
			return err
		}
		r.signalWake()
	}
}

func (r *Runner) urcLoop(ctx context.Context) error {
	for {
		item, lost, err := r.urcSub.Recv(ctx)
		if err != nil {
			return err
		}
		if lost > 0 {
			r.metrics.URCsDropped.Add(uint64(lost))
			r.log.Warn("runner urc subscriber lagged", "lost", lost)
		}
		r.handleURC(item)
		r.signalWake()
	}
}

// handleURC implements spec §4.4.3's reactive URC handling.
func (r *Runner) handleURC(item urc.Item) {
	switch item.Kind {
	case digest.URCCREG, digest.URCCGREG, digest.URCCEREG:
		r.handleRegistrationURC(item)
	case digest.URCUUPSDD:
		if r.cell.Current() == state.DataEstablished {
			r.log.Warn("psd profile deactivated, retreating to Registered")
			r.cell.SetCurrent(state.Registered)
			r.metrics.StateTransitions.Add(1)
		}
		r.forwardSecondary(item)
	default:
		r.forwardSecondary(item)
	}
}

func (r *Runner) handleRegistrationURC(item urc.Item) {
	ran := ranFor(item.Kind)
	code, ok := parseRegistrationStatus(item.Payload, item.Kind.String())
	if !ok {
		return
	}
	status := state.FromCxREGCode(code)

	r.regMu.Lock()
	wasRegistered := r.reg.IsRegistered()
	r.reg.Set(ran, status)
	nowRegistered := r.reg.IsRegistered()
	r.regMu.Unlock()

	if wasRegistered && !nowRegistered && r.cell.Current() >= state.SignalOk {
		r.log.Warn("registration lost, retreating to SimReady", "ran", ran, "status", status)
		r.cell.SetCurrent(state.SimReady)
		r.metrics.StateTransitions.Add(1)
	}
}

// isRegistered reports whether any RAN is currently Registered/Roaming, per
// spec §3's registration invariant. Synchronized because it is read from
// the advance() goroutine and written from the URC reactor goroutine.
func (r *Runner) isRegistered() bool {
	r.regMu.Lock()
	defer r.regMu.Unlock()
	return r.reg.IsRegistered()
}

func (r *Runner) forwardSecondary(item urc.Item) {
	if r.secondary == nil {
		return
	}
	r.secondary.Publish(item.Kind, item.Payload)
}

func ranFor(k digest.URCKind) state.RAN {
	switch k {
	case digest.URCCGREG:
		return state.UTRAN
	case digest.URCCEREG:
		return state.EUTRAN
	default:
		return state.GERAN
	}
}

func (r *Runner) idleHousekeeping(ctx context.Context) {
	if r.cell.Current() < state.SignalOk {
		return
	}
	if _, _, err := r.queryCESQ(ctx); err != nil {
		r.log.Debug("idle signal refresh failed", "err", err)
	}
}

// queryCPIN polls +CPIN?. Overlapping calls share one +CPIN? through a
// singleflight group; stepSimReady is its only caller.
func (r *Runner) queryCPIN(ctx context.Context) (string, error) {
	v, err, _ := r.cpinGroup.Do("cpin", func() (interface{}, error) {
		resp, err := r.client.Send(ctx, atc.Command{Line: "+CPIN?", Timeout: 5 * time.Second})
		if err != nil {
			return "", err
		}
		return parseCPINStatus(resp.Lines), nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Runner) queryCESQ(ctx context.Context) (rxlev, rsrp int, err error) {
	resp, err := r.client.Send(ctx, atc.Command{Line: "+CESQ"})
	if err != nil {
		return 0, 0, err
	}
	for _, line := range resp.Lines {
		if fields, ok := parseCESQ(line); ok {
			return fields[0], fields[5], nil
		}
	}
	return 0, 0, errors.New("runner: no +CESQ line in response")
}

func parseRegistrationStatus(payload []byte, prefix string) (int, bool) {
	rest := bytes.TrimSpace(bytes.TrimPrefix(payload, []byte(prefix)))
	if idx := bytes.IndexByte(rest, ','); idx != -1 {
		rest = rest[:idx]
	}
	if len(rest) == 0 {
		return 0, false
	}
	n := 0
	for _, b := range rest {
		if b < '0' || b > '9' {
			return 0, false
		}
		n = n*10 + int(b-'0')
	}
	return n, true
}

func parseCESQ(line []byte) ([6]int, bool) {
	var out [6]int
	field, ok := trimPrefixField(line, "+CESQ:")
	if !ok {
		return out, false
	}
	parts := bytes.Split(field, []byte(","))
	if len(parts) < 6 {
		return out, false
	}
	for i := 0; i < 6; i++ {
		v, err := strconv.Atoi(string(bytes.TrimSpace(parts[i])))
		if err != nil {
			return out, false
		}
		out[i] = v
	}
	return out, true
}

func parseCPINStatus(lines [][]byte) string {
	for _, line := range lines {
		if field, ok := trimPrefixField(line, "+CPIN:"); ok {
			return string(field)
		}
	}
	return ""
}

func trimPrefixField(line []byte, prefix string) ([]byte, bool) {
	p := []byte(prefix)
	if !bytes.HasPrefix(line, p) {
		return nil, false
	}
	return bytes.TrimSpace(line[len(p):]), true
}
