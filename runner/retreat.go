package runner

import (
	"context"
	"time"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/state"
)

// retreatSteps implements the §4.4.2 teardown sequence, keyed by the state
// a step moves *from*. Unlike advance, retreat steps are best-effort: a
// step's error is logged but never blocks the rung-by-rung descent, since
// the mandatory-before-power-off contract of §4.4.2 requires retreat to be
// able to finish even when an individual command fails.
var retreatSteps = map[state.OperationState]stepFunc{
	state.DataEstablished: stepLinkDown,
	state.Registered:      stepDeactivatePDP,
	state.SignalOk:        stepDetach,
	state.PoweredUp:       stepPowerOff,
}

func (r *Runner) retreatStep(ctx context.Context, current state.OperationState) {
	prev, ok := current.Prev()
	if !ok {
		return
	}
	if step, has := retreatSteps[current]; has {
		if err := step(ctx, r); err != nil {
			r.log.Warn("retreat step error, continuing teardown", "state", current, "err", err)
		}
	}
	r.cell.SetCurrent(prev)
	r.metrics.StateTransitions.Add(1)
	r.log.Info("retreated", "from", current, "to", prev)
}

// stepLinkDown implements §4.4.2 step 1: signal PPP to terminate, wait up
// to 10s for Down, then escape data mode with "+++" (1s guard time) and
// ATH.
func stepLinkDown(ctx context.Context, r *Runner) error {
	if r.cell.Link() != state.LinkUp {
		return nil
	}
	if r.pppTerminate != nil {
		r.pppTerminate()
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = r.cell.WaitForLink(waitCtx, state.LinkDown)

	r.clock.Sleep(ctx, time.Second)
	if r.uartTx != nil {
		r.uartTx.Write([]byte("+++"))
	}
	r.clock.Sleep(ctx, time.Second)
	_, err := r.client.Send(ctx, atc.Command{Line: "H"})
	r.cell.SetLink(state.LinkDown)
	return err
}

// stepDeactivatePDP implements §4.4.2 step 2: +CGACT=0,1, errors ignored.
func stepDeactivatePDP(ctx context.Context, r *Runner) error {
	_, err := r.client.Send(ctx, atc.Command{Line: "+CGACT=0,1", Timeout: 10 * time.Second})
	return err
}

// stepDetach implements §4.4.2 step 3: +CGATT=0, errors ignored.
func stepDetach(ctx context.Context, r *Runner) error {
	_, err := r.client.Send(ctx, atc.Command{Line: "+CGATT=0", Timeout: 10 * time.Second})
	return err
}

// stepPowerOff implements §4.4.2 steps 4-5: prefer graceful +CPWROFF, then
// AT+CFUN=0 (minimum functionality, RF off) as a software fallback, then
// pulse power_pin, or reset_pin when no power_pin is configured; if vint_pin
// still reads high afterwards, that is only logged.
func stepPowerOff(ctx context.Context, r *Runner) error {
	_, err := r.client.Send(ctx, atc.Command{Line: "+CPWROFF", Timeout: 40 * time.Second})
	if err != nil {
		r.log.Warn("graceful power-off failed, trying cfun minimum functionality", "err", err)
		if _, cfunErr := r.client.Send(ctx, cfunCommand(cfunMinimum)); cfunErr != nil {
			r.log.Warn("cfun minimum functionality failed", "err", cfunErr)
			if r.cfg.PowerPin != nil {
				r.cfg.PowerPin.SetLow()
				r.clock.Sleep(ctx, r.profile.PowerOffPulseTime)
				r.cfg.PowerPin.SetHigh()
			} else if r.cfg.ResetPin != nil {
				r.cfg.ResetPin.SetLow()
				r.clock.Sleep(ctx, r.profile.KillTime)
				r.cfg.ResetPin.SetHigh()
			}
		}
	}
	if r.cfg.VIntPin != nil {
		if high, verr := r.cfg.VIntPin.IsHigh(); verr == nil && high {
			r.log.Warn("vint pin still high after power-off")
		}
	}
	return nil
}
