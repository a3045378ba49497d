package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/ppp"
	"github.com/go-ublox/cellular/profile"
	"github.com/go-ublox/cellular/state"
)

type stepFunc func(ctx context.Context, r *Runner) error

// advanceSteps implements the §4.4.1 table, keyed by the state a step moves
// *from*. Each function is idempotent: on transient failure it may be
// retried without corrupting prior progress.
var advanceSteps = map[state.OperationState]stepFunc{
	state.PowerDown:   stepPowerUp,
	state.PoweredUp:   stepProbeAlive,
	state.Alive:       stepInitialize,
	state.Initialized: stepSimReady,
	state.SimReady:    stepSignalOk,
	state.SignalOk:    stepRegistered,
	state.Registered:  stepDataEstablished,
}

func (r *Runner) advanceStep(ctx context.Context, current state.OperationState) {
	step, ok := advanceSteps[current]
	if !ok {
		return
	}
	err := step(ctx, r)
	if err == nil {
		next, ok := current.Next()
		if !ok {
			return
		}
		r.cell.SetCurrent(next)
		r.metrics.StateTransitions.Add(1)
		r.failCounts[current] = 0
		r.log.Info("advanced", "from", current, "to", next)
		return
	}

	if current == state.PoweredUp {
		// §4.4.1: the Alive probe already retries internally (SendRetry,
		// 10 attempts); if it still fails the modem is unresponsive and
		// hard-reset is immediate rather than waiting for FailMax more
		// outer-loop passes.
		r.log.Error("modem unresponsive to AT probe, hard-resetting", "err", err)
		r.hardReset(ctx)
		return
	}
	r.onStepFailure(ctx, current, err)
}

func (r *Runner) onStepFailure(ctx context.Context, s state.OperationState, err error) {
	r.failCounts[s]++
	r.log.Warn("advance step failed", "state", s, "attempt", r.failCounts[s], "err", err)
	if r.failCounts[s] >= FailMax {
		r.hardReset(ctx)
	}
}

// AT+CFUN functionality values used for the software reset path, per
// original_source's command/mobile_control/types.rs.
const (
	cfunSilentReset = 15
	cfunMinimum     = 0
)

func cfunCommand(fun int) atc.Command {
	return atc.Command{Line: fmt.Sprintf("+CFUN=%d", fun), Timeout: 180 * time.Second}
}

// softReset implements the original driver's soft_reset path
// (power.rs:soft_reset): AT+CFUN=15 power-cycles the module from software,
// preserving NVM, and needs no wiring. hardReset tries it first and only
// falls back to the GPIO pulse — the original's hard_reset — if it fails
// (no response, or ERROR).
func (r *Runner) softReset(ctx context.Context) error {
	_, err := r.client.Send(ctx, cfunCommand(cfunSilentReset))
	return err
}

// hardReset implements §4.4.4: never silent, clears the per-state counter,
// and resumes bring-up from PowerDown.
func (r *Runner) hardReset(ctx context.Context) {
	r.log.Error("hard reset", "state", r.cell.Current())
	r.metrics.HardResets.Add(1)
	for i := range r.failCounts {
		r.failCounts[i] = 0
	}
	if err := r.softReset(ctx); err != nil {
		r.log.Warn("cfun soft reset failed, falling back to gpio pulse", "err", err)
		if r.cfg.ResetPin != nil {
			r.cfg.ResetPin.SetLow()
			r.clock.Sleep(ctx, r.profile.ResetHoldTime)
			r.cfg.ResetPin.SetHigh()
		} else if r.cfg.PowerPin != nil {
			r.cfg.PowerPin.SetLow()
			r.clock.Sleep(ctx, r.profile.PowerOffPulseTime)
			r.cfg.PowerPin.SetHigh()
		}
	}
	r.cell.SetLink(state.LinkDown)
	r.cell.SetCurrent(state.PowerDown)
}

func stepPowerUp(ctx context.Context, r *Runner) error {
	if r.cfg.PowerPin != nil {
		if err := r.cfg.PowerPin.SetLow(); err != nil {
			return errors.Wrap(err, "power pin low")
		}
		if err := r.clock.Sleep(ctx, r.profile.PowerOnPulseTime); err != nil {
			return err
		}
		if err := r.cfg.PowerPin.SetHigh(); err != nil {
			return errors.Wrap(err, "power pin high")
		}
	}
	if err := r.clock.Sleep(ctx, r.profile.BootWait); err != nil {
		return err
	}
	if r.cfg.VIntPin != nil {
		high, err := r.cfg.VIntPin.IsHigh()
		if err != nil {
			return errors.Wrap(err, "vint read")
		}
		if !high {
			return ErrPowerGating
		}
	}
	return nil
}

func stepProbeAlive(ctx context.Context, r *Runner) error {
	_, err := r.client.SendRetry(ctx, atc.Command{Timeout: time.Second, Attempts: 10})
	return err
}

func stepInitialize(ctx context.Context, r *Runner) error {
	cmds := []atc.Command{
		{Line: "E0"},
		{Line: "+CMEE=2"},
		{Line: fmt.Sprintf("+IPR=%d", r.cfg.Baud)},
		{Line: ifcCommand(r.cfg.FlowControl)},
		{Line: "+UMWI=0"},
		{Line: hexModeCommand(r.cfg.HexMode)},
	}
	if r.cfg.RAT != profile.RATAuto {
		sel, hasPref, pref := r.cfg.RAT.Selector()
		line := fmt.Sprintf("+URAT=%d", sel)
		if hasPref {
			line += fmt.Sprintf(",%d", pref)
		}
		cmds = append(cmds, atc.Command{Line: line})
	}
	cmds = append(cmds, atc.Command{Line: "&W"})

	for _, cmd := range cmds {
		if _, err := r.client.Send(ctx, cmd); err != nil {
			return errors.Wrapf(err, "init %q", cmd.Line)
		}
	}
	return nil
}

func ifcCommand(fc profile.FlowControl) string {
	if fc == profile.FlowControlRTSCTS {
		return "+IFC=2,2"
	}
	return "+IFC=0,0"
}

func hexModeCommand(hex bool) string {
	if hex {
		return "+UDCONF=1,1"
	}
	return "+UDCONF=1,0"
}

func stepSimReady(ctx context.Context, r *Runner) error {
	status, err := r.queryCPIN(ctx)
	if err != nil {
		return errors.Wrap(err, "cpin query")
	}
	if status == "READY" {
		return nil
	}
	if status != "SIM PIN" {
		return errors.Errorf("sim not ready: %q", status)
	}
	if r.cfg.SimPIN == "" {
		return ErrSimPINRequired
	}
	if _, err := r.client.Send(ctx, atc.Command{Line: fmt.Sprintf("+CPIN=%q", r.cfg.SimPIN), Timeout: 5 * time.Second}); err != nil {
		return errors.Wrap(err, "cpin unlock")
	}
	status, err = r.queryCPIN(ctx)
	if err != nil {
		return errors.Wrap(err, "cpin repoll")
	}
	if status != "READY" {
		return errors.Errorf("sim still not ready after unlock: %q", status)
	}
	return nil
}

func stepSignalOk(ctx context.Context, r *Runner) error {
	for _, cmd := range []string{"+CREG=2", "+CGREG=2", "+CEREG=2"} {
		if _, err := r.client.Send(ctx, atc.Command{Line: cmd}); err != nil {
			return errors.Wrapf(err, "enable %s", cmd)
		}
	}
	if !r.isRegistered() {
		return ErrNotRegistered
	}
	rxlev, rsrp, err := r.queryCESQ(ctx)
	if err != nil {
		return errors.Wrap(err, "cesq query")
	}
	if rxlev < 0 || rxlev > 63 || rxlev == 99 {
		return ErrSignalInvalid
	}
	if rsrp == 255 {
		return ErrSignalInvalid
	}
	return nil
}

func stepRegistered(ctx context.Context, r *Runner) error {
	apn := r.cfg.APN.Name
	if r.cfg.APN.Automatic {
		apn = ""
	}
	cmd := atc.Command{Line: fmt.Sprintf("+CGDCONT=1,\"IP\",%q", apn), Timeout: 10 * time.Second}
	if _, err := r.client.Send(ctx, cmd); err != nil {
		return errors.Wrap(err, "cgdcont")
	}
	if r.cfg.PPPCreds != nil {
		authCmd := atc.Command{Line: fmt.Sprintf("+UAUTHREQ=1,1,%q,%q", r.cfg.PPPCreds.Username, r.cfg.PPPCreds.Password)}
		if _, err := r.client.Send(ctx, authCmd); err != nil {
			return errors.Wrap(err, "uauthreq")
		}
	}
	return nil
}

func stepDataEstablished(ctx context.Context, r *Runner) error {
	if _, err := r.client.Send(ctx, atc.Command{Line: "D*99***1#", Timeout: 60 * time.Second, Abortable: true}); err != nil {
		return errors.Wrap(err, "ppp dial")
	}
	if r.pppSink != nil && r.uartRx != nil && r.uartTx != nil {
		r.pppSink(ppp.NewHandoff(r.uartRx, r.uartTx))
	}
	r.cell.SetLink(state.LinkUp)
	return nil
}
