package runner

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/gpio"
	"github.com/go-ublox/cellular/gpio/gpiomock"
	"github.com/go-ublox/cellular/ingress"
	"github.com/go-ublox/cellular/profile"
	"github.com/go-ublox/cellular/state"
	"github.com/go-ublox/cellular/urc"
)

func newTestRunner(t *testing.T, driverUART pipeUART, cellCfg profile.CellularConfig) (*Runner, *state.Cell) {
	t.Helper()
	slot := atc.NewSlot()
	urcCh := urc.New(16, 4)
	ing := ingress.New(ingress.Config{Rx: driverUART, BufferSize: 512, Slot: slot, URCChannel: urcCh})
	client := atc.New(driverUART, slot, ing.Prompt(), gpio.SystemClock{}, discardLogger())
	cell := state.NewCell(state.PowerDown)

	cfg := Config{
		Client:     client,
		Cell:       cell,
		Profile:    fastProfile,
		CellConfig: cellCfg,
		URCChannel: urcCh,
		UartRx:     driverUART,
		UartTx:     driverUART,
		Clock:      gpio.SystemClock{},
		Log:        discardLogger(),
	}

	r, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ing.Run(ctx)
	go r.Run(ctx)
	return r, cell
}

// TestRunnerUnlocksSimPIN covers spec §8 scenario S2: the SIM reports
// SIM PIN, the Runner sends +CPIN="<pin>", and a re-poll confirms READY.
func TestRunnerUnlocksSimPIN(t *testing.T) {
	var mu sync.Mutex
	cpinPolls := 0

	driverUART, _ := newPipeModem(func(m *fakeModem, cmd string) bool {
		switch {
		case cmd == "+CPIN?":
			mu.Lock()
			cpinPolls++
			n := cpinPolls
			mu.Unlock()
			if n == 1 {
				m.writeLine("+CPIN: SIM PIN")
			} else {
				m.writeLine("+CPIN: READY")
			}
			m.writeLine("OK")
			return true
		case cmd == `+CPIN="4321"`:
			m.writeLine("OK")
			return true
		}
		return false
	})

	_, cell := newTestRunner(t, driverUART, profile.CellularConfig{
		APN:    profile.APNConfig{Name: "em"},
		SimPIN: "4321",
		Baud:   115200,
	})

	cell.SetDesired(state.SimReady)

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, cell.WaitForCurrent(waitCtx, state.SimReady))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, cpinPolls)
}

// TestRunnerHardResetsOnSilentModem covers spec §8 scenario S3: the modem
// never answers the AT liveness probe, so the Runner treats it as dead,
// tries the AT+CFUN=15 software reset, and when that answers ERROR falls
// back to pulsing reset_pin (runner/advance.go's hardReset).
func TestRunnerHardResetsOnSilentModem(t *testing.T) {
	driverUART, _ := newPipeModem(func(m *fakeModem, cmd string) bool {
		switch {
		case cmd == "":
			return true // bare "AT" liveness probe: stay silent forever
		case cmd == "+CFUN=15":
			m.writeLine("ERROR") // fail fast instead of waiting out the 180s timeout
			return true
		}
		return false
	})

	ctrl := gomock.NewController(t)
	resetPin := gpiomock.NewMockOutputPin(ctrl)

	runCtx, cancelRun := context.WithCancel(context.Background())
	t.Cleanup(cancelRun)

	gomock.InOrder(
		resetPin.EXPECT().SetLow().Return(nil),
		resetPin.EXPECT().SetHigh().DoAndReturn(func() error {
			cancelRun()
			return nil
		}),
	)

	_, cell := newTestRunner(t, driverUART, profile.CellularConfig{
		APN:      profile.APNConfig{Name: "em"},
		ResetPin: resetPin,
		Baud:     115200,
	})

	cell.SetDesired(state.Alive)

	select {
	case <-runCtx.Done():
	case <-time.After(30 * time.Second):
		t.Fatal("hard reset did not pulse reset_pin in time")
	}
	assert.Equal(t, state.PowerDown, cell.Current())
}

// TestRunnerCancelsLongCommandOnContextCancel covers spec §8 scenario S5:
// cancelling the context mid-flight on a long-running Abortable command
// (the PPP dial, §4.4.1's D*99***1# step) aborts the wait instead of
// blocking for the full 60s dial timeout.
func TestRunnerCancelsLongCommandOnContextCancel(t *testing.T) {
	dialStarted := make(chan struct{}, 1)
	driverUART, _ := newPipeModem(func(m *fakeModem, cmd string) bool {
		if strings.HasPrefix(cmd, "D*99") {
			select {
			case dialStarted <- struct{}{}:
			default:
			}
			return true // never answer: simulate an in-flight dial
		}
		return false
	})

	slot := atc.NewSlot()
	urcCh := urc.New(16, 4)
	ing := ingress.New(ingress.Config{Rx: driverUART, BufferSize: 512, Slot: slot, URCChannel: urcCh})
	client := atc.New(driverUART, slot, ing.Prompt(), gpio.SystemClock{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ing.Run(ctx)

	resultCh := make(chan error, 1)
	go func() {
		_, err := client.Send(ctx, atc.Command{Line: "D*99***1#", Timeout: 60 * time.Second, Abortable: true})
		resultCh <- err
	}()

	select {
	case <-dialStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("dial command never reached the fake modem")
	}
	cancel()

	select {
	case err := <-resultCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Send did not unblock after context cancellation")
	}
}

// TestRunnerPowerOffFallsBackToCfunThenGpio covers spec §8 scenario S6: a
// graceful +CPWROFF failure during retreat falls back to AT+CFUN=0, and
// when that also fails, to pulsing power_pin (runner/retreat.go's
// stepPowerOff).
func TestRunnerPowerOffFallsBackToCfunThenGpio(t *testing.T) {
	driverUART, _ := newPipeModem(func(m *fakeModem, cmd string) bool {
		switch cmd {
		case "+CPWROFF":
			m.writeLine("ERROR")
			return true
		case "+CFUN=0":
			m.writeLine("ERROR")
			return true
		}
		return false
	})

	ctrl := gomock.NewController(t)
	powerPin := gpiomock.NewMockOutputPin(ctrl)

	pulsed := make(chan struct{})
	gomock.InOrder(
		// stepPowerUp's power-on pulse during bring-up.
		powerPin.EXPECT().SetLow().Return(nil),
		powerPin.EXPECT().SetHigh().Return(nil),
		// stepPowerOff's fallback pulse during retreat.
		powerPin.EXPECT().SetLow().Return(nil),
		powerPin.EXPECT().SetHigh().DoAndReturn(func() error {
			close(pulsed)
			return nil
		}),
	)

	_, cell := newTestRunner(t, driverUART, profile.CellularConfig{
		APN:      profile.APNConfig{Name: "em"},
		PowerPin: powerPin,
		Baud:     115200,
	})

	cell.SetDesired(state.DataEstablished)
	waitCtx, wcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer wcancel()
	require.NoError(t, cell.WaitForCurrent(waitCtx, state.DataEstablished))

	cell.SetDesired(state.PowerDown)

	select {
	case <-pulsed:
	case <-time.After(20 * time.Second):
		t.Fatal("power-off fallback never pulsed power_pin")
	}
}
