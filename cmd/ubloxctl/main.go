// ubloxctl brings a u-blox modem up to DataEstablished and reports its
// identity, operator and link state. It serves as a wiring example for the
// rest of this module, the way the teacher's cmd/modeminfo did for the AT
// package.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/control"
	"github.com/go-ublox/cellular/gpio"
	"github.com/go-ublox/cellular/ingress"
	"github.com/go-ublox/cellular/metrics"
	"github.com/go-ublox/cellular/ppp"
	"github.com/go-ublox/cellular/profile"
	"github.com/go-ublox/cellular/runner"
	"github.com/go-ublox/cellular/serial"
	"github.com/go-ublox/cellular/state"
	"github.com/go-ublox/cellular/trace"
	"github.com/go-ublox/cellular/urc"
)

var version = "undefined"

func main() {
	dev := flag.String("d", "/dev/ttyUSB0", "path to modem device")
	baud := flag.Int("b", 115200, "baud rate")
	apn := flag.String("apn", "", "APN name (blank selects automatic lookup)")
	pin := flag.String("pin", "", "SIM PIN, if required")
	transport := flag.String("transport", "tarm", "UART transport: tarm or bugst")
	verbose := flag.Bool("v", false, "log UART reads/writes at debug level")
	resetLine := flag.Int("reset-gpio", -1, "sysfs GPIO line for the modem reset pin (-1 disables)")
	powerLine := flag.Int("power-gpio", -1, "sysfs GPIO line for the modem power pin (-1 disables)")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var uart serial.Port
	var err error
	switch *transport {
	case "bugst":
		uart, err = serial.NewBugST(serial.WithPort(*dev), serial.WithBaud(*baud))
	default:
		uart, err = serial.New(serial.WithPort(*dev), serial.WithBaud(*baud))
	}
	if err != nil {
		log.Error("open modem device", "err", err)
		os.Exit(1)
	}
	defer uart.Close()

	var driverUart gpio.Uart = uart
	if *verbose {
		driverUart = trace.New(uart, log)
	}

	cfg := profile.CellularConfig{
		APN:  profile.APNConfig{Automatic: *apn == "", Name: *apn},
		SimPIN: *pin,
		Baud:   *baud,
	}
	if *resetLine >= 0 {
		chip := gpio.NewLinuxChip()
		p, err := chip.OutputLine(*resetLine, true)
		if err != nil {
			log.Error("export reset gpio", "err", err)
			os.Exit(1)
		}
		cfg.ResetPin = p
	}
	if *powerLine >= 0 {
		chip := gpio.NewLinuxChip()
		p, err := chip.OutputLine(*powerLine, true)
		if err != nil {
			log.Error("export power gpio", "err", err)
			os.Exit(1)
		}
		cfg.PowerPin = p
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	slot := atc.NewSlot()
	urcCh := urc.New(32, 4)
	secondary := urc.New(32, 4)
	m := metrics.New()
	ing := ingress.New(ingress.Config{
		Rx:         driverUart,
		BufferSize: 2048,
		Slot:       slot,
		URCChannel: urcCh,
		HexMode:    cfg.HexMode,
		Log:        log,
		Metrics:    m,
	})
	client := atc.New(driverUart, slot, ing.Prompt(), gpio.SystemClock{}, log)
	cell := state.NewCell(state.PowerDown)

	pppHandoff := make(chan *ppp.Handoff, 1)
	r, err := runner.New(runner.Config{
		Client:     client,
		Cell:       cell,
		Profile:    profile.SARAR4,
		CellConfig: cfg,
		URCChannel: urcCh,
		Secondary:  secondary,
		UartRx:     driverUart,
		UartTx:     driverUart,
		Clock:      gpio.SystemClock{},
		Log:        log,
		Metrics:    m,
		PPPSink:    func(h *ppp.Handoff) { pppHandoff <- h },
	})
	if err != nil {
		log.Error("construct runner", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := ing.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("ingress stopped", "err", err)
		}
	}()
	go func() {
		if err := r.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("runner stopped", "err", err)
		}
	}()

	ctl := control.New(cell, client, secondary)
	ctl.SetDesiredState(state.DataEstablished)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*time.Minute)
	defer waitCancel()
	if err := ctl.WaitForOperationState(waitCtx, state.DataEstablished); err != nil {
		log.Error("modem did not reach data state", "err", err, "current", ctl.OperationState())
		os.Exit(1)
	}

	info, err := ctl.Info(ctx)
	if err != nil {
		log.Warn("identity query failed", "err", err)
	} else {
		fmt.Printf("manufacturer: %s\nmodel:        %s\nrevision:     %s\nimei:         %s\nimsi:         %s\niccid:        %s\n",
			info.Manufacturer, info.Model, info.Revision, info.IMEI, info.IMSI, info.ICCID)
	}

	if op, err := ctl.Operator(ctx); err == nil {
		fmt.Printf("operator:     %s\n", op.Name)
	}

	select {
	case h := <-pppHandoff:
		h.Take() // a real PPP stack would dial over the returned UART halves
		fmt.Println("data session established; PPP handoff received")
	default:
	}

	<-ctx.Done()
	client.Close()
}
