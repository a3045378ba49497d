package control

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/gpio"
	"github.com/go-ublox/cellular/ingress"
	"github.com/go-ublox/cellular/state"
	"github.com/go-ublox/cellular/urc"
)

type scriptedModem struct {
	responses map[string][]string
	w         io.Writer
}

func (m *scriptedModem) serve(r io.Reader) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if !strings.HasPrefix(line, "AT") {
			continue
		}
		cmd := strings.TrimPrefix(line, "AT")
		for _, l := range m.responses[cmd] {
			m.w.Write([]byte(l + "\r\n"))
		}
		m.w.Write([]byte("OK\r\n"))
	}
}

type pipeUART struct {
	*io.PipeReader
	*io.PipeWriter
}

func newTestControl(t *testing.T, responses map[string][]string) *Control {
	driverRx, modemTx := io.Pipe()
	modemRx, driverTx := io.Pipe()
	driverUART := pipeUART{driverRx, driverTx}

	sm := &scriptedModem{responses: responses, w: modemTx}
	go sm.serve(modemRx)

	slot := atc.NewSlot()
	urcCh := urc.New(4, 2)
	ing := ingress.New(ingress.Config{Rx: driverUART, BufferSize: 256, Slot: slot, URCChannel: urcCh})
	client := atc.New(driverUART, slot, ing.Prompt(), gpio.SystemClock{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go ing.Run(ctx)

	cell := state.NewCell(state.Registered)
	return New(cell, client, urcCh)
}

func TestControlInfo(t *testing.T) {
	c := newTestControl(t, map[string][]string{
		"+CGMI": {"u-blox"},
		"+CGMM": {"SARA-R410M"},
		"+CGMR": {"L0.0.00.00.05.06"},
		"+CGSN": {"123456789012345"},
		"+CIMI": {"001010123456789"},
		"+CCID": {"+CCID: 8988303000000000001"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-blox", info.Manufacturer)
	assert.Equal(t, "SARA-R410M", info.Model)
	assert.Equal(t, "123456789012345", info.IMEI)
}

func TestControlOperator(t *testing.T) {
	c := newTestControl(t, map[string][]string{
		"+COPS?": {"+COPS: 0,0,\"Vodafone\",7"},
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := c.Operator(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Vodafone", st.Name)
}

func TestControlResolveHost(t *testing.T) {
	c := newTestControl(t, map[string][]string{
		"+UDNSRN=0,\"example.com\"": {"+UDNSRN: \"93.184.216.34\""},
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ip, err := c.ResolveHost(ctx, "example.com")
	require.NoError(t, err)
	assert.Equal(t, "93.184.216.34", ip.String())
}

func TestControlSetDesiredAndWait(t *testing.T) {
	c := newTestControl(t, nil)
	assert.Equal(t, state.Registered, c.OperationState())
	c.SetDesiredState(state.DataEstablished)
	assert.Equal(t, state.DataEstablished, c.DesiredState())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.WaitForDesiredState(ctx, state.DataEstablished))
}

func TestControlSecondaryEventsRequiresChannel(t *testing.T) {
	cell := state.NewCell(state.PowerDown)
	c := New(cell, nil, nil)
	_, err := c.SecondaryEvents()
	assert.Error(t, err)
}
