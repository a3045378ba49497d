// Package ppp provides the single-use token through which the Runner passes
// the UART halves to the PPP framer once it reaches DataEstablished. The
// token does not take the port away from the AT side: the Ingress and the
// AT Client keep using the same UART after Take, and the Runner's idle
// refresh still sends AT+CESQ while in DataEstablished.
package ppp

import "github.com/go-ublox/cellular/gpio"

// Handoff is a one-shot token carrying the UART halves to whatever drives
// the PPP link. The Runner mints one Handoff per DataEstablished
// transition. Holding it does not give exclusive access: the AT side keeps
// reading and writing the same UART.
type Handoff struct {
	rx   gpio.UartRx
	tx   gpio.UartTx
	used bool
}

// NewHandoff wraps rx/tx as a fresh, unconsumed capability.
func NewHandoff(rx gpio.UartRx, tx gpio.UartTx) *Handoff {
	return &Handoff{rx: rx, tx: tx}
}

// Take consumes the token and returns the UART halves for the PPP framer to
// drive directly. Calling Take a second time panics: a Handoff is a
// single-use transfer, not a reusable accessor.
func (h *Handoff) Take() (gpio.UartRx, gpio.UartTx) {
	if h.used {
		panic("ppp: handoff already taken")
	}
	h.used = true
	return h.rx, h.tx
}
