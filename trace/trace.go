// Package trace provides a decorator over the UART that logs every read and
// write, generalizing the teacher's io.ReadWriter trace decorator from a
// *log.Logger with printf formats to a structured slog.Logger, per
// SPEC_FULL.md's ambient logging stack.
package trace

import (
	"log/slog"

	"github.com/go-ublox/cellular/gpio"
)

// Trace wraps a gpio.Uart, logging every Read/Write at Debug level.
type Trace struct {
	uart gpio.Uart
	l    *slog.Logger
	rkey string
	wkey string
}

// Option modifies a Trace created by New.
type Option func(*Trace)

// New creates a Trace over uart. l defaults to slog.Default() if nil.
func New(uart gpio.Uart, l *slog.Logger, opts ...Option) *Trace {
	if l == nil {
		l = slog.Default()
	}
	t := &Trace{uart: uart, l: l, rkey: "rx", wkey: "tx"}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ReadKey sets the slog attribute key used for logged reads.
func ReadKey(key string) Option {
	return func(t *Trace) { t.rkey = key }
}

// WriteKey sets the slog attribute key used for logged writes.
func WriteKey(key string) Option {
	return func(t *Trace) { t.wkey = key }
}

func (t *Trace) Read(p []byte) (n int, err error) {
	n, err = t.uart.Read(p)
	if n > 0 {
		t.l.Debug("uart", t.rkey, string(p[:n]))
	}
	return n, err
}

func (t *Trace) Write(p []byte) (n int, err error) {
	n, err = t.uart.Write(p)
	if n > 0 {
		t.l.Debug("uart", t.wkey, string(p[:n]))
	}
	return n, err
}
