package serial

import (
	"io"

	"github.com/tarm/serial"

	"github.com/go-ublox/cellular/gpio"
)

// Port is a gpio.Uart that can also be closed, satisfied by both this
// package's transports.
type Port interface {
	gpio.Uart
	io.Closer
}

// New opens the default UART transport via github.com/tarm/serial, the
// driver the teacher's at/gsm packages were built against. defaultConfig
// supplies the platform's port/baud; opts override it.
func New(opts ...Option) (Port, error) {
	cfg := defaultConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := serial.OpenPort(&serial.Config{Name: cfg.port, Baud: cfg.baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}
