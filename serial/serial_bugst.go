package serial

import (
	goserial "go.bug.st/serial"
)

// NewBugST opens the alternate UART transport via go.bug.st/serial,
// selected by cmd/ubloxctl's -transport=bugst flag. Unlike tarm/serial it
// supports per-platform enumeration and finer mode control; cmd/ubloxctl
// exposes it as a fallback for hosts where tarm/serial's cgo-free port
// handling misbehaves.
func NewBugST(opts ...Option) (Port, error) {
	cfg := defaultConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	p, err := goserial.Open(cfg.port, &goserial.Mode{BaudRate: cfg.baud})
	if err != nil {
		return nil, err
	}
	return p, nil
}
