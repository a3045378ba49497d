// Package serial opens the UART connection to the modem. It completes the
// Option-based constructor the teacher's serial_linux.go/serial_darwin.go/
// serial_windows.go and serial_test.go clearly reached for (a package-level
// defaultConfig per platform, WithBaud/WithPort overrides) but whose Config
// and Option types were never actually defined in the retrieved copy of the
// teacher repo — New(comPort, baudRate) there is the only thing that
// compiles. This file supplies the missing plumbing; serial.go and
// serial_bugst.go supply two constructors on top of it, one per transport
// dependency in SPEC_FULL.md's DOMAIN STACK.
package serial

// Config holds the serial port parameters applied by New and NewBugST.
// Platform build files set the zero-value defaults; Option overrides them.
type Config struct {
	port string
	baud int
}

// Option overrides a field of Config.
type Option func(*Config)

// WithPort overrides the OS device path (e.g. "/dev/ttyUSB0", "COM3").
func WithPort(port string) Option {
	return func(c *Config) { c.port = port }
}

// WithBaud overrides the baud rate.
func WithBaud(baud int) Option {
	return func(c *Config) { c.baud = baud }
}
