//go:build linux

package gpio

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// LinuxChip drives GPIO lines through the sysfs /sys/class/gpio interface.
// cmd/ubloxctl uses it for CellularConfig's ResetPin/PowerPin on a
// Linux host with a wired modem; tests use a mock OutputPin/InputPin
// instead.
type LinuxChip struct {
	base string
}

// NewLinuxChip opens the default sysfs GPIO root.
func NewLinuxChip() *LinuxChip {
	return &LinuxChip{base: "/sys/class/gpio"}
}

func gpioDir(base string, line int) string {
	return filepath.Join(base, "gpio"+strconv.Itoa(line))
}

// export requests the kernel create /sys/class/gpio/gpio<line> if it
// doesn't already exist.
func (c *LinuxChip) export(line int) error {
	dir := gpioDir(c.base, line)
	if unix.Access(dir, unix.F_OK) == nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(c.base, "export"), os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrap(err, "gpio: sysfs export interface unavailable")
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(line)); err != nil {
		return errors.Wrapf(err, "gpio: export line %d", line)
	}
	return nil
}

func writeAttr(path, val string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(val)
	return err
}

// LinuxOutputPin is a sysfs-backed gpio.OutputPin.
type LinuxOutputPin struct {
	valuePath string
}

func (p *LinuxOutputPin) SetLow() error  { return writeAttr(p.valuePath, "0") }
func (p *LinuxOutputPin) SetHigh() error { return writeAttr(p.valuePath, "1") }

// OutputLine exports line and configures it as an output, initially driven
// low unless initialHigh is set.
func (c *LinuxChip) OutputLine(line int, initialHigh bool) (*LinuxOutputPin, error) {
	if err := c.export(line); err != nil {
		return nil, err
	}
	dir := "low"
	if initialHigh {
		dir = "high"
	}
	if err := writeAttr(filepath.Join(gpioDir(c.base, line), "direction"), dir); err != nil {
		return nil, errors.Wrapf(err, "gpio: set direction for line %d", line)
	}
	return &LinuxOutputPin{valuePath: filepath.Join(gpioDir(c.base, line), "value")}, nil
}

// LinuxInputPin is a sysfs-backed gpio.InputPin.
type LinuxInputPin struct {
	valuePath string
}

func (p *LinuxInputPin) IsHigh() (bool, error) {
	b, err := os.ReadFile(p.valuePath)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(b)) == "1", nil
}

// InputLine exports line and configures it as an input.
func (c *LinuxChip) InputLine(line int) (*LinuxInputPin, error) {
	if err := c.export(line); err != nil {
		return nil, err
	}
	if err := writeAttr(filepath.Join(gpioDir(c.base, line), "direction"), "in"); err != nil {
		return nil, errors.Wrapf(err, "gpio: set direction for line %d", line)
	}
	return &LinuxInputPin{valuePath: filepath.Join(gpioDir(c.base, line), "value")}, nil
}
