// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

package serial_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-ublox/cellular/serial"
)

func modemExists(name string) func(t *testing.T) {
	return func(t *testing.T) {
		if _, err := os.Stat(name); os.IsNotExist(err) {
			t.Skip("no modem available")
		}
	}
}

func TestNewBadPort(t *testing.T) {
	_, err := serial.New(serial.WithPort("nosuchmodem"))
	assert.Error(t, err)
}

func TestNewBugSTBadPort(t *testing.T) {
	_, err := serial.NewBugST(serial.WithPort("nosuchmodem"))
	assert.Error(t, err)
}

func TestNewDefault(t *testing.T) {
	modemExists("/dev/ttyUSB0")(t)
	p, err := serial.New()
	require.NoError(t, err)
	require.NotNil(t, p)
	p.Close()
}

func TestNewWithBaudAndPort(t *testing.T) {
	modemExists("/dev/ttyUSB0")(t)
	p, err := serial.New(serial.WithPort("/dev/ttyUSB0"), serial.WithBaud(9600))
	require.NoError(t, err)
	require.NotNil(t, p)
	p.Close()
}
