// Package profile holds the static per-device timing constants
// (ModemProfile) and the caller-provided, frozen-for-the-Runner's-lifetime
// configuration (CellularConfig) described in spec §3.
package profile

import (
	"time"

	"github.com/go-ublox/cellular/gpio"
)

// ModemProfile carries the timing constants that differ across the u-blox
// SARA/LARA/TOBY variants. It is selected once, at construction, and never
// mutated — spec §9's "module-variant branching" note: variants differ only
// in timing and a few commands, modeled as a value rather than a type.
type ModemProfile struct {
	Name string

	// ResetHoldTime is how long to assert reset_pin for a hard reset.
	ResetHoldTime time.Duration
	// BootWait is how long to wait after a power-on pulse before probing
	// with AT.
	BootWait time.Duration
	// PowerOnPulseTime is how long to hold power_pin low to turn the modem
	// on.
	PowerOnPulseTime time.Duration
	// PowerOffPulseTime is how long to hold power_pin low to turn the modem
	// off when graceful +CPWROFF is unavailable.
	PowerOffPulseTime time.Duration
	// KillTime is how long to assert reset_pin for an emergency kill when
	// even the power-off pulse fails.
	KillTime time.Duration
}

// Built-in profiles for the u-blox variants named in spec §1.
// ResetHoldTime/PowerOnPulseTime/PowerOffPulseTime/KillTime are drawn
// directly from module_timing.rs's two-branch table (lara-r6 vs every other
// variant); BootWait has no equivalent there and is set per variant from
// the module's published boot time.
var (
	SARAR4 = ModemProfile{
		Name:              "SARA-R4",
		ResetHoldTime:     50 * time.Millisecond,
		BootWait:          3 * time.Second,
		PowerOnPulseTime:  50 * time.Microsecond,
		PowerOffPulseTime: time.Second,
		KillTime:          10 * time.Second,
	}
	SARAU2 = ModemProfile{
		Name:              "SARA-U2",
		ResetHoldTime:     50 * time.Millisecond,
		BootWait:          6 * time.Second,
		PowerOnPulseTime:  50 * time.Microsecond,
		PowerOffPulseTime: time.Second,
		KillTime:          10 * time.Second,
	}
	LARAR6 = ModemProfile{
		Name:              "LARA-R6",
		ResetHoldTime:     10 * time.Millisecond,
		BootWait:          5 * time.Second,
		PowerOnPulseTime:  150 * time.Millisecond,
		PowerOffPulseTime: 1500 * time.Millisecond,
		KillTime:          10 * time.Second,
	}
	TOBYL2 = ModemProfile{
		Name:              "TOBY-L2",
		ResetHoldTime:     50 * time.Millisecond,
		BootWait:          6 * time.Second,
		PowerOnPulseTime:  50 * time.Microsecond,
		PowerOffPulseTime: time.Second,
		KillTime:          10 * time.Second,
	}
)

// FlowControl selects the AT+IFC mode.
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
)

// RAT selects the AT+URAT radio access technology preference.
type RAT int

const (
	RATAuto RAT = iota
	RATGSM
	RATUMTS
	RATLTE
	RATNBIoT
)

// Selector returns the AT+URAT selector value for r, and any secondary
// preference value, matching spec §6.
func (r RAT) Selector() (sel int, hasPref bool, pref int) {
	switch r {
	case RATGSM:
		return 0, false, 0
	case RATUMTS:
		return 2, false, 0
	case RATLTE:
		return 7, false, 0
	case RATNBIoT:
		return 8, false, 0
	default:
		return 0, false, 0 // RATAuto: caller omits +URAT entirely
	}
}

// APNConfig selects either automatic APN lookup or an explicit APN.
type APNConfig struct {
	Automatic bool
	Name      string
	User      string
	Pass      string
}

// PPPCredentials are optional PAP/CHAP credentials used during the PPP
// dial.
type PPPCredentials struct {
	Username string
	Password string
}

// CellularConfig is the caller-provided configuration, frozen for the
// lifetime of the Runner.
type CellularConfig struct {
	ResetPin gpio.OutputPin
	PowerPin gpio.OutputPin
	VIntPin  gpio.InputPin

	FlowControl FlowControl
	HexMode     bool
	APN         APNConfig
	PPPCreds    *PPPCredentials
	SimPIN      string
	RAT         RAT
	Baud        int
}
