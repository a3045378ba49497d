package runner

import "github.com/pkg/errors"

// Error taxonomy for advance/retreat steps. These never escape to Control
// (spec §7: "the Runner translates these into state-level outcomes and
// never surfaces them to Control"); they only drive the per-state failure
// counter and logging.
var (
	// ErrPowerGating indicates vint_pin never confirmed the expected level
	// after a power pulse.
	ErrPowerGating = errors.New("runner: vint pin did not confirm power state")
	// ErrSimPINRequired indicates the SIM reports "SIM PIN" but no PIN was
	// configured.
	ErrSimPINRequired = errors.New("runner: sim requires a pin but none is configured")
	// ErrNotRegistered indicates no RAN reports Registered/Roaming yet.
	ErrNotRegistered = errors.New("runner: not registered on any RAN")
	// ErrSignalInvalid indicates +CESQ reported an out-of-range rxlev/rsrp.
	ErrSignalInvalid = errors.New("runner: signal quality outside validity window")
)

// FailMax is the per-state advance failure budget before a hard reset,
// spec §4.4.4's default.
const FailMax = 10
