package profile

import "github.com/pkg/errors"

// ErrMissingAPN is returned by Validate when neither automatic APN lookup
// nor an explicit APN name is configured.
var ErrMissingAPN = errors.New("profile: apn must be automatic or name a profile")

// ErrAPNTooLong is returned by Validate per spec §7's BadInput example.
var ErrAPNTooLong = errors.New("profile: apn exceeds maximum length")

// MaxAPNLength is the longest APN name the modem firmware accepts.
const MaxAPNLength = 99

// SetDefaults fills in zero-valued fields with sensible defaults, mirroring
// the setDefaults/validate split used for modem configuration elsewhere in
// the retrieval pack.
func (c *CellularConfig) SetDefaults() {
	if c.Baud == 0 {
		c.Baud = 115200
	}
}

// Validate checks the configuration for caller errors that should be
// rejected before the Runner starts, rather than discovered as AT command
// failures mid bring-up.
func (c *CellularConfig) Validate() error {
	if !c.APN.Automatic && c.APN.Name == "" {
		return ErrMissingAPN
	}
	if len(c.APN.Name) > MaxAPNLength {
		return ErrAPNTooLong
	}
	return nil
}
