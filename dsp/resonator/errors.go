package resonator

import "errors"

// Errors returned by the resonator bank. Match with errors.Is; returned
// errors wrap one of these with the offending argument.
var (
	// ErrInvalidParameter reports malformed construction arguments: a
	// non-positive sample rate, coefficients outside (0, 1] or mismatched
	// list lengths.
	ErrInvalidParameter = errors.New("resonator: invalid parameter")

	// ErrInvalidState reports caller misuse at a processing call, such as
	// an output buffer whose length differs from the bin count.
	ErrInvalidState = errors.New("resonator: invalid state")
)
