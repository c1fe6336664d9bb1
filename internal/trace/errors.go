package trace

import "errors"

// Load errors. They are wrapped with the input name; test with errors.Is.
var (
	// ErrNoTimescale is returned when the header declares no $timescale.
	ErrNoTimescale = errors.New("timescale not found")

	// ErrResetNotFound is returned when the reset path matches no variable.
	ErrResetNotFound = errors.New("reset signal not found")
)
