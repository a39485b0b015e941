package quarter

import "errors"

// Sentinel kinds for quarter errors.
var (
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidLabel     = errors.New("invalid quarter label")
)
