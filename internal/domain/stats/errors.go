package stats

import "errors"

// Sentinel kinds for statistics errors.
var (
	ErrDomain = errors.New("value outside function domain")
)
