package aggregate

import "errors"

// Sentinel kinds for aggregation errors.
var (
	// ErrEmptySelection reports an unset selection or one that matches no
	// records. It is a control condition, not a failure.
	ErrEmptySelection = errors.New("empty selection")
)
