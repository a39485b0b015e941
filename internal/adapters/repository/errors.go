package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrUnavailable means the store could not be reached or did not answer
	// in time.
	ErrUnavailable = errors.New("data source unavailable")
	// ErrSchemaMismatch means the store answered but not in the expected shape.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrUnsupportedDriver is returned by Open for unknown driver names.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
