package session

import "errors"

var (
	// ErrNotLoaded is returned by a selection before the session's first
	// successful reload, or while a reload is in flight.
	ErrNotLoaded = errors.New("session: dataset not loaded")
	// ErrUnknownSession is returned for ids the registry does not hold.
	ErrUnknownSession = errors.New("session: unknown session")
)
