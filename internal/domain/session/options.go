package session

import "time"

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithMaxSessions bounds the number of live sessions. Zero or negative means unbounded.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		r.maxSessions = n
	}
}

// WithIdleTTL sets how long a session may go untouched before Sweep evicts it.
func WithIdleTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithClock overrides the registry's time source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}
