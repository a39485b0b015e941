package repository

import "time"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithQueryTimeout bounds every query issued by the store.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(s *SQLStore) {
		if timeout > 0 {
			s.queryTimeout = timeout
		}
	}
}
