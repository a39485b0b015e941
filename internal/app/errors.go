package service

import (
	"fmt"

	"github.com/secondvote/trends/internal/adapters/repository"
)

// ErrNoLoader is returned by Reload when the service was built without a store.
var ErrNoLoader = fmt.Errorf("%w: no store configured", repository.ErrUnavailable)
