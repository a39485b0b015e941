package api

import (
	"errors"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("unexpected EOF")

	err := WrapKind("api.reload", ErrBadRequest, cause)
	if !errors.Is(err, ErrBadRequest) || !errors.Is(err, cause) {
		t.Fatalf("WrapKind lost its kind or cause: %v", err)
	}
	if got, want := err.Error(), "api.reload: bad request: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if got, want := NewKind("api.trend", ErrBadRequest).Error(), "api.trend: bad request"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if Wrap("api.trend", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}

	var apiErr *Error
	if !errors.As(Wrap("api.histogram", cause), &apiErr) || apiErr.Op != "api.histogram" {
		t.Errorf("errors.As did not recover the op")
	}
}
