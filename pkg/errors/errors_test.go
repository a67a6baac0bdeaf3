package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrStoreUnavailable, http.StatusServiceUnavailable, "pinging postgres: %v", "timeout")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Error("AppError does not unwrap to its sentinel")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("errors.As = %+v", appErr)
	}
	if msg := err.Error(); msg != "index store unavailable: pinging postgres: timeout" {
		t.Errorf("Error() = %q", msg)
	}
}

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrInvalidQuery, http.StatusBadRequest},
		{fmt.Errorf("running search: %w", ErrInvalidQuery), http.StatusBadRequest},
		{ErrStoreUnavailable, http.StatusServiceUnavailable},
		{New(ErrStoreUnavailable, http.StatusServiceUnavailable, "down"), http.StatusServiceUnavailable},
		{New(ErrInvalidQuery, http.StatusUnprocessableEntity, "odd"), http.StatusUnprocessableEntity},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatusCode(tc.err); got != tc.want {
			t.Errorf("HTTPStatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
