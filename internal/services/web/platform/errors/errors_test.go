package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "invalid input", err: E(KindInvalidInput, "bad"), want: http.StatusBadRequest},
		{name: "unauthorized", err: E(KindUnauthorized, "no"), want: http.StatusUnauthorized},
		{name: "forbidden", err: E(KindForbidden, "no"), want: http.StatusForbidden},
		{name: "not found", err: E(KindNotFound, "gone"), want: http.StatusNotFound},
		{name: "rate limited", err: E(KindTooManyRequests, "slow"), want: http.StatusTooManyRequests},
		{name: "unavailable", err: E(KindUnavailable, "down"), want: http.StatusServiceUnavailable},
		{name: "wrapped typed", err: fmt.Errorf("handler: %w", E(KindForbidden, "no")), want: http.StatusForbidden},
		{name: "untyped", err: errors.New("boom"), want: http.StatusInternalServerError},
		{name: "grpc not found", err: status.Error(codes.NotFound, "missing"), want: http.StatusNotFound},
		{name: "grpc unavailable", err: status.Error(codes.Unavailable, "down"), want: http.StatusServiceUnavailable},
		{name: "grpc internal", err: status.Error(codes.Internal, "x"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestLocalizationKey(t *testing.T) {
	t.Parallel()

	if got := LocalizationKey(EK(KindInvalidInput, " onboarding.error.answer ", "bad answer")); got != "onboarding.error.answer" {
		t.Fatalf("LocalizationKey() = %q", got)
	}
	if got := LocalizationKey(errors.New("plain")); got != "" {
		t.Fatalf("LocalizationKey() = %q, want empty", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("store down")
	err := Wrap(KindUnavailable, "auth.error.network", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause")
	}
	if err.Error() != "store down" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if Wrap(KindUnavailable, "x", nil) != nil {
		t.Fatalf("Wrap(nil) must be nil")
	}
}
