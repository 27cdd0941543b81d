package identity

import (
	"errors"
	"fmt"
)

// Kind classifies provider failures.
type Kind string

const (
	// KindCredential covers rejected sign-up input: email in use, weak
	// password, malformed email.
	KindCredential Kind = "credential"
	// KindInvalidCredentials covers wrong email or password.
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNetwork            Kind = "network"
	KindTooManyAttempts    Kind = "too_many_attempts"
	KindTokenExpired       Kind = "token_expired"
	KindNoSession          Kind = "no_session"
	KindUnsupported        Kind = "unsupported"
)

// Provider error codes, normalized across adapters.
const (
	CodeEmailInUse         = "email-already-in-use"
	CodeWeakPassword       = "weak-password"
	CodeInvalidEmail       = "invalid-email"
	CodeUserNotFound       = "user-not-found"
	CodeWrongPassword      = "wrong-password"
	CodeInvalidCredential  = "invalid-credential"
	CodeUserDisabled       = "user-disabled"
	CodeTooManyRequests    = "too-many-requests"
	CodeNetworkFailed      = "network-request-failed"
	CodeTokenExpired       = "token-expired"
	CodeInvalidToken       = "invalid-token"
	CodeOperationForbidden = "operation-not-allowed"
)

// Error is a classified provider failure.
type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	msg := "identity " + string(e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel errors of the same kind, so callers can write
// errors.Is(err, identity.ErrNetwork).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is checks.
var (
	ErrCredential         = &Error{Kind: KindCredential}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrTooManyAttempts    = &Error{Kind: KindTooManyAttempts}
	ErrTokenExpired       = &Error{Kind: KindTokenExpired}
	ErrNoSession          = &Error{Kind: KindNoSession}
	ErrUnsupported        = &Error{Kind: KindUnsupported}
)

// E builds a classified error.
func E(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// Networkf wraps a transport failure.
func Networkf(format string, args ...any) *Error {
	return &Error{Kind: KindNetwork, Code: CodeNetworkFailed, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) Kind {
	var identityErr *Error
	if errors.As(err, &identityErr) {
		return identityErr.Kind
	}
	return ""
}

// CodeOf returns the provider code of a classified error.
func CodeOf(err error) string {
	var identityErr *Error
	if errors.As(err, &identityErr) {
		return identityErr.Code
	}
	return ""
}
