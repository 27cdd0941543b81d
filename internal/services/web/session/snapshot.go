// Package session owns the resolved view of who is signed in for one
// browser session and the operations that change it.
package session

import "errors"

// Snapshot is the resolved session state read by guards and handlers.
type Snapshot struct {
	IsAuthenticated bool
	// UserID is empty when unauthenticated.
	UserID          string
	Email           string
	DisplayName     string
	IsEmailVerified bool
	// OnboardingComplete is nil until a profile fetch for UserID returned a record.
	OnboardingComplete   *bool
	EphemeralNewUserHint bool
	IsLoading            bool
}

// Empty is the state before the first session resolution.
func Empty() Snapshot {
	return Snapshot{IsLoading: true}
}

// OnboardingKnown reports whether a profile fetch confirmed the flag.
func (s Snapshot) OnboardingKnown() bool {
	return s.OnboardingComplete != nil
}

// IsNewUser reports whether a verified user still has to finish onboarding.
// A confirmed profile flag wins over the hint; the hint only decides while
// the flag is unknown.
func (s Snapshot) IsNewUser() bool {
	if !s.IsAuthenticated || !s.IsEmailVerified {
		return false
	}
	if s.OnboardingComplete != nil {
		return !*s.OnboardingComplete
	}
	return s.EphemeralNewUserHint
}

var (
	errUserIDMismatch       = errors.New("snapshot: user id must be set exactly when authenticated")
	errUnauthenticatedState = errors.New("snapshot: unauthenticated snapshot carries user state")
)

// Validate checks the structural invariants of a snapshot.
func (s Snapshot) Validate() error {
	if s.IsAuthenticated != (s.UserID != "") {
		return errUserIDMismatch
	}
	if !s.IsAuthenticated && (s.Email != "" || s.IsEmailVerified || s.OnboardingComplete != nil || s.EphemeralNewUserHint) {
		return errUnauthenticatedState
	}
	return nil
}

func (s Snapshot) clone() Snapshot {
	if s.OnboardingComplete != nil {
		v := *s.OnboardingComplete
		s.OnboardingComplete = &v
	}
	return s
}

func boolPtr(v bool) *bool { return &v }
