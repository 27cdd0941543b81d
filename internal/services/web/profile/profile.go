// Package profile defines the per-user profile record and the store port its
// backends implement.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// StatusActive is the status of every profile created by this service.
const StatusActive = "active"

var (
	// ErrNotFound is returned when no profile exists for a user id.
	ErrNotFound = errors.New("profile not found")
	// ErrAlreadyExists is returned by CreateProfile when a record exists.
	ErrAlreadyExists = errors.New("profile already exists")
)

// Profile is the persisted record for one user.
type Profile struct {
	UserID             string
	Name               string
	Email              string
	Status             string
	Provider           string
	OnboardingComplete bool
	// Progress is the questionnaire state, opaque to the store.
	Progress    json.RawMessage
	WalletStars int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Patch is a merge update. Nil fields are left untouched; UpdatedAt is
// always stamped by the store.
type Patch struct {
	Name               *string
	Email              *string
	OnboardingComplete *bool
	Progress           json.RawMessage
}

// Empty reports whether the patch changes nothing besides UpdatedAt.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.OnboardingComplete == nil && p.Progress == nil
}

// Apply merges p into existing. Used by stores that read-modify-write.
func (p Patch) Apply(existing Profile, now time.Time) Profile {
	if p.Name != nil {
		existing.Name = *p.Name
	}
	if p.Email != nil {
		existing.Email = *p.Email
	}
	if p.OnboardingComplete != nil {
		existing.OnboardingComplete = *p.OnboardingComplete
	}
	if p.Progress != nil {
		existing.Progress = append(json.RawMessage(nil), p.Progress...)
	}
	existing.UpdatedAt = now
	return existing
}

// NewDefault is the record created the first time a user signs in.
func NewDefault(userID, name, email, provider string, now time.Time) Profile {
	name = strings.TrimSpace(name)
	if name == "" {
		name = displayNameFromEmail(email)
	}
	now = now.UTC()
	return Profile{
		UserID:             userID,
		Name:               name,
		Email:              email,
		Status:             StatusActive,
		Provider:           provider,
		OnboardingComplete: false,
		WalletStars:        0,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// Store reads and writes profiles keyed by user id.
type Store interface {
	// GetProfile returns ErrNotFound when no record exists.
	GetProfile(ctx context.Context, userID string) (Profile, error)
	// UpsertProfile merges patch into the record, creating it when absent.
	UpsertProfile(ctx context.Context, userID string, patch Patch) error
	// CreateProfile writes p only if no record exists, else ErrAlreadyExists.
	CreateProfile(ctx context.Context, p Profile) error
}

// ValidateUserID normalizes and checks a user id argument.
func ValidateUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	return userID, nil
}
