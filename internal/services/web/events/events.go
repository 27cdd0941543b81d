// Package events publishes onboarding domain events for downstream consumers
// (welcome mailers, CRM sync, analytics).
package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kumia-devs/onboarding/internal/platform/id"
)

// Type names an event on the wire.
type Type string

const (
	TypeUserSignedUp        Type = "user.signed_up"
	TypeUserSignedIn        Type = "user.signed_in"
	TypeOnboardingCompleted Type = "onboarding.completed"
)

// Event is one published fact about a user.
type Event struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	UserID     string            `json:"user_id"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New builds an event with a fresh id.
func New(typ Type, userID string, at time.Time, attrs map[string]string) (Event, error) {
	if strings.TrimSpace(string(typ)) == "" {
		return Event{}, errors.New("event type is required")
	}
	if strings.TrimSpace(userID) == "" {
		return Event{}, errors.New("event user id is required")
	}
	eventID, err := id.NewID()
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         eventID,
		Type:       typ,
		UserID:     userID,
		OccurredAt: at.UTC(),
		Attributes: attrs,
	}, nil
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop drops every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }
