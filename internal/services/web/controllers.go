package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kumia-devs/onboarding/internal/services/web/events"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	"github.com/kumia-devs/onboarding/internal/services/web/storage"
)

// SessionBackends are the collaborators shared by every browser session's
// controller.
type SessionBackends struct {
	Identity identity.Provider
	Store    storage.Store
	Profiles profile.Store
	Events   events.Publisher
	Recorder session.OperationRecorder
	Logger   *slog.Logger
	Now      func() time.Time
}

// NewControllerFactory builds controllers that restore the browser
// session's persisted sign-in before they start listening.
func NewControllerFactory(b SessionBackends) (session.Factory, error) {
	if b.Identity == nil {
		return nil, errors.New("identity provider is required")
	}
	if b.Store == nil {
		return nil, errors.New("browser state store is required")
	}
	if b.Profiles == nil {
		return nil, errors.New("profile store is required")
	}
	return func(ctx context.Context, browserID string) (*session.Controller, error) {
		// The controller outlives the request that created it.
		ctx = context.WithoutCancel(ctx)

		ident, err := identity.NewSession(browserID, b.Identity, b.Store, identity.SessionOptions{
			Logger: b.Logger,
			Now:    b.Now,
		})
		if err != nil {
			return nil, err
		}
		if err := ident.Restore(ctx); err != nil {
			return nil, fmt.Errorf("restore browser session: %w", err)
		}
		controller, err := session.NewController(ident, b.Profiles, session.Options{
			Hints:    storage.BindHints(b.Store, browserID),
			Logger:   b.Logger,
			Recorder: b.Recorder,
			Events:   b.Events,
			Now:      b.Now,
		})
		if err != nil {
			return nil, err
		}
		controller.Start(ctx)
		return controller, nil
	}, nil
}
