package web

import (
	"errors"
	"net/http"

	"github.com/kumia-devs/onboarding/internal/services/web/platform/sessioncookie"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

var errNoBrowserSession = errors.New("request carries no browser session")

// sessionResolver finds the controller of the request's browser session.
type sessionResolver struct {
	manager *session.Manager
}

func (s sessionResolver) controller(r *http.Request) (*session.Controller, error) {
	browserID, ok := sessioncookie.BrowserID(r.Context())
	if !ok {
		return nil, errNoBrowserSession
	}
	return s.manager.Controller(r.Context(), browserID)
}

// snapshot is the guard resolver.
func (s sessionResolver) snapshot(r *http.Request) (session.Snapshot, error) {
	c, err := s.controller(r)
	if err != nil {
		return session.Empty(), err
	}
	return c.ResolveSnapshot(r.Context()), nil
}
