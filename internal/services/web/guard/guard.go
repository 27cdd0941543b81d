// Package guard wraps screen handlers with the navigation decision for the
// visitor's live session snapshot.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kumia-devs/onboarding/internal/services/web/navigation"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/httpx"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

// Resolver reads the live snapshot for a request.
type Resolver func(*http.Request) (session.Snapshot, error)

// Observer is told about every decision, e.g. for metrics.
type Observer interface {
	ObserveDecision(screen navigation.Screen, decision navigation.Decision)
}

// Options configures Guards.
type Options struct {
	// Loading renders the deferred-judgment state. Defaults to a 503 with
	// Retry-After.
	Loading  http.Handler
	Observer Observer
	Logger   *slog.Logger
}

// Guards produces guarded handlers.
type Guards struct {
	resolve  Resolver
	loading  http.Handler
	observer Observer
	logger   *slog.Logger
}

// New builds Guards around resolve.
func New(resolve Resolver, opts Options) (*Guards, error) {
	if resolve == nil {
		return nil, errors.New("snapshot resolver is required")
	}
	g := &Guards{resolve: resolve, loading: opts.Loading, observer: opts.Observer, logger: opts.Logger}
	if g.loading == nil {
		g.loading = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return g, nil
}

// Public guards the login and register screens: signed-in visitors are sent
// where they belong.
func (g *Guards) Public(screen navigation.Screen, next http.Handler) http.Handler {
	return g.guard(screen, next)
}

// RequireAuth guards screens that only need a signed-in visitor.
func (g *Guards) RequireAuth(screen navigation.Screen, next http.Handler) http.Handler {
	return g.guard(screen, next)
}

// RequireOnboardingAccess admits verified users who still have to onboard.
func (g *Guards) RequireOnboardingAccess(next http.Handler) http.Handler {
	return g.guard(navigation.ScreenOnboarding, next)
}

// RequireDashboardAccess admits verified users who finished onboarding.
func (g *Guards) RequireDashboardAccess(next http.Handler) http.Handler {
	return g.guard(navigation.ScreenDashboard, next)
}

func (g *Guards) guard(screen navigation.Screen, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap, err := g.resolve(r)
		if err != nil {
			if g.logger != nil {
				g.logger.WarnContext(r.Context(), "resolve session snapshot", "screen", string(screen), "error", err)
			}
			snap = session.Empty()
		}
		decision := navigation.Decide(snap, screen)
		if g.observer != nil {
			g.observer.ObserveDecision(screen, decision)
		}
		switch decision.Outcome {
		case navigation.OutcomeRender:
			next.ServeHTTP(w, r.WithContext(WithSnapshot(r.Context(), snap)))
		case navigation.OutcomeRedirect:
			httpx.WriteRedirect(w, r, routepath.ForScreen(decision.Target))
		default:
			g.loading.ServeHTTP(w, r)
		}
	})
}

type snapshotKey struct{}

// WithSnapshot stores the snapshot a guard rendered with.
func WithSnapshot(ctx context.Context, snap session.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snap)
}

// SnapshotFromContext returns the snapshot the guard admitted the request
// with.
func SnapshotFromContext(ctx context.Context) (session.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotKey{}).(session.Snapshot)
	return snap, ok
}
