package web

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kumia-devs/onboarding/internal/platform/logging"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/metrics"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/ratelimit"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/requestmeta"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/sessioncookie"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
	"github.com/kumia-devs/onboarding/internal/services/web/questionnaire"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

// GoogleFlow runs the Google authorization-code exchange for a browser
// session.
type GoogleFlow interface {
	Start(browserID string) (string, error)
	Finish(ctx context.Context, browserID, state, code string) (identity.Assertion, error)
}

// DevVerifier redeems verification codes of the in-memory identity
// provider.
type DevVerifier interface {
	PendingCode(email string) (string, bool)
	ConfirmEmail(code string) error
}

// Dependencies are the collaborators NewHandler wires into routes.
type Dependencies struct {
	Manager  *session.Manager
	Profiles profile.Store
	// Catalog defaults to the embedded questionnaire.
	Catalog *questionnaire.Catalog
	// Google is nil when Google sign-in is not configured.
	Google GoogleFlow
	// DevVerify enables the development verification route when set.
	DevVerify   DevVerifier
	Metrics     *metrics.Metrics
	Policy      requestmeta.Policy
	Jar         sessioncookie.Jar
	AuthLimiter *ratelimit.Limiter
	Logger      *slog.Logger
}

func (d *Dependencies) normalize() error {
	if d.Manager == nil {
		return errors.New("session manager is required")
	}
	if d.Profiles == nil {
		return errors.New("profile store is required")
	}
	if d.Catalog == nil {
		catalog, err := questionnaire.Default()
		if err != nil {
			return err
		}
		d.Catalog = catalog
	}
	if d.AuthLimiter == nil {
		d.AuthLimiter = ratelimit.New(ratelimit.Options{})
	}
	d.Logger = logging.OrDiscard(d.Logger)
	return nil
}
