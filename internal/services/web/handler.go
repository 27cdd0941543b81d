package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kumia-devs/onboarding/internal/services/web/guard"
	webi18n "github.com/kumia-devs/onboarding/internal/services/web/i18n"
	"github.com/kumia-devs/onboarding/internal/services/web/metrics"
	"github.com/kumia-devs/onboarding/internal/services/web/navigation"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/httpx"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/ratelimit"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/requestmeta"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
	"github.com/kumia-devs/onboarding/internal/services/web/questionnaire"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	"github.com/kumia-devs/onboarding/internal/services/web/static"
)

type handler struct {
	sessions  sessionResolver
	profiles  profile.Store
	catalog   *questionnaire.Catalog
	google    GoogleFlow
	devVerify DevVerifier
	metrics   *metrics.Metrics
	policy    requestmeta.Policy
	flash     flash.Writer
	limiter   *ratelimit.Limiter
	guards    *guard.Guards
	logger    *slog.Logger
}

// NewHandler builds the web service's route tree behind the shared
// middleware chain.
func NewHandler(deps Dependencies) (http.Handler, error) {
	if err := deps.normalize(); err != nil {
		return nil, err
	}
	h := &handler{
		sessions:  sessionResolver{manager: deps.Manager},
		profiles:  deps.Profiles,
		catalog:   deps.Catalog,
		google:    deps.Google,
		devVerify: deps.DevVerify,
		metrics:   deps.Metrics,
		policy:    deps.Policy,
		flash:     flash.Writer{Policy: deps.Policy},
		limiter:   deps.AuthLimiter,
		logger:    deps.Logger,
	}
	guards, err := guard.New(h.sessions.snapshot, guard.Options{
		Loading:  http.HandlerFunc(h.handleLoading),
		Observer: deps.Metrics,
		Logger:   deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build guards: %w", err)
	}
	h.guards = guards

	mux := http.NewServeMux()
	route := func(pattern, name string, next http.Handler) {
		mux.Handle(pattern, h.metrics.Instrument(name, next))
	}
	limited := func(name string, next http.Handler) http.Handler {
		return h.limiter.Middleware(h.policy.ClientIP, h.rejectRateLimited(name))(next)
	}

	route(http.MethodGet+" /{$}", "root", guards.Public(navigation.ScreenLogin, http.HandlerFunc(h.handleRoot)))

	route(http.MethodGet+" "+routepath.Login, "login", guards.Public(navigation.ScreenLogin, http.HandlerFunc(h.handleLoginPage)))
	route(http.MethodPost+" "+routepath.Login, "login_submit", limited("login", guards.Public(navigation.ScreenLogin, http.HandlerFunc(h.handleLoginSubmit))))
	route(http.MethodGet+" "+routepath.Register, "register", guards.Public(navigation.ScreenRegister, http.HandlerFunc(h.handleRegisterPage)))
	route(http.MethodPost+" "+routepath.Register, "register_submit", limited("register", guards.Public(navigation.ScreenRegister, http.HandlerFunc(h.handleRegisterSubmit))))
	route(http.MethodGet+" "+routepath.GoogleStart, "google_start", limited("google", guards.Public(navigation.ScreenLogin, http.HandlerFunc(h.handleGoogleStart))))
	route(http.MethodGet+" "+routepath.GoogleCallback, "google_callback", guards.Public(navigation.ScreenLogin, http.HandlerFunc(h.handleGoogleCallback)))
	route(http.MethodPost+" "+routepath.Logout, "logout", http.HandlerFunc(h.handleLogout))

	route(http.MethodGet+" "+routepath.VerifyEmail, "verify_email", guards.RequireAuth(navigation.ScreenVerifyEmail, http.HandlerFunc(h.handleVerifyPage)))
	route(http.MethodPost+" "+routepath.VerifyEmailResend, "verify_email_resend", limited("verify_resend", guards.RequireAuth(navigation.ScreenVerifyEmail, http.HandlerFunc(h.handleVerifyResend))))
	route(http.MethodPost+" "+routepath.VerifyEmailConfirm, "verify_email_confirm", guards.RequireAuth(navigation.ScreenVerifyEmail, http.HandlerFunc(h.handleVerifyConfirm)))

	route(http.MethodGet+" "+routepath.Onboarding, "onboarding", guards.RequireOnboardingAccess(http.HandlerFunc(h.handleOnboardingPage)))
	route(http.MethodPost+" "+routepath.OnboardingAnswer, "onboarding_answer", guards.RequireOnboardingAccess(http.HandlerFunc(h.handleOnboardingAnswer)))
	route(http.MethodPost+" "+routepath.OnboardingBack, "onboarding_back", guards.RequireOnboardingAccess(http.HandlerFunc(h.handleOnboardingBack)))
	route(http.MethodPost+" "+routepath.OnboardingComplete, "onboarding_complete", guards.RequireOnboardingAccess(http.HandlerFunc(h.handleOnboardingComplete)))

	route(http.MethodGet+" "+routepath.Dashboard, "dashboard", guards.RequireDashboardAccess(http.HandlerFunc(h.handleDashboard)))

	if h.devVerify != nil {
		route(http.MethodGet+" "+routepath.DevVerifyEmail, "dev_verify_email", http.HandlerFunc(h.handleDevVerify))
	}

	mux.HandleFunc(http.MethodGet+" "+routepath.Health, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if h.metrics != nil {
		mux.Handle(http.MethodGet+" "+routepath.Metrics, h.metrics.Handler())
	}
	mux.Handle(http.MethodGet+" "+routepath.Static, http.StripPrefix(routepath.Static, http.FileServerFS(static.FS)))
	mux.HandleFunc("/", h.handleNotFound)

	return httpx.Chain(mux,
		httpx.RequestID(),
		httpx.RecoverPanic(deps.Logger),
		httpx.AccessLog(deps.Logger, deps.Policy),
		httpx.RequireSameOrigin(deps.Policy),
		deps.Jar.Ensure(deps.Logger),
		webi18n.Middleware(deps.Policy),
	), nil
}

func (h *handler) rejectRateLimited(route string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.metrics.CountRateLimited(route)
		h.logger.WarnContext(r.Context(), "rate limited", "route", route, "client_ip", h.policy.ClientIP(r))
		h.renderError(w, r, http.StatusTooManyRequests)
	})
}

// handleRoot only runs for anonymous visitors; the guard sends everyone
// else to their screen.
func (h *handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	httpx.WriteRedirect(w, r, routepath.Login)
}

// redirectNext sends the visitor to the screen their session belongs on.
func (h *handler) redirectNext(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	httpx.WriteRedirect(w, r, routepath.ForScreen(navigation.Next(c.Snapshot())))
}

// controller returns the browser session's controller, answering with the
// loading page when it cannot be resolved.
func (h *handler) controller(w http.ResponseWriter, r *http.Request) (*session.Controller, bool) {
	c, err := h.sessions.controller(r)
	if err != nil {
		h.logger.WarnContext(r.Context(), "resolve session controller", "path", r.URL.Path, "error", err)
		h.handleLoading(w, r)
		return nil, false
	}
	return c, true
}

// resultStatus is the HTTP status of a failed form submission.
func resultStatus(res session.Result) int {
	switch res.Kind {
	case session.KindNetwork:
		return http.StatusServiceUnavailable
	case session.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusUnprocessableEntity
	}
}
