package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumia-devs/onboarding/internal/services/web/navigation"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

func newTestMetrics() *Metrics {
	return NewWith(prometheus.NewRegistry())
}

func TestRecordOperation(t *testing.T) {
	m := newTestMetrics()
	m.RecordOperation("SignIn", session.Result{Success: true})
	m.RecordOperation("SignIn", session.Result{Kind: session.KindInvalidCredentials, Err: errors.New("nope")})
	m.RecordOperation("SignIn", session.Result{})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionOperations.WithLabelValues("SignIn", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionOperations.WithLabelValues("SignIn", "invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionOperations.WithLabelValues("SignIn", "unknown")))
}

func TestObserveDecision(t *testing.T) {
	m := newTestMetrics()
	m.ObserveDecision(navigation.ScreenDashboard, navigation.Decision{Outcome: navigation.OutcomeRedirect, Target: navigation.ScreenOnboarding})
	m.ObserveDecision(navigation.ScreenDashboard, navigation.Decision{Outcome: navigation.OutcomeRender})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("dashboard", "redirect", "onboarding")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardDecisions.WithLabelValues("dashboard", "render", "")))
}

func TestControllersGauge(t *testing.T) {
	m := newTestMetrics()
	m.SetControllers(3)
	m.SetControllers(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Controllers))
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	m.RecordOperation("SignOut", session.Result{Success: true})
	m.ObserveDecision(navigation.ScreenLogin, navigation.Decision{})
	m.SetControllers(1)
	m.CountRateLimited("/login")

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Instrument("/", next))
}

func TestInstrumentAndHandler(t *testing.T) {
	m := New()
	handler := m.Instrument("/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))
	m.CountRateLimited("/login")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/login", "post", "302")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "kumia_web_rate_limited_total"), "expected rate limit metric in exposition")
	assert.True(t, strings.Contains(body, "go_goroutines"), "expected runtime collector in exposition")
}
