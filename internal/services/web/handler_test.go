package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/kumia-devs/onboarding/internal/services/web/identity/memory"
	"github.com/kumia-devs/onboarding/internal/services/web/metrics"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/ratelimit"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
	"github.com/kumia-devs/onboarding/internal/services/web/questionnaire"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	"github.com/kumia-devs/onboarding/internal/services/web/storage"
	"github.com/kumia-devs/onboarding/internal/services/web/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	server   *httptest.Server
	client   *http.Client
	identity *memory.Provider
	profiles *profile.MemoryStore
	catalog  *questionnaire.Catalog
}

func newTestEnv(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()

	provider, err := memory.New(memory.Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	profiles := profile.NewMemoryStore()
	factory, err := NewControllerFactory(SessionBackends{
		Identity: provider,
		Store:    storage.NewMemoryStore(),
		Profiles: profiles,
	})
	require.NoError(t, err)
	manager, err := session.NewManager(factory, session.ManagerOptions{})
	require.NoError(t, err)
	catalog, err := questionnaire.Default()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(done)
	}()

	deps := Dependencies{
		Manager:   manager,
		Profiles:  profiles,
		Catalog:   catalog,
		DevVerify: provider,
		Metrics:   metrics.New(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	handler, err := NewHandler(deps)
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{server: server, client: client, identity: provider, profiles: profiles, catalog: catalog}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", e.server.URL)
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func requireRedirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()
	require.Equal(t, status, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("Location"))
}

// register signs a new user up in English and lands on verify-email.
func (e *testEnv) register(t *testing.T, email string) {
	t.Helper()
	resp, _ := e.get(t, routepath.Register+"?lang=en")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.post(t, routepath.Register, url.Values{
		"name":             {"Ana"},
		"email":            {email},
		"password":         {"secret-pass"},
		"password_confirm": {"secret-pass"},
	})
	requireRedirect(t, resp, http.StatusSeeOther, routepath.VerifyEmail)
}

func (e *testEnv) verify(t *testing.T, email string) {
	t.Helper()
	code, ok := e.identity.PendingCode(email)
	require.True(t, ok, "sign-up should issue a verification code")
	resp, _ := e.get(t, routepath.DevVerifyEmail+"?code="+url.QueryEscape(code))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.post(t, routepath.VerifyEmailConfirm, nil)
	requireRedirect(t, resp, http.StatusSeeOther, routepath.Onboarding)
}

func validAnswer(catalog *questionnaire.Catalog, q questionnaire.Question) url.Values {
	form := url.Values{templates.QuestionField: {q.ID}}
	switch q.Kind {
	case questionnaire.KindText, questionnaire.KindLongText:
		form.Set(questionnaire.FieldAnswer, "Casa Kumia")
	case questionnaire.KindSingleChoice, questionnaire.KindMultiChoice:
		option := q.Options[0]
		form.Set(questionnaire.FieldAnswer, option.Value)
		if option.Detail {
			form.Set(questionnaire.FieldDetail, "details")
		}
	case questionnaire.KindNumber:
		value := 1.0
		if q.Min != nil {
			value = *q.Min
		}
		form.Set(questionnaire.FieldAnswer, strconv.FormatFloat(value, 'f', -1, 64))
	case questionnaire.KindLocation:
		form.Set(questionnaire.FieldCountry, catalog.Countries[0].Value)
		form.Set(questionnaire.FieldCity, "Lima")
	}
	return form
}

func TestAnonymousVisitorIsSentToLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.get(t, "/")
	requireRedirect(t, resp, http.StatusFound, routepath.Login)

	for _, path := range []string{routepath.VerifyEmail, routepath.Onboarding, routepath.Dashboard} {
		resp, _ := env.get(t, path)
		requireRedirect(t, resp, http.StatusFound, routepath.Login)
	}

	resp, body := env.get(t, routepath.Login+"?lang=en")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Sign in")
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestOnboardingJourney(t *testing.T) {
	env := newTestEnv(t, nil)
	const email = "ana@example.com"

	env.register(t, email)

	resp, body := env.get(t, routepath.VerifyEmail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Check your inbox")
	assert.Contains(t, body, routepath.DevVerifyEmail+"?code=")

	// Unverified users stay on verify-email.
	resp, _ = env.get(t, routepath.Onboarding)
	requireRedirect(t, resp, http.StatusFound, routepath.VerifyEmail)
	resp, _ = env.post(t, routepath.VerifyEmailConfirm, nil)
	requireRedirect(t, resp, http.StatusSeeOther, routepath.VerifyEmail)

	env.verify(t, email)

	// A new user cannot skip onboarding.
	resp, _ = env.get(t, routepath.Dashboard)
	requireRedirect(t, resp, http.StatusFound, routepath.Onboarding)

	resp, body = env.get(t, routepath.Onboarding)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Question 1 of "+strconv.Itoa(env.catalog.Len()))

	for i := 0; i < env.catalog.Len(); i++ {
		q := env.catalog.Question(i)
		resp, _ := env.post(t, routepath.OnboardingAnswer, validAnswer(env.catalog, q))
		if i < env.catalog.Len()-1 {
			requireRedirect(t, resp, http.StatusSeeOther, routepath.Onboarding)
			continue
		}
		requireRedirect(t, resp, http.StatusSeeOther, routepath.Dashboard)
	}

	resp, body = env.get(t, routepath.Dashboard)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Hi, Ana")
	assert.Contains(t, body, "Thank you for completing your onboarding!")

	// Onboarding is closed once complete.
	resp, _ = env.get(t, routepath.Onboarding)
	requireRedirect(t, resp, http.StatusFound, routepath.Dashboard)

	stored := onlyProfile(t, env, email)
	assert.True(t, stored.OnboardingComplete)
	progress, err := env.catalog.DecodeProgress(stored.Progress)
	require.NoError(t, err)
	assert.True(t, env.catalog.Complete(progress))
}

func TestReturningUserSignsInToDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	const email = "chef@example.com"

	env.register(t, email)
	env.verify(t, email)
	for i := 0; i < env.catalog.Len(); i++ {
		env.post(t, routepath.OnboardingAnswer, validAnswer(env.catalog, env.catalog.Question(i)))
	}

	resp, _ := env.post(t, routepath.Logout, nil)
	requireRedirect(t, resp, http.StatusSeeOther, routepath.Login)
	resp, _ = env.get(t, routepath.Dashboard)
	requireRedirect(t, resp, http.StatusFound, routepath.Login)

	resp, body := env.post(t, routepath.Login, url.Values{"email": {email}, "password": {"wrong-pass"}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, `role="alert"`)

	resp, _ = env.post(t, routepath.Login, url.Values{"email": {email}, "password": {"secret-pass"}})
	requireRedirect(t, resp, http.StatusSeeOther, routepath.Dashboard)

	// Signed-in users never see the public screens.
	resp, _ = env.get(t, routepath.Login)
	requireRedirect(t, resp, http.StatusFound, routepath.Dashboard)
}

func TestOnboardingAnswerValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	const email = "owner@example.com"
	env.register(t, email)
	env.verify(t, email)

	first := env.catalog.Question(0)
	resp, body := env.post(t, routepath.OnboardingAnswer, url.Values{templates.QuestionField: {first.ID}})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Question 1 of")

	resp, _ = env.post(t, routepath.OnboardingAnswer, validAnswer(env.catalog, first))
	requireRedirect(t, resp, http.StatusSeeOther, routepath.Onboarding)
	_, body = env.get(t, routepath.Onboarding)
	assert.Contains(t, body, "Question 2 of")

	resp, _ = env.post(t, routepath.OnboardingBack, nil)
	requireRedirect(t, resp, http.StatusSeeOther, routepath.Onboarding)
	_, body = env.get(t, routepath.Onboarding)
	assert.Contains(t, body, "Question 1 of")
	assert.Contains(t, body, `value="Casa Kumia"`)

	// Completing early points at the first unanswered question.
	resp, _ = env.post(t, routepath.OnboardingComplete, nil)
	requireRedirect(t, resp, http.StatusSeeOther, routepath.Onboarding)
	_, body = env.get(t, routepath.Onboarding)
	assert.Contains(t, body, "Some questions are still unanswered.")
}

func TestRegisterRejectsPasswordMismatch(t *testing.T) {
	env := newTestEnv(t, nil)

	env.get(t, routepath.Register+"?lang=en")
	resp, body := env.post(t, routepath.Register, url.Values{
		"name":             {"Ana"},
		"email":            {"ana@example.com"},
		"password":         {"secret-pass"},
		"password_confirm": {"other-pass"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Passwords do not match.")
	assert.Contains(t, body, `value="ana@example.com"`)
}

func TestCrossOriginPostIsRejected(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.client.PostForm(env.server.URL+routepath.Login, url.Values{"email": {"a@example.com"}})
	require.NoError(t, err)
	readBody(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAuthPostsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) {
		d.AuthLimiter = ratelimit.New(ratelimit.Options{PerMinute: 1, Burst: 1})
	})

	form := url.Values{"email": {"a@example.com"}, "password": {"nope"}}
	resp, _ := env.post(t, routepath.Login, form)
	require.NotEqual(t, http.StatusTooManyRequests, resp.StatusCode)
	resp, _ = env.post(t, routepath.Login, form)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestServiceRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.get(t, routepath.Health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	resp, body = env.get(t, routepath.Metrics)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "kumia_web")

	resp, _ = env.get(t, routepath.Static+"app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.get(t, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.get(t, routepath.DevVerifyEmail+"?code=bogus")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGoogleRoutesWithoutFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.get(t, routepath.GoogleStart)
	requireRedirect(t, resp, http.StatusFound, routepath.Login)
	_, body := env.get(t, routepath.Login+"?lang=en")
	assert.Contains(t, body, "Google sign-in is not available.")
}

func onlyProfile(t *testing.T, env *testEnv, email string) profile.Profile {
	t.Helper()
	creds, err := env.identity.SignInWithPassword(context.Background(), email, "secret-pass")
	require.NoError(t, err)
	p, err := env.profiles.GetProfile(context.Background(), creds.Identity.UserID)
	require.NoError(t, err)
	return p
}
