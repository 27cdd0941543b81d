package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type tokenEndpoint struct {
	verifiers []string
	status    int
	idToken   string
}

func (e *tokenEndpoint) serve(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		e.verifiers = append(e.verifiers, r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		if e.status != 0 {
			w.WriteHeader(e.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		payload := map[string]any{"access_token": "at-1", "token_type": "Bearer", "expires_in": 3600}
		if e.idToken != "" {
			payload["id_token"] = e.idToken
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFlow(t *testing.T, srv *httptest.Server, c *clock) *Flow {
	t.Helper()
	f, err := New(Config{
		ClientID:     "client-1",
		ClientSecret: "secret",
		RedirectURL:  "https://kumia.test/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
		Now:          c.Now,
	})
	require.NoError(t, err)
	return f
}

func startState(t *testing.T, f *Flow, browserID string) (string, url.Values) {
	t.Helper()
	raw, err := f.Start(browserID)
	require.NoError(t, err)
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	q := parsed.Query()
	return q.Get("state"), q
}

func TestStartAndFinish(t *testing.T) {
	endpoint := &tokenEndpoint{idToken: "google-id-token"}
	srv := endpoint.serve(t)
	c := &clock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	f := newFlow(t, srv, c)

	state, q := startState(t, f, "browser-1")
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "openid email profile", q.Get("scope"))

	assertion, err := f.Finish(context.Background(), "browser-1", state, "code-1")
	require.NoError(t, err)
	assert.Equal(t, identity.Assertion{
		ProviderID:  identity.ProviderGoogle,
		IDToken:     "google-id-token",
		AccessToken: "at-1",
		RequestURI:  "https://kumia.test/auth/google/callback",
	}, assertion)

	require.Len(t, endpoint.verifiers, 1)
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(endpoint.verifiers[0]), q.Get("code_challenge"))

	_, err = f.Finish(context.Background(), "browser-1", state, "code-1")
	assert.ErrorIs(t, err, ErrUnknownState, "states are single use")
}

func TestFinishRejectsOtherBrowser(t *testing.T) {
	endpoint := &tokenEndpoint{idToken: "x"}
	f := newFlow(t, endpoint.serve(t), &clock{now: time.Now()})
	state, _ := startState(t, f, "browser-1")

	_, err := f.Finish(context.Background(), "browser-2", state, "code")
	assert.ErrorIs(t, err, ErrUnknownState)
	assert.Empty(t, endpoint.verifiers)
}

func TestFinishRejectsExpiredState(t *testing.T) {
	endpoint := &tokenEndpoint{idToken: "x"}
	c := &clock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	f := newFlow(t, endpoint.serve(t), c)
	state, _ := startState(t, f, "browser-1")

	c.now = c.now.Add(11 * time.Minute)
	_, err := f.Finish(context.Background(), "browser-1", state, "code")
	assert.ErrorIs(t, err, ErrExpiredState)
}

func TestFinishClassifiesExchangeFailures(t *testing.T) {
	rejected := &tokenEndpoint{status: http.StatusBadRequest}
	f := newFlow(t, rejected.serve(t), &clock{now: time.Now()})
	state, _ := startState(t, f, "b")
	_, err := f.Finish(context.Background(), "b", state, "code")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	down := &tokenEndpoint{status: http.StatusBadGateway}
	f = newFlow(t, down.serve(t), &clock{now: time.Now()})
	state, _ = startState(t, f, "b")
	_, err = f.Finish(context.Background(), "b", state, "code")
	assert.ErrorIs(t, err, identity.ErrNetwork)

	noID := &tokenEndpoint{}
	f = newFlow(t, noID.serve(t), &clock{now: time.Now()})
	state, _ = startState(t, f, "b")
	_, err = f.Finish(context.Background(), "b", state, "code")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestSweep(t *testing.T) {
	endpoint := &tokenEndpoint{idToken: "x"}
	c := &clock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	f := newFlow(t, endpoint.serve(t), c)
	startState(t, f, "a")
	c.now = c.now.Add(6 * time.Minute)
	startState(t, f, "b")
	c.now = c.now.Add(6 * time.Minute)

	assert.Equal(t, 1, f.Sweep())
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{RedirectURL: "https://kumia.test/cb"})
	assert.Error(t, err)
	_, err = New(Config{ClientID: "c"})
	assert.Error(t, err)
}
