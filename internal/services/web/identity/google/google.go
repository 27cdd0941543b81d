// Package google runs the Google OAuth 2.0 authorization-code flow with PKCE
// and hands the resulting ID token to the identity provider as a federated
// assertion.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kumia-devs/onboarding/internal/platform/id"
	"github.com/kumia-devs/onboarding/internal/platform/timeouts"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	ErrUnknownState = errors.New("unknown oauth state")
	ErrExpiredState = errors.New("oauth state expired")
)

// Config configures a Flow.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// Endpoint defaults to Google's.
	Endpoint oauth2.Endpoint
	Scopes   []string
	// StateTTL bounds how long a started sign-in may take.
	StateTTL time.Duration
	Now      func() time.Time
}

type pending struct {
	browserID string
	verifier  string
	createdAt time.Time
}

// Flow tracks started sign-ins until their callback arrives.
type Flow struct {
	oauth *oauth2.Config
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	pending map[string]pending
}

// New builds a Flow.
func New(cfg Config) (*Flow, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, errors.New("google client id is required")
	}
	if strings.TrimSpace(cfg.RedirectURL) == "" {
		return nil, errors.New("google redirect url is required")
	}
	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = endpoints.Google
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"openid", "email", "profile"}
	}
	f := &Flow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		ttl:     cfg.StateTTL,
		now:     cfg.Now,
		pending: make(map[string]pending),
	}
	if f.ttl <= 0 {
		f.ttl = timeouts.PendingOAuthFlow
	}
	if f.now == nil {
		f.now = time.Now
	}
	return f, nil
}

// Start records a pending sign-in for browserID and returns the consent URL.
func (f *Flow) Start(browserID string) (string, error) {
	state, err := id.NewID()
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	f.mu.Lock()
	f.pending[state] = pending{browserID: browserID, verifier: verifier, createdAt: f.now()}
	f.mu.Unlock()

	return f.oauth.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// Finish redeems the callback. The state is consumed whether or not the
// exchange succeeds.
func (f *Flow) Finish(ctx context.Context, browserID, state, code string) (identity.Assertion, error) {
	f.mu.Lock()
	p, ok := f.pending[state]
	delete(f.pending, state)
	f.mu.Unlock()

	if !ok || p.browserID != browserID {
		return identity.Assertion{}, ErrUnknownState
	}
	if f.now().Sub(p.createdAt) > f.ttl {
		return identity.Assertion{}, ErrExpiredState
	}
	if strings.TrimSpace(code) == "" {
		return identity.Assertion{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, errors.New("callback carries no code"))
	}

	token, err := f.oauth.Exchange(ctx, code, oauth2.VerifierOption(p.verifier))
	if err != nil {
		var retrieve *oauth2.RetrieveError
		if errors.As(err, &retrieve) && retrieve.Response != nil && retrieve.Response.StatusCode < 500 {
			return identity.Assertion{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, err)
		}
		return identity.Assertion{}, identity.Networkf("exchange google code: %w", err)
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return identity.Assertion{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, fmt.Errorf("token response has no id_token"))
	}
	return identity.Assertion{
		ProviderID:  identity.ProviderGoogle,
		IDToken:     idToken,
		AccessToken: token.AccessToken,
		RequestURI:  f.oauth.RedirectURL,
	}, nil
}

// Sweep drops expired pending sign-ins and reports how many remain.
func (f *Flow) Sweep() int {
	cutoff := f.now().Add(-f.ttl)
	f.mu.Lock()
	defer f.mu.Unlock()
	for state, p := range f.pending {
		if p.createdAt.Before(cutoff) {
			delete(f.pending, state)
		}
	}
	return len(f.pending)
}
