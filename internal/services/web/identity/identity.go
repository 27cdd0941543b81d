// Package identity adapts an external identity provider into per-browser
// sessions that push sign-in and sign-out notifications to listeners.
package identity

import (
	"context"
	"time"
)

// Provider IDs recorded on profiles.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google.com"
)

// Identity is the provider's view of a signed-in user.
type Identity struct {
	UserID        string
	Email         string
	DisplayName   string
	EmailVerified bool
	ProviderID    string
}

// Tokens are the credentials kept for a signed-in browser session.
type Tokens struct {
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the ID token needs a refresh at now, with skew.
func (t Tokens) Expired(now time.Time, skew time.Duration) bool {
	return t.IDToken == "" || !now.Add(skew).Before(t.ExpiresAt)
}

// Credentials is what a successful provider sign-in returns.
type Credentials struct {
	Identity  Identity
	Tokens    Tokens
	IsNewUser bool
}

// Assertion is a federated credential obtained from an external IdP (for
// example a Google ID token from the OAuth callback).
type Assertion struct {
	ProviderID  string
	IDToken     string
	AccessToken string
	RequestURI  string
}

// Provider is the stateless identity backend.
type Provider interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (Credentials, error)
	SignInWithPassword(ctx context.Context, email, password string) (Credentials, error)
	SignInWithIdP(ctx context.Context, assertion Assertion) (Credentials, error)
	SendVerificationEmail(ctx context.Context, idToken string) error
	Lookup(ctx context.Context, idToken string) (Identity, error)
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
	VerifyIDToken(ctx context.Context, idToken string) (Identity, error)
}

// Record is the persisted form of a signed-in browser session.
type Record struct {
	UserID    string
	Tokens    Tokens
	UpdatedAt time.Time
}

// TokenStore persists one record per browser session id.
type TokenStore interface {
	LoadTokens(ctx context.Context, browserID string) (Record, bool, error)
	SaveTokens(ctx context.Context, browserID string, record Record) error
	DeleteTokens(ctx context.Context, browserID string) error
}

// Listener receives session changes. signedIn is false after a sign-out or
// when no session could be restored; ident is then the zero value.
type Listener func(ctx context.Context, ident Identity, signedIn bool)
