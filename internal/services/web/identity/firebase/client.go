// Package firebase implements identity.Provider over the Firebase Auth
// (Identity Toolkit) REST API.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kumia-devs/onboarding/internal/platform/timeouts"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
)

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1"
)

// Config configures a Client.
type Config struct {
	APIKey    string
	ProjectID string
	// RequestURI is sent with federated sign-ins; Firebase requires an
	// absolute http(s) URL.
	RequestURI         string
	IdentityToolkitURL string
	SecureTokenURL     string
	CertsURL           string
	HTTPClient         *http.Client
	Now                func() time.Time
}

// Client talks to Identity Toolkit and verifies the ID tokens it issues.
type Client struct {
	apiKey     string
	requestURI string
	toolkitURL string
	tokenURL   string
	http       *http.Client
	now        func() time.Time
	verifier   *Verifier
}

// New builds a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("firebase api key is required")
	}
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("firebase project id is required")
	}
	c := &Client{
		apiKey:     cfg.APIKey,
		requestURI: cfg.RequestURI,
		toolkitURL: strings.TrimRight(cfg.IdentityToolkitURL, "/"),
		tokenURL:   strings.TrimRight(cfg.SecureTokenURL, "/"),
		http:       cfg.HTTPClient,
		now:        cfg.Now,
	}
	if c.toolkitURL == "" {
		c.toolkitURL = DefaultIdentityToolkitURL
	}
	if c.tokenURL == "" {
		c.tokenURL = DefaultSecureTokenURL
	}
	if c.requestURI == "" {
		c.requestURI = "http://localhost"
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: timeouts.UpstreamRequest}
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.verifier = NewVerifier(VerifierConfig{
		ProjectID:  cfg.ProjectID,
		CertsURL:   cfg.CertsURL,
		HTTPClient: c.http,
		Now:        c.now,
	})
	return c, nil
}

var _ identity.Provider = (*Client)(nil)

type authResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"`
	ProviderID    string `json:"providerId"`
	IsNewUser     bool   `json:"isNewUser"`
}

func (c *Client) tokens(resp authResponse) identity.Tokens {
	return identity.Tokens{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.now().Add(expiresIn(resp.ExpiresIn)),
	}
}

func expiresIn(raw string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}

// CreateAccount registers an email/password account and sets its display
// name.
func (c *Client) CreateAccount(ctx context.Context, email, password, displayName string) (identity.Credentials, error) {
	var resp authResponse
	err := c.call(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.Credentials{}, err
	}
	if name := strings.TrimSpace(displayName); name != "" {
		var updated authResponse
		if err := c.call(ctx, "accounts:update", map[string]any{
			"idToken":           resp.IDToken,
			"displayName":       name,
			"returnSecureToken": false,
		}, &updated); err == nil {
			resp.DisplayName = name
		}
	}
	return identity.Credentials{
		Identity: identity.Identity{
			UserID:      resp.LocalID,
			Email:       resp.Email,
			DisplayName: resp.DisplayName,
			ProviderID:  identity.ProviderPassword,
		},
		Tokens:    c.tokens(resp),
		IsNewUser: true,
	}, nil
}

// SignInWithPassword authenticates and reads the verification flag from
// the account record, which the sign-in response omits.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (identity.Credentials, error) {
	var resp authResponse
	err := c.call(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return identity.Credentials{}, err
	}
	ident, err := c.Lookup(ctx, resp.IDToken)
	if err != nil {
		return identity.Credentials{}, err
	}
	ident.ProviderID = identity.ProviderPassword
	return identity.Credentials{Identity: ident, Tokens: c.tokens(resp)}, nil
}

// SignInWithIdP exchanges a federated assertion for a Firebase session.
func (c *Client) SignInWithIdP(ctx context.Context, assertion identity.Assertion) (identity.Credentials, error) {
	providerID := assertion.ProviderID
	if providerID == "" {
		providerID = identity.ProviderGoogle
	}
	post := url.Values{"providerId": {providerID}}
	switch {
	case assertion.IDToken != "":
		post.Set("id_token", assertion.IDToken)
	case assertion.AccessToken != "":
		post.Set("access_token", assertion.AccessToken)
	default:
		return identity.Credentials{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, errors.New("assertion carries no token"))
	}
	requestURI := assertion.RequestURI
	if requestURI == "" {
		requestURI = c.requestURI
	}
	var resp authResponse
	err := c.call(ctx, "accounts:signInWithIdp", map[string]any{
		"postBody":            post.Encode(),
		"requestUri":          requestURI,
		"returnIdpCredential": true,
		"returnSecureToken":   true,
	}, &resp)
	if err != nil {
		return identity.Credentials{}, err
	}
	if resp.ProviderID == "" {
		resp.ProviderID = providerID
	}
	return identity.Credentials{
		Identity: identity.Identity{
			UserID:        resp.LocalID,
			Email:         resp.Email,
			DisplayName:   resp.DisplayName,
			EmailVerified: resp.EmailVerified,
			ProviderID:    resp.ProviderID,
		},
		Tokens:    c.tokens(resp),
		IsNewUser: resp.IsNewUser,
	}, nil
}

// SendVerificationEmail asks Firebase to email a verification link.
func (c *Client) SendVerificationEmail(ctx context.Context, idToken string) error {
	return c.call(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "VERIFY_EMAIL",
		"idToken":     idToken,
	}, nil)
}

type lookupResponse struct {
	Users []struct {
		LocalID          string `json:"localId"`
		Email            string `json:"email"`
		DisplayName      string `json:"displayName"`
		EmailVerified    bool   `json:"emailVerified"`
		Disabled         bool   `json:"disabled"`
		ProviderUserInfo []struct {
			ProviderID string `json:"providerId"`
		} `json:"providerUserInfo"`
	} `json:"users"`
}

// Lookup reads the account behind idToken.
func (c *Client) Lookup(ctx context.Context, idToken string) (identity.Identity, error) {
	var resp lookupResponse
	if err := c.call(ctx, "accounts:lookup", map[string]any{"idToken": idToken}, &resp); err != nil {
		return identity.Identity{}, err
	}
	if len(resp.Users) == 0 {
		return identity.Identity{}, identity.E(identity.KindInvalidCredentials, identity.CodeUserNotFound, errors.New("lookup returned no user"))
	}
	user := resp.Users[0]
	if user.Disabled {
		return identity.Identity{}, identity.E(identity.KindInvalidCredentials, identity.CodeUserDisabled, nil)
	}
	ident := identity.Identity{
		UserID:        user.LocalID,
		Email:         user.Email,
		DisplayName:   user.DisplayName,
		EmailVerified: user.EmailVerified,
	}
	if len(user.ProviderUserInfo) > 0 {
		ident.ProviderID = user.ProviderUserInfo[0].ProviderID
	}
	return ident, nil
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// Refresh exchanges a refresh token for a new ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (identity.Tokens, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return identity.Tokens{}, identity.E(identity.KindTokenExpired, identity.CodeTokenExpired, errors.New("no refresh token"))
	}
	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {refreshToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.tokenURL, "token"), strings.NewReader(form.Encode()))
	if err != nil {
		return identity.Tokens{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var resp refreshResponse
	if err := c.do(req, &resp); err != nil {
		return identity.Tokens{}, err
	}
	return identity.Tokens{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.now().Add(expiresIn(resp.ExpiresIn)),
	}, nil
}

// VerifyIDToken checks the token signature and claims locally.
func (c *Client) VerifyIDToken(ctx context.Context, idToken string) (identity.Identity, error) {
	return c.verifier.Verify(ctx, idToken)
}

func (c *Client) endpoint(base, method string) string {
	return base + "/" + method + "?" + url.Values{"key": {c.apiKey}}.Encode()
}

func (c *Client) call(ctx context.Context, method string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.toolkitURL, method), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return identity.Networkf("%s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.Networkf("read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return identity.Networkf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
