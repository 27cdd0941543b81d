// Package memory is an in-process identity provider for local development
// and tests. Accounts live only as long as the process.
package memory

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kumia-devs/onboarding/internal/platform/id"
	"github.com/kumia-devs/onboarding/internal/platform/logging"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer            = "kumia-memory-identity"
	defaultTokenTTL   = time.Hour
	minPasswordLength = 6
)

// Options configures a Provider.
type Options struct {
	// Secret signs ID tokens. A random secret is generated when empty.
	Secret   []byte
	TokenTTL time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type account struct {
	userID        string
	email         string
	displayName   string
	passwordHash  []byte
	emailVerified bool
	providerID    string
}

// Provider implements identity.Provider in memory.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	cost   int

	mu        sync.Mutex
	byEmail   map[string]*account
	byID      map[string]*account
	federated map[string]*account
	refresh   map[string]string
	codes     map[string]string
}

// New builds a Provider.
func New(opts Options) (*Provider, error) {
	secret := opts.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate token secret: %w", err)
		}
	}
	p := &Provider{
		secret:    secret,
		ttl:       opts.TokenTTL,
		now:       opts.Now,
		logger:    logging.OrDiscard(opts.Logger).With("component", "identity.memory"),
		cost:      opts.BcryptCost,
		byEmail:   make(map[string]*account),
		byID:      make(map[string]*account),
		federated: make(map[string]*account),
		refresh:   make(map[string]string),
		codes:     make(map[string]string),
	}
	if p.ttl <= 0 {
		p.ttl = defaultTokenTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}
	return p, nil
}

var _ identity.Provider = (*Provider)(nil)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount registers an unverified email/password account.
func (p *Provider) CreateAccount(_ context.Context, email, password, displayName string) (identity.Credentials, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return identity.Credentials{}, identity.E(identity.KindCredential, identity.CodeInvalidEmail, nil)
	}
	if len(password) < minPasswordLength {
		return identity.Credentials{}, identity.E(identity.KindCredential, identity.CodeWeakPassword, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return identity.Credentials{}, identity.E(identity.KindCredential, identity.CodeWeakPassword, err)
	}
	userID, err := id.NewID()
	if err != nil {
		return identity.Credentials{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; exists {
		return identity.Credentials{}, identity.E(identity.KindCredential, identity.CodeEmailInUse, nil)
	}
	acct := &account{
		userID:       userID,
		email:        email,
		displayName:  strings.TrimSpace(displayName),
		passwordHash: hash,
		providerID:   identity.ProviderPassword,
	}
	p.byEmail[email] = acct
	p.byID[userID] = acct
	creds, err := p.issueLocked(acct)
	creds.IsNewUser = true
	return creds, err
}

// SignInWithPassword never says which of email or password was wrong.
func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (identity.Credentials, error) {
	p.mu.Lock()
	acct, ok := p.byEmail[normalizeEmail(email)]
	p.mu.Unlock()
	if !ok || acct.passwordHash == nil {
		return identity.Credentials{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, nil)
	}
	if bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(password)) != nil {
		return identity.Credentials{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issueLocked(acct)
}

// SignInWithIdP trusts the assertion's claims without checking its
// signature; the OAuth exchange that produced it already authenticated the
// user against the IdP.
func (p *Provider) SignInWithIdP(_ context.Context, assertion identity.Assertion) (identity.Credentials, error) {
	if assertion.IDToken == "" {
		return identity.Credentials{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, errors.New("assertion carries no id token"))
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(assertion.IDToken, claims); err != nil {
		return identity.Credentials{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, err)
	}
	subject, _ := claims.GetSubject()
	if subject == "" {
		return identity.Credentials{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, errors.New("assertion has no subject"))
	}
	providerID := assertion.ProviderID
	if providerID == "" {
		providerID = identity.ProviderGoogle
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	verified, _ := claims["email_verified"].(bool)

	p.mu.Lock()
	defer p.mu.Unlock()
	key := providerID + ":" + subject
	acct, ok := p.federated[key]
	created := false
	if !ok {
		email = normalizeEmail(email)
		if existing, taken := p.byEmail[email]; taken && email != "" {
			acct = existing
		} else {
			userID, err := id.NewID()
			if err != nil {
				return identity.Credentials{}, err
			}
			acct = &account{userID: userID, email: email, displayName: name, providerID: providerID}
			p.byID[userID] = acct
			if email != "" {
				p.byEmail[email] = acct
			}
			created = true
		}
		p.federated[key] = acct
	}
	if verified {
		acct.emailVerified = true
	}
	creds, err := p.issueLocked(acct)
	if err != nil {
		return identity.Credentials{}, err
	}
	creds.Identity.ProviderID = providerID
	creds.IsNewUser = created
	return creds, nil
}

// SendVerificationEmail records a code instead of sending mail. The code is
// logged and can be redeemed with ConfirmEmail.
func (p *Provider) SendVerificationEmail(ctx context.Context, idToken string) error {
	ident, err := p.VerifyIDToken(ctx, idToken)
	if err != nil {
		return err
	}
	code, err := id.NewID()
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.codes[code] = ident.UserID
	p.mu.Unlock()
	p.logger.InfoContext(ctx, "verification code issued", "email", ident.Email, "code", code)
	return nil
}

// PendingCode returns the latest unredeemed code for email.
func (p *Provider) PendingCode(email string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.byEmail[normalizeEmail(email)]
	if !ok {
		return "", false
	}
	for code, userID := range p.codes {
		if userID == acct.userID {
			return code, true
		}
	}
	return "", false
}

// ConfirmEmail redeems a verification code.
func (p *Provider) ConfirmEmail(code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.codes[code]
	if !ok {
		return identity.E(identity.KindInvalidCredentials, identity.CodeInvalidToken, errors.New("unknown verification code"))
	}
	for c, owner := range p.codes {
		if owner == userID {
			delete(p.codes, c)
		}
	}
	if acct, ok := p.byID[userID]; ok {
		acct.emailVerified = true
	}
	return nil
}

// Lookup returns the live account state, including verification changes
// made after the token was issued.
func (p *Provider) Lookup(ctx context.Context, idToken string) (identity.Identity, error) {
	ident, err := p.VerifyIDToken(ctx, idToken)
	if err != nil {
		return identity.Identity{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	acct, ok := p.byID[ident.UserID]
	if !ok {
		return identity.Identity{}, identity.E(identity.KindInvalidCredentials, identity.CodeUserNotFound, nil)
	}
	return acct.identity(), nil
}

// Refresh rotates the refresh token.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (identity.Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.refresh[refreshToken]
	if !ok {
		return identity.Tokens{}, identity.E(identity.KindTokenExpired, identity.CodeInvalidToken, nil)
	}
	delete(p.refresh, refreshToken)
	acct, ok := p.byID[userID]
	if !ok {
		return identity.Tokens{}, identity.E(identity.KindInvalidCredentials, identity.CodeUserNotFound, nil)
	}
	creds, err := p.issueLocked(acct)
	return creds.Tokens, err
}

type claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Provider      string `json:"provider"`
}

// VerifyIDToken checks the signature and expiry of a token this provider
// issued. The returned identity reflects the claims at issue time.
func (p *Provider) VerifyIDToken(_ context.Context, idToken string) (identity.Identity, error) {
	c := &claims{}
	_, err := jwt.ParseWithClaims(idToken, c, func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Identity{}, identity.E(identity.KindTokenExpired, identity.CodeTokenExpired, err)
		}
		return identity.Identity{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidToken, err)
	}
	return identity.Identity{
		UserID:        c.Subject,
		Email:         c.Email,
		DisplayName:   c.Name,
		EmailVerified: c.EmailVerified,
		ProviderID:    c.Provider,
	}, nil
}

func (a *account) identity() identity.Identity {
	return identity.Identity{
		UserID:        a.userID,
		Email:         a.email,
		DisplayName:   a.displayName,
		EmailVerified: a.emailVerified,
		ProviderID:    a.providerID,
	}
}

func (p *Provider) issueLocked(acct *account) (identity.Credentials, error) {
	now := p.now()
	expiresAt := now.Add(p.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   acct.userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:         acct.email,
		EmailVerified: acct.emailVerified,
		Name:          acct.displayName,
		Provider:      acct.providerID,
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return identity.Credentials{}, fmt.Errorf("sign id token: %w", err)
	}
	refreshToken, err := id.NewID()
	if err != nil {
		return identity.Credentials{}, err
	}
	p.refresh[refreshToken] = acct.userID
	return identity.Credentials{
		Identity: acct.identity(),
		Tokens:   identity.Tokens{IDToken: signed, RefreshToken: refreshToken, ExpiresAt: expiresAt},
	}, nil
}
