package firebase

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
)

// DefaultCertsURL serves the x509 certificates that sign Firebase ID tokens.
const DefaultCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const (
	issuerPrefix = "https://securetoken.google.com/"
	// minCertRefresh bounds refetches triggered by unknown key ids.
	minCertRefresh = time.Minute
	defaultCertTTL = time.Hour
)

// VerifierConfig configures a Verifier.
type VerifierConfig struct {
	ProjectID  string
	CertsURL   string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Verifier checks Firebase ID tokens against Google's published keys.
type Verifier struct {
	projectID string
	certsURL  string
	http      *http.Client
	now       func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	fetchedAt time.Time
}

// NewVerifier builds a Verifier.
func NewVerifier(cfg VerifierConfig) *Verifier {
	v := &Verifier{
		projectID: cfg.ProjectID,
		certsURL:  cfg.CertsURL,
		http:      cfg.HTTPClient,
		now:       cfg.Now,
	}
	if v.certsURL == "" {
		v.certsURL = DefaultCertsURL
	}
	if v.http == nil {
		v.http = http.DefaultClient
	}
	if v.now == nil {
		v.now = time.Now
	}
	return v
}

// Claims are the Firebase ID token claims the service reads.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Firebase      struct {
		SignInProvider string `json:"sign_in_provider"`
	} `json:"firebase"`
}

// Verify validates signature, issuer, audience and expiry.
func (v *Verifier) Verify(ctx context.Context, idToken string) (identity.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token has no key id")
		}
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithAudience(v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		var idErr *identity.Error
		if errors.As(err, &idErr) {
			return identity.Identity{}, idErr
		}
		if errors.Is(err, jwt.ErrTokenExpired) {
			return identity.Identity{}, identity.E(identity.KindTokenExpired, identity.CodeTokenExpired, err)
		}
		return identity.Identity{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return identity.Identity{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidToken, errors.New("token has no subject"))
	}
	return identity.Identity{
		UserID:        claims.Subject,
		Email:         claims.Email,
		DisplayName:   claims.Name,
		EmailVerified: claims.EmailVerified,
		ProviderID:    claims.Firebase.SignInProvider,
	}, nil
}

func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	key, ok := v.keys[kid]
	stale := now.After(v.expiresAt)
	if ok && !stale {
		return key, nil
	}
	if !stale && now.Sub(v.fetchedAt) < minCertRefresh {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	if err := v.refresh(ctx, now); err != nil {
		return nil, err
	}
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return key, nil
}

// refresh runs with v.mu held.
func (v *Verifier) refresh(ctx context.Context, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("build certs request: %w", err)
	}
	resp, err := v.http.Do(req)
	if err != nil {
		return identity.Networkf("fetch signing certs: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return identity.Networkf("fetch signing certs: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return identity.Networkf("read signing certs: %w", err)
	}
	var certs map[string]string
	if err := json.Unmarshal(body, &certs); err != nil {
		return identity.Networkf("decode signing certs: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("parse signing cert %s: %w", kid, err)
		}
		keys[kid] = key
	}
	v.keys = keys
	v.fetchedAt = now
	v.expiresAt = now.Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

func maxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultCertTTL
}
