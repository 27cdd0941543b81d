package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kumia-devs/onboarding/internal/platform/logging"
)

const defaultRefreshSkew = time.Minute

// SessionOptions configures NewSession.
type SessionOptions struct {
	Logger *slog.Logger
	Now    func() time.Time
	// RefreshSkew refreshes ID tokens this long before they expire.
	RefreshSkew time.Duration
}

// Session is the signed-in state of one browser session. It persists tokens
// through a TokenStore and notifies listeners, in order, of every sign-in
// and sign-out.
type Session struct {
	browserID string
	provider  Provider
	store     TokenStore
	logger    *slog.Logger
	now       func() time.Time
	skew      time.Duration

	// notifyMu serializes transitions so listeners observe them in order.
	notifyMu sync.Mutex

	mu        sync.Mutex
	current   *account
	listeners []subscription
	nextID    int
}

type account struct {
	ident  Identity
	tokens Tokens
}

type subscription struct {
	id int
	fn Listener
}

// NewSession builds a signed-out session for browserID. Call Restore to load
// persisted credentials.
func NewSession(browserID string, provider Provider, store TokenStore, opts SessionOptions) (*Session, error) {
	browserID = strings.TrimSpace(browserID)
	if browserID == "" {
		return nil, errors.New("browser id is required")
	}
	if provider == nil {
		return nil, errors.New("identity provider is required")
	}
	if store == nil {
		return nil, errors.New("token store is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	skew := opts.RefreshSkew
	if skew <= 0 {
		skew = defaultRefreshSkew
	}
	return &Session{
		browserID: browserID,
		provider:  provider,
		store:     store,
		logger:    logging.OrDiscard(opts.Logger).With("component", "identity.session"),
		now:       now,
		skew:      skew,
	}, nil
}

// BrowserID returns the browser session this state belongs to.
func (s *Session) BrowserID() string { return s.browserID }

// Current returns the signed-in identity, if any.
func (s *Session) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Identity{}, false
	}
	return s.current.ident, true
}

// Restore loads persisted credentials, refreshing an expired ID token.
// Credentials the provider rejects are discarded. Transport failures are
// returned and leave the persisted record untouched.
func (s *Session) Restore(ctx context.Context) error {
	record, ok, err := s.store.LoadTokens(ctx, s.browserID)
	if err != nil {
		return fmt.Errorf("load session tokens: %w", err)
	}
	if !ok {
		return nil
	}

	tokens := record.Tokens
	if tokens.Expired(s.now(), s.skew) {
		fresh, err := s.provider.Refresh(ctx, tokens.RefreshToken)
		if err != nil {
			return s.discardUnlessTransient(ctx, "refresh", err)
		}
		tokens = fresh
		if err := s.persist(ctx, record.UserID, tokens); err != nil {
			return err
		}
	}

	ident, err := s.provider.VerifyIDToken(ctx, tokens.IDToken)
	if err != nil {
		return s.discardUnlessTransient(ctx, "verify", err)
	}
	if ident.UserID != record.UserID {
		s.logger.WarnContext(ctx, "discarding session with mismatched user", "browser_id", s.browserID)
		return s.store.DeleteTokens(ctx, s.browserID)
	}

	s.transition(ctx, &account{ident: ident, tokens: tokens})
	return nil
}

func (s *Session) discardUnlessTransient(ctx context.Context, step string, err error) error {
	if errors.Is(err, ErrNetwork) {
		return fmt.Errorf("restore session (%s): %w", step, err)
	}
	s.logger.InfoContext(ctx, "discarding persisted session", "step", step, "error", err)
	if err := s.store.DeleteTokens(ctx, s.browserID); err != nil {
		return fmt.Errorf("delete rejected session: %w", err)
	}
	return nil
}

// CreateAccount registers an email/password account and signs it in. The
// verification email is sent as a side effect; a failure to send is logged.
func (s *Session) CreateAccount(ctx context.Context, email, password, displayName string) (Identity, error) {
	creds, err := s.provider.CreateAccount(ctx, email, password, displayName)
	if err != nil {
		return Identity{}, err
	}
	if err := s.signedIn(ctx, creds); err != nil {
		return Identity{}, err
	}
	if err := s.provider.SendVerificationEmail(ctx, creds.Tokens.IDToken); err != nil {
		s.logger.WarnContext(ctx, "send verification email after sign-up", "user_id", creds.Identity.UserID, "error", err)
	}
	return creds.Identity, nil
}

// SignIn authenticates with email and password.
func (s *Session) SignIn(ctx context.Context, email, password string) (Identity, error) {
	creds, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	if err := s.signedIn(ctx, creds); err != nil {
		return Identity{}, err
	}
	return creds.Identity, nil
}

// SignInFederated authenticates with an external assertion. The boolean is
// true when the provider created the account during this call.
func (s *Session) SignInFederated(ctx context.Context, assertion Assertion) (Identity, bool, error) {
	creds, err := s.provider.SignInWithIdP(ctx, assertion)
	if err != nil {
		return Identity{}, false, err
	}
	if err := s.signedIn(ctx, creds); err != nil {
		return Identity{}, false, err
	}
	return creds.Identity, creds.IsNewUser, nil
}

func (s *Session) signedIn(ctx context.Context, creds Credentials) error {
	if strings.TrimSpace(creds.Identity.UserID) == "" {
		return E(KindInvalidCredentials, CodeInvalidCredential, errors.New("provider returned no user id"))
	}
	if err := s.persist(ctx, creds.Identity.UserID, creds.Tokens); err != nil {
		return err
	}
	s.transition(ctx, &account{ident: creds.Identity, tokens: creds.Tokens})
	return nil
}

// SignOut forgets the credentials. Listeners are notified even when the
// persisted record could not be deleted; that failure is returned.
func (s *Session) SignOut(ctx context.Context) error {
	err := s.store.DeleteTokens(ctx, s.browserID)
	s.transition(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session tokens: %w", err)
	}
	return nil
}

// SendVerificationEmail asks the provider to email a verification link.
func (s *Session) SendVerificationEmail(ctx context.Context) error {
	acct, err := s.fresh(ctx)
	if err != nil {
		return err
	}
	return s.provider.SendVerificationEmail(ctx, acct.tokens.IDToken)
}

// RefreshSession pulls the latest account state from the provider. When the
// verification flag changed the ID token is refreshed as well so restored
// sessions carry the new claim.
func (s *Session) RefreshSession(ctx context.Context) (Identity, error) {
	acct, err := s.fresh(ctx)
	if err != nil {
		return Identity{}, err
	}
	ident, err := s.provider.Lookup(ctx, acct.tokens.IDToken)
	if err != nil {
		return Identity{}, err
	}
	if ident.ProviderID == "" {
		ident.ProviderID = acct.ident.ProviderID
	}
	tokens := acct.tokens
	if ident.EmailVerified != acct.ident.EmailVerified {
		if refreshed, err := s.provider.Refresh(ctx, tokens.RefreshToken); err == nil {
			tokens = refreshed
			if err := s.persist(ctx, ident.UserID, tokens); err != nil {
				s.logger.WarnContext(ctx, "persist refreshed tokens", "error", err)
			}
		} else {
			s.logger.WarnContext(ctx, "refresh tokens after verification change", "error", err)
		}
	}

	s.mu.Lock()
	stillCurrent := s.current != nil && s.current.ident.UserID == ident.UserID
	s.mu.Unlock()
	if !stillCurrent {
		return Identity{}, ErrNoSession
	}
	if ident != acct.ident || tokens != acct.tokens {
		s.transition(ctx, &account{ident: ident, tokens: tokens})
	}
	return ident, nil
}

// OnSessionChanged registers listener and immediately invokes it with the
// current state. The returned function unsubscribes.
func (s *Session) OnSessionChanged(ctx context.Context, listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.nextID++
	subID := s.nextID
	s.listeners = append(s.listeners, subscription{id: subID, fn: listener})
	current := s.current
	s.mu.Unlock()

	if current != nil {
		listener(ctx, current.ident, true)
	} else {
		listener(ctx, Identity{}, false)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == subID {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *Session) transition(ctx context.Context, next *account) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.current = next
	subs := append([]subscription(nil), s.listeners...)
	s.mu.Unlock()

	for _, sub := range subs {
		if next != nil {
			sub.fn(ctx, next.ident, true)
		} else {
			sub.fn(ctx, Identity{}, false)
		}
	}
}

// fresh returns the current account with a usable ID token.
func (s *Session) fresh(ctx context.Context) (account, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return account{}, ErrNoSession
	}
	if !current.tokens.Expired(s.now(), s.skew) {
		return *current, nil
	}

	tokens, err := s.provider.Refresh(ctx, current.tokens.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrNetwork) {
			return account{}, err
		}
		s.logger.InfoContext(ctx, "refresh rejected, signing out", "user_id", current.ident.UserID, "error", err)
		if signOutErr := s.SignOut(ctx); signOutErr != nil {
			s.logger.WarnContext(ctx, "sign out after rejected refresh", "error", signOutErr)
		}
		return account{}, ErrNoSession
	}
	if err := s.persist(ctx, current.ident.UserID, tokens); err != nil {
		return account{}, err
	}

	s.mu.Lock()
	if s.current != nil && s.current.ident.UserID == current.ident.UserID {
		s.current = &account{ident: s.current.ident, tokens: tokens}
	}
	s.mu.Unlock()
	return account{ident: current.ident, tokens: tokens}, nil
}

func (s *Session) persist(ctx context.Context, userID string, tokens Tokens) error {
	err := s.store.SaveTokens(ctx, s.browserID, Record{
		UserID:    userID,
		Tokens:    tokens,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save session tokens: %w", err)
	}
	return nil
}
