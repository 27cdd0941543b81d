package session

import (
	"context"
	"sync"
	"time"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
)

// SessionStore is the external authentication session of one browser.
// Implementations invoke listeners synchronously and in order.
type SessionStore interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (identity.Identity, error)
	SignIn(ctx context.Context, email, password string) (identity.Identity, error)
	// SignInFederated reports whether the account was created by this call.
	SignInFederated(ctx context.Context, assertion identity.Assertion) (identity.Identity, bool, error)
	SignOut(ctx context.Context) error
	SendVerificationEmail(ctx context.Context) error
	RefreshSession(ctx context.Context) (identity.Identity, error)
	// OnSessionChanged invokes listener with the current state, then on
	// every change, until the returned function is called.
	OnSessionChanged(ctx context.Context, listener identity.Listener) func()
}

// Hint is the persisted new-user hint, tagged with the user it was set for.
type Hint struct {
	UserID string
	SetAt  time.Time
}

// HintStore persists the hint for one browser session.
type HintStore interface {
	LoadHint(ctx context.Context) (Hint, bool, error)
	SaveHint(ctx context.Context, hint Hint) error
	ClearHint(ctx context.Context) error
}

// OperationRecorder observes controller operation outcomes.
type OperationRecorder interface {
	RecordOperation(operation string, result Result)
}

// memoryHints is the fallback when no persistent hint store is configured.
type memoryHints struct {
	mu   sync.Mutex
	hint *Hint
}

func (m *memoryHints) LoadHint(context.Context) (Hint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hint == nil {
		return Hint{}, false, nil
	}
	return *m.hint, true, nil
}

func (m *memoryHints) SaveHint(_ context.Context, hint Hint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hint = &hint
	return nil
}

func (m *memoryHints) ClearHint(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hint = nil
	return nil
}
