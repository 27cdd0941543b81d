package session

import (
	"context"
	"sync"

	"github.com/kumia-devs/onboarding/internal/services/web/events"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
)

type fakeAccount struct {
	ident    identity.Identity
	password string
}

// fakeStore is an in-memory SessionStore that notifies synchronously.
type fakeStore struct {
	mu        sync.Mutex
	current   *identity.Identity
	accounts  map[string]*fakeAccount
	listeners map[int]identity.Listener
	nextID    int
	verified  map[string]bool
	sent      int

	createErr  error
	signInErr  error
	signOutErr error
	sendErr    error
	refreshErr error

	federated    identity.Identity
	federatedNew bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:  make(map[string]*fakeAccount),
		listeners: make(map[int]identity.Listener),
		verified:  make(map[string]bool),
	}
}

func (f *fakeStore) addAccount(uid, email, password string, verified bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[email] = &fakeAccount{
		ident:    identity.Identity{UserID: uid, Email: email, EmailVerified: verified, ProviderID: identity.ProviderPassword},
		password: password,
	}
	f.verified[uid] = verified
}

func (f *fakeStore) signedInAs(ident identity.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = &ident
	f.verified[ident.UserID] = ident.EmailVerified
}

func (f *fakeStore) markVerified(uid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified[uid] = true
}

func (f *fakeStore) notify(ctx context.Context) {
	f.mu.Lock()
	current := f.current
	listeners := make([]identity.Listener, 0, len(f.listeners))
	for i := 1; i <= f.nextID; i++ {
		if l, ok := f.listeners[i]; ok {
			listeners = append(listeners, l)
		}
	}
	f.mu.Unlock()
	for _, l := range listeners {
		if current != nil {
			l(ctx, *current, true)
		} else {
			l(ctx, identity.Identity{}, false)
		}
	}
}

func (f *fakeStore) CreateAccount(ctx context.Context, email, _ string, displayName string) (identity.Identity, error) {
	f.mu.Lock()
	if f.createErr != nil {
		f.mu.Unlock()
		return identity.Identity{}, f.createErr
	}
	if _, ok := f.accounts[email]; ok {
		f.mu.Unlock()
		return identity.Identity{}, identity.E(identity.KindCredential, identity.CodeEmailInUse, nil)
	}
	ident := identity.Identity{UserID: "uid-" + email, Email: email, DisplayName: displayName, ProviderID: identity.ProviderPassword}
	f.accounts[email] = &fakeAccount{ident: ident}
	f.current = &ident
	f.mu.Unlock()
	f.notify(ctx)
	return ident, nil
}

func (f *fakeStore) SignIn(ctx context.Context, email, password string) (identity.Identity, error) {
	f.mu.Lock()
	if f.signInErr != nil {
		f.mu.Unlock()
		return identity.Identity{}, f.signInErr
	}
	acct, ok := f.accounts[email]
	if !ok || acct.password != password {
		f.mu.Unlock()
		return identity.Identity{}, identity.E(identity.KindInvalidCredentials, identity.CodeInvalidCredential, nil)
	}
	ident := acct.ident
	ident.EmailVerified = f.verified[ident.UserID]
	f.current = &ident
	f.mu.Unlock()
	f.notify(ctx)
	return ident, nil
}

func (f *fakeStore) SignInFederated(ctx context.Context, _ identity.Assertion) (identity.Identity, bool, error) {
	f.mu.Lock()
	if f.signInErr != nil {
		f.mu.Unlock()
		return identity.Identity{}, false, f.signInErr
	}
	ident := f.federated
	f.current = &ident
	f.verified[ident.UserID] = ident.EmailVerified
	created := f.federatedNew
	f.mu.Unlock()
	f.notify(ctx)
	return ident, created, nil
}

func (f *fakeStore) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.current = nil
	err := f.signOutErr
	f.mu.Unlock()
	f.notify(ctx)
	return err
}

func (f *fakeStore) SendVerificationEmail(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return identity.ErrNoSession
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent++
	return nil
}

func (f *fakeStore) RefreshSession(context.Context) (identity.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return identity.Identity{}, f.refreshErr
	}
	if f.current == nil {
		return identity.Identity{}, identity.ErrNoSession
	}
	ident := *f.current
	ident.EmailVerified = f.verified[ident.UserID]
	f.current = &ident
	return ident, nil
}

func (f *fakeStore) OnSessionChanged(ctx context.Context, listener identity.Listener) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners[id] = listener
	current := f.current
	f.mu.Unlock()
	if current != nil {
		listener(ctx, *current, true)
	} else {
		listener(ctx, identity.Identity{}, false)
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeStore) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// fakeProfiles wraps the memory store with failure and blocking hooks.
type fakeProfiles struct {
	*profile.MemoryStore

	mu           sync.Mutex
	gets         int
	getErr       error
	getGate      chan struct{}
	getStarted   chan struct{}
	readThenWait bool
	upsertErr    error
	upsertGate   chan struct{}
	upsertCalled chan struct{}
	dropWrites   bool
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{MemoryStore: profile.NewMemoryStore()}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	f.mu.Lock()
	f.gets++
	err := f.getErr
	gate := f.getGate
	started := f.getStarted
	readFirst := f.readThenWait
	f.mu.Unlock()
	if err != nil {
		return profile.Profile{}, err
	}
	var (
		p       profile.Profile
		readErr error
	)
	if readFirst {
		p, readErr = f.MemoryStore.GetProfile(ctx, userID)
	}
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if readFirst {
		return p, readErr
	}
	return f.MemoryStore.GetProfile(ctx, userID)
}

// holdNextRead makes the next profile read return what the store holds now
// and wait until the returned channel is closed.
func (f *fakeProfiles) holdNextRead() (release chan struct{}, started chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	release = make(chan struct{})
	started = make(chan struct{}, 1)
	f.getGate = release
	f.getStarted = started
	f.readThenWait = true
	return release, started
}

func (f *fakeProfiles) stopHolding() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getGate = nil
	f.getStarted = nil
	f.readThenWait = false
}

func (f *fakeProfiles) UpsertProfile(ctx context.Context, userID string, patch profile.Patch) error {
	f.mu.Lock()
	err := f.upsertErr
	gate := f.upsertGate
	called := f.upsertCalled
	f.upsertCalled = nil
	drop := f.dropWrites
	f.mu.Unlock()
	if called != nil {
		close(called)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	if drop {
		return nil
	}
	return f.MemoryStore.UpsertProfile(ctx, userID, patch)
}

func (f *fakeProfiles) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type capturedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capturedEvents) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capturedEvents) types() []events.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Type, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type capturedOps struct {
	mu  sync.Mutex
	ops []string
}

func (c *capturedOps) RecordOperation(operation string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	outcome := "ok"
	if !result.Success {
		outcome = string(result.Kind)
	}
	c.ops = append(c.ops, operation+":"+outcome)
}
