package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/kumia-devs/onboarding/internal/platform/logging"
	"github.com/kumia-devs/onboarding/internal/services/web/events"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
)

const tracerName = "github.com/kumia-devs/onboarding/internal/services/web/session"

// Operation names used for spans, metrics and logs.
const (
	OpSignUp          = "sign_up"
	OpSignIn          = "sign_in"
	OpSignInFederated = "sign_in_federated"
	OpSignOut         = "sign_out"
	OpCompleteOnboard = "complete_onboarding"
	OpRequestVerify   = "request_email_verification"
	OpConfirmVerify   = "confirm_verification"
)

// Options configures NewController. Every field is optional.
type Options struct {
	Hints    HintStore
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Recorder OperationRecorder
	Events   events.Publisher
	Now      func() time.Time
}

// Controller is the only writer of a browser session's Snapshot. Mutations
// happen under mu; provider and store calls never hold it. Every user change
// bumps epoch so results computed for an earlier session are dropped, and
// every confirmed profile write bumps profileGen so reads started before it
// cannot overwrite it.
type Controller struct {
	store    SessionStore
	profiles profile.Store
	hints    HintStore
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder OperationRecorder
	events   events.Publisher
	now      func() time.Time

	flight singleflight.Group

	mu          sync.Mutex
	snap        Snapshot
	resolved    bool
	pending     int
	epoch       uint64
	profileGen  uint64
	noProfile   bool
	storedHint  *Hint
	unsubscribe func()
}

// NewController builds a controller in the initial loading state. Call
// Start to subscribe to the session store.
func NewController(store SessionStore, profiles profile.Store, opts Options) (*Controller, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if profiles == nil {
		return nil, errors.New("profile store is required")
	}
	c := &Controller{
		store:    store,
		profiles: profiles,
		hints:    opts.Hints,
		logger:   logging.OrDiscard(opts.Logger).With("component", "session.controller"),
		tracer:   opts.Tracer,
		recorder: opts.Recorder,
		events:   opts.Events,
		now:      opts.Now,
	}
	if c.hints == nil {
		c.hints = &memoryHints{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.events == nil {
		c.events = events.Noop{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Start loads the persisted hint and subscribes to session changes. The
// first notification resolves the session before Start returns.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	started := c.unsubscribe != nil
	c.mu.Unlock()
	if started {
		return
	}

	if hint, ok, err := c.hints.LoadHint(ctx); err != nil {
		c.logger.WarnContext(ctx, "load new-user hint", "error", err)
	} else if ok {
		c.mu.Lock()
		c.storedHint = &hint
		c.mu.Unlock()
	}

	ctx, span := c.tracer.Start(ctx, "session.Start")
	defer span.End()
	unsubscribe := c.store.OnSessionChanged(ctx, c.handleSessionChanged)

	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
}

// Close stops listening to the session store.
func (c *Controller) Close() {
	c.mu.Lock()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snap.clone()
	s.IsLoading = !c.resolved || c.pending > 0
	return s
}

// ResolveSnapshot returns the current state after retrying the profile read
// when a signed-in user's onboarding flag is still unknown and nothing else
// is in flight. A profile known to be absent is not read again.
func (c *Controller) ResolveSnapshot(ctx context.Context) Snapshot {
	c.mu.Lock()
	retry := c.resolved && c.pending == 0 && c.snap.IsAuthenticated &&
		c.snap.OnboardingComplete == nil && !c.noProfile
	userID, epoch := c.snap.UserID, c.epoch
	c.mu.Unlock()

	if retry {
		if _, err := c.refreshProfile(ctx, epoch, userID); err != nil && !errors.Is(err, profile.ErrNotFound) {
			c.logger.DebugContext(ctx, "retry profile read", "user_id", userID, "error", err)
		}
	}
	return c.Snapshot()
}

func (c *Controller) handleSessionChanged(ctx context.Context, ident identity.Identity, signedIn bool) {
	c.mu.Lock()
	if !signedIn {
		if c.snap.IsAuthenticated {
			c.epoch++
		}
		clearHint := c.storedHint != nil || c.snap.EphemeralNewUserHint
		c.snap = Snapshot{}
		c.resolved = true
		c.noProfile = false
		c.storedHint = nil
		c.mu.Unlock()
		if clearHint {
			if err := c.hints.ClearHint(ctx); err != nil {
				c.logger.WarnContext(ctx, "clear hint after session ended", "error", err)
			}
		}
		return
	}

	var staleHint bool
	userChanged := c.snap.UserID != ident.UserID
	if userChanged {
		c.epoch++
		c.noProfile = false
		c.snap = Snapshot{
			IsAuthenticated: true,
			UserID:          ident.UserID,
			Email:           ident.Email,
			DisplayName:     ident.DisplayName,
			IsEmailVerified: ident.EmailVerified,
		}
		if c.storedHint != nil {
			if c.storedHint.UserID == ident.UserID {
				c.snap.EphemeralNewUserHint = true
			} else {
				c.storedHint = nil
				staleHint = true
			}
		}
	} else {
		c.snap.Email = ident.Email
		c.snap.DisplayName = ident.DisplayName
	}
	needsProfile := userChanged || c.snap.OnboardingComplete == nil
	epoch := c.epoch
	c.mu.Unlock()

	if staleHint {
		if err := c.hints.ClearHint(ctx); err != nil {
			c.logger.WarnContext(ctx, "clear hint of previous user", "error", err)
		}
	}
	if needsProfile {
		if _, err := c.refreshProfile(ctx, epoch, ident.UserID); err != nil && !errors.Is(err, profile.ErrNotFound) {
			c.logger.WarnContext(ctx, "fetch profile after session change", "user_id", ident.UserID, "error", err)
		}
	}

	c.mu.Lock()
	c.resolved = true
	c.mu.Unlock()
}

// refreshProfile fetches the profile for userID, sharing one in-flight read
// per user and profile generation, and applies it if the session has not
// moved on. A read overtaken by a confirmed write is returned but not applied.
func (c *Controller) refreshProfile(ctx context.Context, epoch uint64, userID string) (profile.Profile, error) {
	done := c.beginOp()
	defer done()

	c.mu.Lock()
	gen := c.profileGen
	c.mu.Unlock()

	key := userID + "@" + strconv.FormatUint(gen, 10)
	v, err, _ := c.flight.Do(key, func() (any, error) {
		return c.profiles.GetProfile(ctx, userID)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) && c.epoch == epoch && c.profileGen == gen {
			c.noProfile = true
		}
		return profile.Profile{}, err
	}
	p := v.(profile.Profile)
	if c.epoch != epoch {
		return p, errStale
	}
	if c.profileGen != gen {
		return p, nil
	}
	c.noProfile = false
	c.snap.OnboardingComplete = boolPtr(p.OnboardingComplete)
	return p, nil
}

// commitProfileFlag records a confirmed onboarding flag. Callers hold mu.
func (c *Controller) commitProfileFlag(complete bool) {
	c.profileGen++
	c.noProfile = false
	c.snap.OnboardingComplete = boolPtr(complete)
}

func (c *Controller) beginOp() func() {
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.pending--
			c.mu.Unlock()
		})
	}
}

// current returns the epoch when userID is still the signed-in user.
func (c *Controller) current(userID string) (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.snap.IsAuthenticated || c.snap.UserID != userID {
		return 0, false
	}
	return c.epoch, true
}

func (c *Controller) signedInUser() (string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.snap.IsAuthenticated {
		return "", 0, false
	}
	return c.snap.UserID, c.epoch, true
}

// SignUp creates an email/password account. The new user is flagged with
// the hint until onboarding completes; the profile flag stays unknown until
// a later fetch.
func (c *Controller) SignUp(ctx context.Context, email, password, displayName string) Result {
	ctx, span := c.tracer.Start(ctx, "session.SignUp")
	defer span.End()
	done := c.beginOp()
	defer done()

	email = strings.TrimSpace(email)
	ident, err := c.store.CreateAccount(ctx, email, password, strings.TrimSpace(displayName))
	if err != nil {
		return c.finish(ctx, span, OpSignUp, fromIdentityError(err, false))
	}
	span.SetAttributes(attribute.String("user.id", ident.UserID))

	epoch, ok := c.current(ident.UserID)
	if !ok {
		return c.finish(ctx, span, OpSignUp, failure(KindStaleSession, MsgStaleSession, errStale))
	}
	if !c.setHint(ctx, epoch, ident.UserID, true) {
		return c.finish(ctx, span, OpSignUp, failure(KindStaleSession, MsgStaleSession, errStale))
	}

	def := profile.NewDefault(ident.UserID, ident.DisplayName, ident.Email, identity.ProviderPassword, c.now())
	if err := c.profiles.CreateProfile(ctx, def); err != nil && !errors.Is(err, profile.ErrAlreadyExists) {
		c.logger.WarnContext(ctx, "create profile after sign-up", "user_id", ident.UserID, "error", err)
	}
	c.publish(ctx, events.TypeUserSignedUp, ident.UserID, map[string]string{"provider": identity.ProviderPassword})
	return c.finish(ctx, span, OpSignUp, success(MsgSignUpSuccess))
}

// SignIn authenticates with email and password and makes sure a profile
// exists for the user.
func (c *Controller) SignIn(ctx context.Context, email, password string) Result {
	ctx, span := c.tracer.Start(ctx, "session.SignIn")
	defer span.End()
	done := c.beginOp()
	defer done()

	ident, err := c.store.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return c.finish(ctx, span, OpSignIn, fromIdentityError(err, true))
	}
	span.SetAttributes(attribute.String("user.id", ident.UserID))
	return c.finish(ctx, span, OpSignIn, c.completeSignIn(ctx, ident, identity.ProviderPassword, false))
}

// SignInWithFederatedProvider authenticates with an external assertion. A
// freshly created account is always treated as new.
func (c *Controller) SignInWithFederatedProvider(ctx context.Context, assertion identity.Assertion) Result {
	ctx, span := c.tracer.Start(ctx, "session.SignInWithFederatedProvider",
		trace.WithAttributes(attribute.String("identity.provider", assertion.ProviderID)))
	defer span.End()
	done := c.beginOp()
	defer done()

	ident, wasJustCreated, err := c.store.SignInFederated(ctx, assertion)
	if err != nil {
		return c.finish(ctx, span, OpSignInFederated, fromIdentityError(err, true))
	}
	span.SetAttributes(attribute.String("user.id", ident.UserID), attribute.Bool("user.created", wasJustCreated))
	providerID := assertion.ProviderID
	if providerID == "" {
		providerID = ident.ProviderID
	}
	res := c.completeSignIn(ctx, ident, providerID, wasJustCreated)
	if res.Success && wasJustCreated {
		c.publish(ctx, events.TypeUserSignedUp, ident.UserID, map[string]string{"provider": providerID})
	}
	return c.finish(ctx, span, OpSignInFederated, res)
}

func (c *Controller) completeSignIn(ctx context.Context, ident identity.Identity, providerID string, wasJustCreated bool) Result {
	epoch, ok := c.current(ident.UserID)
	if !ok {
		return failure(KindStaleSession, MsgStaleSession, errStale)
	}
	p, err := c.ensureProfile(ctx, ident, providerID)
	if err != nil {
		return failure(KindNetwork, MsgProfileUnavailable, err)
	}

	hint := wasJustCreated || !p.OnboardingComplete
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return failure(KindStaleSession, MsgStaleSession, errStale)
	}
	c.commitProfileFlag(p.OnboardingComplete)
	c.mu.Unlock()

	if !c.setHint(ctx, epoch, ident.UserID, hint) {
		return failure(KindStaleSession, MsgStaleSession, errStale)
	}
	c.publish(ctx, events.TypeUserSignedIn, ident.UserID, map[string]string{"provider": providerID})
	return success(MsgSignInSuccess)
}

// ensureProfile returns the user's profile, creating the default record
// when none exists. A record created here but not yet readable is returned
// as written.
func (c *Controller) ensureProfile(ctx context.Context, ident identity.Identity, providerID string) (profile.Profile, error) {
	p, err := c.profiles.GetProfile(ctx, ident.UserID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}

	def := profile.NewDefault(ident.UserID, ident.DisplayName, ident.Email, providerID, c.now())
	created := true
	if err := c.profiles.CreateProfile(ctx, def); err != nil {
		if !errors.Is(err, profile.ErrAlreadyExists) {
			return profile.Profile{}, fmt.Errorf("create profile: %w", err)
		}
		created = false
	}

	p, err = c.profiles.GetProfile(ctx, ident.UserID)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, profile.ErrNotFound) && created:
		return def, nil
	default:
		return profile.Profile{}, fmt.Errorf("read profile after create: %w", err)
	}
}

// SignOut ends the session. The local state is reset and the hint cleared
// even when the provider reports a failure.
func (c *Controller) SignOut(ctx context.Context) Result {
	ctx, span := c.tracer.Start(ctx, "session.SignOut")
	defer span.End()

	if err := c.store.SignOut(ctx); err != nil {
		c.logger.WarnContext(ctx, "provider sign-out failed, resetting locally", "error", err)
		span.RecordError(err)
	}

	c.mu.Lock()
	c.epoch++
	c.snap = Snapshot{}
	c.resolved = true
	c.noProfile = false
	c.storedHint = nil
	c.mu.Unlock()

	if err := c.hints.ClearHint(ctx); err != nil {
		c.logger.WarnContext(ctx, "clear hint on sign-out", "error", err)
	}
	return c.finish(ctx, span, OpSignOut, success(MsgSignOutSuccess))
}

// CompleteOnboarding persists onboardingComplete=true, confirms it with a
// read, and only then updates the snapshot and clears the hint.
func (c *Controller) CompleteOnboarding(ctx context.Context) Result {
	ctx, span := c.tracer.Start(ctx, "session.CompleteOnboarding")
	defer span.End()

	userID, epoch, ok := c.signedInUser()
	if !ok {
		return c.finish(ctx, span, OpCompleteOnboard, failure(KindNotAuthenticated, MsgNotAuthenticated, identity.ErrNoSession))
	}
	span.SetAttributes(attribute.String("user.id", userID))
	done := c.beginOp()
	defer done()

	if err := c.profiles.UpsertProfile(ctx, userID, profile.Patch{OnboardingComplete: boolPtr(true)}); err != nil {
		return c.finish(ctx, span, OpCompleteOnboard, failure(KindProfileWrite, MsgOnboardingSaveFailed, err))
	}
	p, err := c.profiles.GetProfile(ctx, userID)
	if err != nil {
		return c.finish(ctx, span, OpCompleteOnboard, failure(KindProfileWrite, MsgOnboardingUnconfirm, err))
	}
	if !p.OnboardingComplete {
		return c.finish(ctx, span, OpCompleteOnboard, failure(KindProfileWrite, MsgOnboardingUnconfirm, errors.New("profile still reports onboarding incomplete")))
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return c.finish(ctx, span, OpCompleteOnboard, failure(KindStaleSession, MsgStaleSession, errStale))
	}
	c.commitProfileFlag(true)
	c.snap.EphemeralNewUserHint = false
	c.storedHint = nil
	c.mu.Unlock()

	if err := c.hints.ClearHint(ctx); err != nil {
		c.logger.WarnContext(ctx, "clear hint after onboarding", "error", err)
	}
	c.publish(ctx, events.TypeOnboardingCompleted, userID, nil)
	return c.finish(ctx, span, OpCompleteOnboard, success(MsgOnboardingComplete))
}

// RequestEmailVerification sends another verification email.
func (c *Controller) RequestEmailVerification(ctx context.Context) Result {
	ctx, span := c.tracer.Start(ctx, "session.RequestEmailVerification")
	defer span.End()

	if _, _, ok := c.signedInUser(); !ok {
		return c.finish(ctx, span, OpRequestVerify, failure(KindNotAuthenticated, MsgNotAuthenticated, identity.ErrNoSession))
	}
	if err := c.store.SendVerificationEmail(ctx); err != nil {
		return c.finish(ctx, span, OpRequestVerify, fromIdentityError(err, false))
	}
	return c.finish(ctx, span, OpRequestVerify, success(MsgVerificationSent))
}

// ConfirmVerificationAndRefresh pulls the verification flag from the
// provider and returns it. A newly verified user whose profile flag is
// still unknown is treated as new.
func (c *Controller) ConfirmVerificationAndRefresh(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "session.ConfirmVerificationAndRefresh")
	defer span.End()

	userID, epoch, ok := c.signedInUser()
	if !ok {
		c.finish(ctx, span, OpConfirmVerify, failure(KindNotAuthenticated, MsgNotAuthenticated, identity.ErrNoSession))
		return false
	}
	done := c.beginOp()
	defer done()

	ident, err := c.store.RefreshSession(ctx)
	if err != nil {
		c.finish(ctx, span, OpConfirmVerify, fromIdentityError(err, false))
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.epoch == epoch && c.snap.IsEmailVerified
	}
	if ident.UserID != userID {
		c.finish(ctx, span, OpConfirmVerify, failure(KindStaleSession, MsgStaleSession, errStale))
		return false
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.finish(ctx, span, OpConfirmVerify, failure(KindStaleSession, MsgStaleSession, errStale))
		return false
	}
	c.snap.IsEmailVerified = ident.EmailVerified
	c.mu.Unlock()
	span.SetAttributes(attribute.Bool("user.email_verified", ident.EmailVerified))

	if ident.EmailVerified {
		if _, err := c.refreshProfile(ctx, epoch, userID); err != nil && !errors.Is(err, profile.ErrNotFound) {
			c.logger.WarnContext(ctx, "refresh profile after verification", "user_id", userID, "error", err)
		}
		c.mu.Lock()
		unknown := c.epoch == epoch && c.snap.OnboardingComplete == nil
		c.mu.Unlock()
		if unknown {
			c.setHint(ctx, epoch, userID, true)
		}
	}
	c.finish(ctx, span, OpConfirmVerify, success(""))
	return ident.EmailVerified
}

// setHint updates and persists the hint. It returns false when the session
// moved on before the update.
func (c *Controller) setHint(ctx context.Context, epoch uint64, userID string, hint bool) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	c.snap.EphemeralNewUserHint = hint
	var stored Hint
	if hint {
		stored = Hint{UserID: userID, SetAt: c.now().UTC()}
		c.storedHint = &stored
	} else {
		c.storedHint = nil
	}
	c.mu.Unlock()

	var err error
	if hint {
		err = c.hints.SaveHint(ctx, stored)
	} else {
		err = c.hints.ClearHint(ctx)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "persist new-user hint", "user_id", userID, "hint", hint, "error", err)
	}
	return true
}

func (c *Controller) publish(ctx context.Context, typ events.Type, userID string, attrs map[string]string) {
	event, err := events.New(typ, userID, c.now(), attrs)
	if err == nil {
		err = c.events.Publish(ctx, event)
	}
	if err != nil {
		c.logger.WarnContext(ctx, "publish event", "type", typ, "user_id", userID, "error", err)
	}
}

func (c *Controller) finish(ctx context.Context, span trace.Span, op string, res Result) Result {
	if res.Success {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, string(res.Kind))
		if res.Err != nil {
			span.RecordError(res.Err)
		}
		c.logger.InfoContext(ctx, "session operation failed", "operation", op, "kind", res.Kind, "error", res.Err)
	}
	if c.recorder != nil {
		c.recorder.RecordOperation(op, res)
	}
	return res
}
