package session

import (
	"errors"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
)

// Kind classifies a failed operation.
type Kind string

const (
	KindNone               Kind = ""
	KindCredential         Kind = "credential"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindNetwork            Kind = "network"
	KindProfileWrite       Kind = "profile_write"
	KindNotAuthenticated   Kind = "not_authenticated"
	KindStaleSession       Kind = "stale_session"
	KindRateLimited        Kind = "rate_limited"
	KindUnknown            Kind = "unknown"
)

// Result is the outcome of a controller operation. MessageKey is a
// localization key for the message shown to the user.
type Result struct {
	Success    bool
	Kind       Kind
	MessageKey string
	Err        error
}

// Message keys produced by the controller.
const (
	MsgSignUpSuccess        = "auth.signup.success"
	MsgSignInSuccess        = "auth.signin.success"
	MsgSignOutSuccess       = "auth.signout.success"
	MsgVerificationSent     = "verify.resend.success"
	MsgOnboardingComplete   = "onboarding.complete.success"
	MsgEmailInUse           = "auth.error.email_in_use"
	MsgWeakPassword         = "auth.error.weak_password"
	MsgInvalidEmail         = "auth.error.invalid_email"
	MsgUserNotFound         = "auth.error.user_not_found"
	MsgWrongPassword        = "auth.error.wrong_password"
	MsgInvalidCredentials   = "auth.error.invalid_credentials"
	MsgUserDisabled         = "auth.error.user_disabled"
	MsgTooManyRequests      = "auth.error.too_many_requests"
	MsgNetwork              = "auth.error.network"
	MsgUnsupported          = "auth.error.unsupported"
	MsgUnknown              = "auth.error.unknown"
	MsgProfileUnavailable   = "auth.error.profile_unavailable"
	MsgNotAuthenticated     = "auth.error.not_authenticated"
	MsgStaleSession         = "auth.error.stale_session"
	MsgOnboardingSaveFailed = "onboarding.error.save_failed"
	MsgOnboardingUnconfirm  = "onboarding.error.not_confirmed"
)

func success(key string) Result {
	return Result{Success: true, MessageKey: key}
}

func failure(kind Kind, key string, err error) Result {
	return Result{Kind: kind, MessageKey: key, Err: err}
}

var codeMessages = map[string]string{
	identity.CodeEmailInUse:        MsgEmailInUse,
	identity.CodeWeakPassword:      MsgWeakPassword,
	identity.CodeInvalidEmail:      MsgInvalidEmail,
	identity.CodeUserNotFound:      MsgUserNotFound,
	identity.CodeWrongPassword:     MsgWrongPassword,
	identity.CodeInvalidCredential: MsgInvalidCredentials,
	identity.CodeUserDisabled:      MsgUserDisabled,
	identity.CodeTooManyRequests:   MsgTooManyRequests,
	identity.CodeNetworkFailed:     MsgNetwork,
}

// fromIdentityError classifies a provider failure. signIn widens credential
// rejections to invalid credentials, since sign-in never reports input
// problems separately from a failed match.
func fromIdentityError(err error, signIn bool) Result {
	key := codeMessages[identity.CodeOf(err)]
	switch identity.KindOf(err) {
	case identity.KindCredential:
		if key == "" {
			key = MsgInvalidEmail
		}
		if signIn {
			return failure(KindInvalidCredentials, key, err)
		}
		return failure(KindCredential, key, err)
	case identity.KindInvalidCredentials, identity.KindTokenExpired, identity.KindNoSession:
		if key == "" {
			key = MsgInvalidCredentials
		}
		return failure(KindInvalidCredentials, key, err)
	case identity.KindTooManyAttempts:
		return failure(KindRateLimited, MsgTooManyRequests, err)
	case identity.KindNetwork:
		return failure(KindNetwork, MsgNetwork, err)
	case identity.KindUnsupported:
		return failure(KindCredential, MsgUnsupported, err)
	}
	if errors.Is(err, errStale) {
		return failure(KindStaleSession, MsgStaleSession, err)
	}
	return failure(KindUnknown, MsgUnknown, err)
}

var errStale = errors.New("session changed while the operation was in flight")
