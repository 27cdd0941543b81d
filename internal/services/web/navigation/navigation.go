// Package navigation decides which screen a visitor sees given their
// session state.
package navigation

import "github.com/kumia-devs/onboarding/internal/services/web/session"

// Screen is a routable screen.
type Screen string

const (
	ScreenLogin       Screen = "login"
	ScreenRegister    Screen = "register"
	ScreenVerifyEmail Screen = "verify-email"
	ScreenOnboarding  Screen = "onboarding"
	ScreenDashboard   Screen = "dashboard"
)

// Screens lists every screen in a stable order.
var Screens = []Screen{ScreenLogin, ScreenRegister, ScreenVerifyEmail, ScreenOnboarding, ScreenDashboard}

// Access is the onboarding gate a screen applies on top of auth and
// verification.
type Access int

const (
	AccessAny Access = iota
	// AccessNewUser admits only users who still have to onboard.
	AccessNewUser
	// AccessExistingUser admits only users who finished onboarding.
	AccessExistingUser
)

// Requirement is what a screen demands of the session.
type Requirement struct {
	Public        bool
	NeedsAuth     bool
	NeedsVerified bool
	Access        Access
}

// RequirementFor returns the requirement of screen. Unknown screens require
// authentication.
func RequirementFor(screen Screen) Requirement {
	switch screen {
	case ScreenLogin, ScreenRegister:
		return Requirement{Public: true}
	case ScreenVerifyEmail:
		return Requirement{NeedsAuth: true}
	case ScreenOnboarding:
		return Requirement{NeedsAuth: true, NeedsVerified: true, Access: AccessNewUser}
	case ScreenDashboard:
		return Requirement{NeedsAuth: true, NeedsVerified: true, Access: AccessExistingUser}
	default:
		return Requirement{NeedsAuth: true}
	}
}

// Outcome is what the guard does with a request.
type Outcome int

const (
	OutcomeLoading Outcome = iota
	OutcomeRender
	OutcomeRedirect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLoading:
		return "loading"
	case OutcomeRender:
		return "render"
	case OutcomeRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision is the result of Decide. Target is set for redirects.
type Decision struct {
	Outcome Outcome
	Target  Screen
}

// Loading, Render and RedirectTo build decisions.
func Loading() Decision                 { return Decision{Outcome: OutcomeLoading} }
func Render() Decision                  { return Decision{Outcome: OutcomeRender} }
func RedirectTo(target Screen) Decision { return Decision{Outcome: OutcomeRedirect, Target: target} }

// Decide returns the decision for a visitor in state s asking for screen.
// Rules apply in order and the first match wins:
//
//  1. a loading (or malformed) snapshot shows the loading state;
//  2. a signed-in visitor on a public screen is sent to Next(s);
//  3. auth-only screens send anonymous visitors to login;
//  4. verified-only screens send unverified users to verify-email;
//  5. onboarding sends users who are not new to the dashboard;
//  6. the dashboard sends new users to onboarding;
//  7. otherwise the screen renders.
func Decide(s session.Snapshot, screen Screen) Decision {
	if s.IsLoading || s.Validate() != nil {
		return Loading()
	}
	req := RequirementFor(screen)
	if req.Public {
		if s.IsAuthenticated {
			return RedirectTo(Next(s))
		}
		return Render()
	}
	if req.NeedsAuth && !s.IsAuthenticated {
		return RedirectTo(ScreenLogin)
	}
	if req.NeedsVerified && !s.IsEmailVerified {
		return RedirectTo(ScreenVerifyEmail)
	}
	switch req.Access {
	case AccessNewUser:
		if !s.IsNewUser() {
			return RedirectTo(ScreenDashboard)
		}
	case AccessExistingUser:
		if s.IsNewUser() {
			return RedirectTo(ScreenOnboarding)
		}
	}
	return Render()
}

// Next is the screen a signed-in user belongs on: verify-email until
// verified, then onboarding for new users, else the dashboard. Anonymous
// visitors belong on login.
func Next(s session.Snapshot) Screen {
	switch {
	case !s.IsAuthenticated:
		return ScreenLogin
	case !s.IsEmailVerified:
		return ScreenVerifyEmail
	case s.IsNewUser():
		return ScreenOnboarding
	default:
		return ScreenDashboard
	}
}
