// Package routepath stores canonical HTTP paths for the web service.
package routepath

import "github.com/kumia-devs/onboarding/internal/services/web/navigation"

const (
	Root               = "/"
	Login              = "/login"
	Register           = "/register"
	Logout             = "/logout"
	GoogleStart        = "/auth/google/start"
	GoogleCallback     = "/auth/google/callback"
	VerifyEmail        = "/verify-email"
	VerifyEmailResend  = "/verify-email/resend"
	VerifyEmailConfirm = "/verify-email/confirm"
	Onboarding         = "/onboarding"
	OnboardingAnswer   = "/onboarding/answer"
	OnboardingBack     = "/onboarding/back"
	OnboardingComplete = "/onboarding/complete"
	Dashboard          = "/dashboard"
	Health             = "/up"
	Metrics            = "/metrics"
	DevVerifyEmail     = "/dev/verify-email"
	Static             = "/static/"
)

// ForScreen returns the canonical path of screen.
func ForScreen(screen navigation.Screen) string {
	switch screen {
	case navigation.ScreenLogin:
		return Login
	case navigation.ScreenRegister:
		return Register
	case navigation.ScreenVerifyEmail:
		return VerifyEmail
	case navigation.ScreenOnboarding:
		return Onboarding
	case navigation.ScreenDashboard:
		return Dashboard
	default:
		return Login
	}
}
