package routepath

import (
	"testing"

	"github.com/kumia-devs/onboarding/internal/services/web/navigation"
)

func TestForScreen(t *testing.T) {
	t.Parallel()

	want := map[navigation.Screen]string{
		navigation.ScreenLogin:       "/login",
		navigation.ScreenRegister:    "/register",
		navigation.ScreenVerifyEmail: "/verify-email",
		navigation.ScreenOnboarding:  "/onboarding",
		navigation.ScreenDashboard:   "/dashboard",
	}
	for _, screen := range navigation.Screens {
		if got := ForScreen(screen); got != want[screen] {
			t.Fatalf("ForScreen(%q) = %q, want %q", screen, got, want[screen])
		}
	}
	if got := ForScreen("settings"); got != Login {
		t.Fatalf("ForScreen(unknown) = %q, want %q", got, Login)
	}
}
