package templates

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
	"github.com/kumia-devs/onboarding/internal/services/web/questionnaire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/message"
)

type echoLocalizer struct{}

func (echoLocalizer) Sprintf(key message.Reference, _ ...any) string {
	s, _ := key.(string)
	return s
}

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

func testPage() PageContext {
	return PageContext{Lang: "en", Loc: echoLocalizer{}, CurrentPath: "/login"}
}

func TestLayoutWritesShellAndNotice(t *testing.T) {
	page := testPage()
	page.SignedIn = true
	page.Notice = &flash.Notice{Kind: flash.KindError, Key: "auth.error.network"}

	html := render(t, LoginPage(page, LoginForm{}))

	assert.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	assert.Contains(t, html, `<html lang="en">`)
	assert.Contains(t, html, `class="notice notice-error" role="alert"`)
	assert.Contains(t, html, "auth.error.network")
	assert.Contains(t, html, `action="/logout"`)
	assert.Contains(t, html, `hreflang="pt"`)
}

func TestLoginPageEscapesInput(t *testing.T) {
	html := render(t, LoginPage(testPage(), LoginForm{Email: `"><script>x</script>`, ErrorKey: "auth.error.invalid_credentials"}))

	assert.NotContains(t, html, "<script>x</script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, `class="form-error"`)
	assert.NotContains(t, html, "/auth/google/start")
}

func TestRegisterPageOffersGoogleWhenEnabled(t *testing.T) {
	html := render(t, RegisterPage(testPage(), RegisterForm{Name: "Ana", GoogleEnabled: true}))

	assert.Contains(t, html, `href="/auth/google/start"`)
	assert.Contains(t, html, `name="password_confirm"`)
	assert.Contains(t, html, `value="Ana"`)
}

func TestVerifyEmailPageShowsDevLink(t *testing.T) {
	html := render(t, VerifyEmailPage(testPage(), VerifyView{Email: "a@b.co", DevLink: "/dev/verify-email?code=abc"}))

	assert.Contains(t, html, `action="/verify-email/confirm"`)
	assert.Contains(t, html, `action="/verify-email/resend"`)
	assert.Contains(t, html, `href="/dev/verify-email?code=abc"`)

	html = render(t, VerifyEmailPage(testPage(), VerifyView{Email: "a@b.co"}))
	assert.NotContains(t, html, "dev-hint")
}

func TestLoadingPageRefreshesAndHidesNotice(t *testing.T) {
	page := testPage()
	page.Notice = &flash.Notice{Kind: flash.KindSuccess, Key: "auth.signin.success"}

	html := render(t, LoadingPage(page))

	assert.Contains(t, html, `http-equiv="refresh" content="1"`)
	assert.NotContains(t, html, "auth.signin.success")
}

func TestErrorPageMessageByStatus(t *testing.T) {
	assert.Equal(t, "core.error.not_found", ErrorMessageKey(http.StatusNotFound))
	assert.Equal(t, "core.error.rate_limited", ErrorMessageKey(http.StatusTooManyRequests))
	assert.Equal(t, "core.error.generic", ErrorMessageKey(http.StatusTeapot))

	html := render(t, ErrorPage(testPage(), http.StatusForbidden, ""))
	assert.Contains(t, html, "core.error.forbidden")
}

func TestOnboardingPageRendersEveryKind(t *testing.T) {
	catalog, err := questionnaire.Default()
	require.NoError(t, err)

	for i := 0; i < catalog.Len(); i++ {
		q := catalog.Question(i)
		html := render(t, OnboardingPage(testPage(), OnboardingView{
			Question:  q,
			Index:     i,
			Total:     catalog.Len(),
			Countries: catalog.Countries,
		}))
		assert.Contains(t, html, `value="`+q.ID+`"`, q.ID)
		assert.Contains(t, html, q.Prompt.In("en"), q.ID)
		if i == 0 {
			assert.NotContains(t, html, `action="/onboarding/back"`)
		} else {
			assert.Contains(t, html, `action="/onboarding/back"`)
		}
		if i == catalog.Len()-1 {
			assert.Contains(t, html, "onboarding.finish")
		}
	}
}

func TestOnboardingPagePrefillsAnswers(t *testing.T) {
	catalog, err := questionnaire.Default()
	require.NoError(t, err)

	q, idx, ok := catalog.Lookup("restaurant_location")
	require.True(t, ok)
	html := render(t, OnboardingPage(testPage(), OnboardingView{
		Question:  q,
		Index:     idx,
		Total:     catalog.Len(),
		Answer:    questionnaire.LocationAnswer{Country: catalog.Countries[0].Value, City: "Lima"},
		Countries: catalog.Countries,
	}))
	assert.Contains(t, html, `value="`+catalog.Countries[0].Value+`" selected`)
	assert.Contains(t, html, `value="Lima"`)

	q, idx, ok = catalog.Lookup("average_ticket")
	require.True(t, ok)
	html = render(t, OnboardingPage(testPage(), OnboardingView{
		Question: q,
		Index:    idx,
		Total:    catalog.Len(),
		Answer:   questionnaire.NumberAnswer{Value: 25},
	}))
	assert.Contains(t, html, `value="25"`)
	assert.Contains(t, html, `min="5"`)
	assert.Contains(t, html, `step="5"`)
}

func TestDashboardPageShowsCompletion(t *testing.T) {
	html := render(t, DashboardPage(testPage(), DashboardView{Name: "Ana", Email: "a@b.co", JustCompleted: true}))
	assert.Contains(t, html, "onboarding.completion.title")

	html = render(t, DashboardPage(testPage(), DashboardView{Name: "Ana"}))
	assert.NotContains(t, html, "onboarding.completion.title")
}
