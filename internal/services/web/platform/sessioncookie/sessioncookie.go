// Package sessioncookie issues and reads the browser session cookie that
// scopes server-side session state.
package sessioncookie

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kumia-devs/onboarding/internal/platform/id"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/requestmeta"
)

// Name is the browser session cookie name.
const Name = "kumia_session"

// Jar describes how the cookie is scoped.
type Jar struct {
	Policy requestmeta.Policy
	// Domain is left empty to produce a host-only cookie.
	Domain string
	// MaxAge of zero issues a browser-session cookie.
	MaxAge time.Duration
}

// Read returns the browser id when the cookie carries a well-formed one.
func (j Jar) Read(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(Name)
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if !id.Valid(value) {
		return "", false
	}
	return value, true
}

// Write sets the cookie to browserID.
func (j Jar) Write(w http.ResponseWriter, r *http.Request, browserID string) {
	if w == nil {
		return
	}
	cookie := j.cookie(r, browserID)
	if j.MaxAge > 0 {
		cookie.MaxAge = int(j.MaxAge / time.Second)
	}
	http.SetCookie(w, cookie)
}

// Clear expires the cookie.
func (j Jar) Clear(w http.ResponseWriter, r *http.Request) {
	if w == nil {
		return
	}
	cookie := j.cookie(r, "")
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func (j Jar) cookie(r *http.Request, value string) *http.Cookie {
	return &http.Cookie{
		Name:     Name,
		Value:    value,
		Path:     "/",
		Domain:   j.Domain,
		HttpOnly: true,
		Secure:   j.Policy.IsHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	}
}

type browserKey struct{}

// WithBrowserID stores the browser id on ctx.
func WithBrowserID(ctx context.Context, browserID string) context.Context {
	return context.WithValue(ctx, browserKey{}, browserID)
}

// BrowserID returns the browser id stored by Ensure.
func BrowserID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(browserKey{}).(string)
	return value, ok && value != ""
}

// Ensure issues a fresh browser id to requests that arrive without one.
func (j Jar) Ensure(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			browserID, ok := j.Read(r)
			if !ok {
				issued, err := id.NewID()
				if err != nil {
					if logger != nil {
						logger.ErrorContext(r.Context(), "issue browser session", "error", err)
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				browserID = issued
				j.Write(w, r, browserID)
			}
			next.ServeHTTP(w, r.WithContext(WithBrowserID(r.Context(), browserID)))
		})
	}
}
