// Package i18n resolves the visitor's language and prints localized copy
// from the embedded catalogs.
package i18n

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/kumia-devs/onboarding/internal/platform/i18n/catalog"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/requestmeta"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "kumia_lang"
)

var (
	supported = []language.Tag{language.Spanish, language.English, language.Portuguese}
	matcher   = language.NewMatcher(supported)
)

// Supported returns the supported language tags, default first.
func Supported() []language.Tag {
	return append([]language.Tag(nil), supported...)
}

// Default returns the default language tag.
func Default() language.Tag {
	return supported[0]
}

// Match maps tags onto the closest supported language.
func Match(tags ...language.Tag) language.Tag {
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return Default()
	}
	return supported[idx]
}

// Parse maps a raw language value onto a supported tag.
func Parse(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	_, idx, confidence := matcher.Match(tag)
	if confidence < language.High {
		return language.Und, false
	}
	return supported[idx], true
}

// ResolveTag determines the best language tag for the request.
// The bool indicates whether the lang query param should be persisted as a cookie.
func ResolveTag(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return Default(), false
	}
	if tag, ok := Parse(r.URL.Query().Get(LangParam)); ok {
		return tag, true
	}
	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := Parse(cookie.Value); ok {
			return tag, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			return Match(tags...), false
		}
	}
	return Default(), false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, r *http.Request, policy requestmeta.Policy, tag language.Tag) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    tag.String(),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		Secure:   r != nil && policy.IsHTTPS(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// Localizer prints catalog messages in one language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// For returns a Localizer for tag.
func For(tag language.Tag) Localizer {
	catalog.Default()
	return Localizer{tag: tag, printer: message.NewPrinter(tag)}
}

// T prints the message for key with args. Unknown keys print as-is.
func (l Localizer) T(key string, args ...any) string {
	if l.printer == nil {
		l = For(Default())
	}
	return l.printer.Sprintf(key, args...)
}

// Sprintf lets a Localizer stand in for a *message.Printer.
func (l Localizer) Sprintf(key message.Reference, args ...any) string {
	if l.printer == nil {
		l = For(Default())
	}
	return l.printer.Sprintf(key, args...)
}

// Lang returns the language tag string, e.g. "es".
func (l Localizer) Lang() string {
	if l.printer == nil {
		return Default().String()
	}
	return l.tag.String()
}

type contextKey struct{}

// WithLocalizer returns ctx carrying l.
func WithLocalizer(ctx context.Context, l Localizer) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// FromContext returns the request Localizer, or one for the default
// language.
func FromContext(ctx context.Context) Localizer {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(Localizer); ok {
			return l
		}
	}
	return For(Default())
}

// Middleware resolves the request language, persists an explicit choice
// and puts the Localizer on the request context.
func Middleware(policy requestmeta.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag, persist := ResolveTag(r)
			if persist {
				SetLanguageCookie(w, r, policy, tag)
			}
			w.Header().Set("Content-Language", tag.String())
			next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), For(tag))))
		})
	}
}
