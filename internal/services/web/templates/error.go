package templates

import (
	"context"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
)

const (
	errorTitleKey       = "core.error.title"
	errorGenericKey     = "core.error.generic"
	errorNotFoundKey    = "core.error.not_found"
	errorForbiddenKey   = "core.error.forbidden"
	errorRateLimitedKey = "core.error.rate_limited"
	errorUnavailableKey = "core.error.unavailable"
	errorBackHomeKey    = "core.error.back_home"
)

// ErrorMessageKey returns the message key shown for statusCode.
func ErrorMessageKey(statusCode int) string {
	switch statusCode {
	case http.StatusNotFound:
		return errorNotFoundKey
	case http.StatusForbidden:
		return errorForbiddenKey
	case http.StatusTooManyRequests:
		return errorRateLimitedKey
	case http.StatusServiceUnavailable:
		return errorUnavailableKey
	default:
		return errorGenericKey
	}
}

// ErrorPage renders a failure. messageKey overrides the status default.
func ErrorPage(page PageContext, statusCode int, messageKey string) templ.Component {
	if messageKey == "" {
		messageKey = ErrorMessageKey(statusCode)
	}
	opts := LayoutOptionsForPage(page, errorTitleKey)
	opts.Notice = nil
	return Layout(opts, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="error">`)
		h.element("h1", "", T(page.Loc, errorTitleKey))
		h.element("p", "", T(page.Loc, messageKey))
		h.raw("<a")
		h.href(routepath.Root)
		h.raw(">")
		h.text(T(page.Loc, errorBackHomeKey))
		h.raw("</a></section>")
		return h.err
	}))
}
