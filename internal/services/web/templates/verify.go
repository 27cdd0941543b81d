package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
)

// VerifyView is the verify-email screen state.
type VerifyView struct {
	Email    string
	ErrorKey string
	// DevLink is the pending verification link of the in-memory identity
	// provider. Empty otherwise.
	DevLink string
}

// VerifyEmailPage asks the user to open the verification link.
func VerifyEmailPage(page PageContext, view VerifyView) templ.Component {
	return Layout(LayoutOptionsForPage(page, "verify.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="verify">`)
		h.element("h1", "", T(page.Loc, "verify.heading"))
		h.element("p", "", T(page.Loc, "verify.message", view.Email))
		h.element("p", "", T(page.Loc, "verify.instructions"))
		writeFormError(h, page.Loc, view.ErrorKey)

		h.raw(`<form method="post"`)
		h.action(routepath.VerifyEmailConfirm)
		h.raw(`><button type="submit">`)
		h.text(T(page.Loc, "verify.confirm"))
		h.raw("</button></form>")

		h.raw(`<form method="post"`)
		h.action(routepath.VerifyEmailResend)
		h.raw(`><button type="submit" class="secondary">`)
		h.text(T(page.Loc, "verify.resend"))
		h.raw("</button></form>")

		if view.DevLink != "" {
			h.raw(`<p class="dev-hint">`)
			h.text(T(page.Loc, "verify.dev.link") + " ")
			h.raw("<a")
			h.href(view.DevLink)
			h.raw(">")
			h.text(view.DevLink)
			h.raw("</a></p>")
		}
		h.raw("</section>")
		return h.err
	}))
}

// DevVerifyResultPage reports the outcome of a development verification link.
func DevVerifyResultPage(page PageContext, ok bool) templ.Component {
	key := "verify.dev.invalid"
	if ok {
		key = "verify.dev.confirmed"
	}
	return Layout(LayoutOptionsForPage(page, "verify.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="verify">`)
		h.element("p", "", T(page.Loc, key))
		h.raw("<a")
		h.href(routepath.VerifyEmail)
		h.raw(">")
		h.text(T(page.Loc, "core.error.back_home"))
		h.raw("</a></section>")
		return h.err
	}))
}
