package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
)

// LoginForm is the submitted or empty sign-in form.
type LoginForm struct {
	Email         string
	ErrorKey      string
	GoogleEnabled bool
}

// RegisterForm is the submitted or empty sign-up form.
type RegisterForm struct {
	Name          string
	Email         string
	ErrorKey      string
	GoogleEnabled bool
}

// LoginPage renders the sign-in screen.
func LoginPage(page PageContext, form LoginForm) templ.Component {
	return Layout(LayoutOptionsForPage(page, "auth.login.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="auth">`)
		h.element("h1", "", T(page.Loc, "auth.login.heading"))
		h.element("p", "", T(page.Loc, "auth.login.subheading"))
		writeFormError(h, page.Loc, form.ErrorKey)
		h.raw(`<form method="post"`)
		h.action(routepath.Login)
		h.raw(">")
		writeInput(h, "email", "email", T(page.Loc, "auth.login.email"), form.Email, "email")
		writeInput(h, "password", "password", T(page.Loc, "auth.login.password"), "", "current-password")
		h.raw(`<button type="submit">`)
		h.text(T(page.Loc, "auth.login.submit"))
		h.raw("</button></form>")
		if form.GoogleEnabled {
			writeGoogle(h, page.Loc)
		}
		h.raw("<p>")
		h.text(T(page.Loc, "auth.login.no_account") + " ")
		h.raw("<a")
		h.href(routepath.Register)
		h.raw(">")
		h.text(T(page.Loc, "auth.login.register_link"))
		h.raw("</a></p></section>")
		return h.err
	}))
}

// RegisterPage renders the sign-up screen.
func RegisterPage(page PageContext, form RegisterForm) templ.Component {
	return Layout(LayoutOptionsForPage(page, "auth.register.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="auth">`)
		h.element("h1", "", T(page.Loc, "auth.register.heading"))
		writeFormError(h, page.Loc, form.ErrorKey)
		h.raw(`<form method="post"`)
		h.action(routepath.Register)
		h.raw(">")
		writeInput(h, "text", "name", T(page.Loc, "auth.register.name"), form.Name, "name")
		writeInput(h, "email", "email", T(page.Loc, "auth.register.email"), form.Email, "email")
		writeInput(h, "password", "password", T(page.Loc, "auth.register.password"), "", "new-password")
		writeInput(h, "password", "password_confirm", T(page.Loc, "auth.register.password_confirm"), "", "new-password")
		h.raw(`<button type="submit">`)
		h.text(T(page.Loc, "auth.register.submit"))
		h.raw("</button></form>")
		if form.GoogleEnabled {
			writeGoogle(h, page.Loc)
		}
		h.raw("<p>")
		h.text(T(page.Loc, "auth.register.has_account") + " ")
		h.raw("<a")
		h.href(routepath.Login)
		h.raw(">")
		h.text(T(page.Loc, "auth.register.login_link"))
		h.raw("</a></p></section>")
		return h.err
	}))
}

func writeGoogle(h *htmlWriter, loc Localizer) {
	h.element("p", "divider", T(loc, "auth.login.divider"))
	h.raw(`<a class="button secondary"`)
	h.href(routepath.GoogleStart)
	h.raw(">")
	h.text(T(loc, "auth.login.google"))
	h.raw("</a>")
}

func writeInput(h *htmlWriter, inputType, name, label, value, autocomplete string) {
	h.raw(`<div class="field"><label`)
	h.attr("for", name)
	h.raw(">")
	h.text(label)
	h.raw("</label><input")
	h.attr("type", inputType)
	h.attr("id", name)
	h.attr("name", name)
	if value != "" {
		h.attr("value", value)
	}
	h.attr("autocomplete", autocomplete)
	h.raw(" required></div>")
}

func writeFormError(h *htmlWriter, loc Localizer, key string) {
	if text := formErrorText(loc, key); text != "" {
		h.raw(`<p class="form-error" role="alert">`)
		h.text(text)
		h.raw("</p>")
	}
}
