package web

import (
	"net/http"
	"strings"

	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/httpx"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/sessioncookie"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/templates"
)

const (
	msgPasswordMismatch  = "auth.error.password_mismatch"
	msgEmailRequired     = "auth.error.email_required"
	msgPasswordRequired  = "auth.error.password_required"
	msgGoogleUnavailable = "auth.error.google_unavailable"
	msgGoogleFailed      = "auth.error.google_failed"
)

func (h *handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, templates.LoginForm{})
}

func (h *handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, form templates.LoginForm) {
	form.GoogleEnabled = h.google != nil
	h.render(w, r, status, templates.LoginPage(h.page(w, r), form))
}

func (h *handler) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest)
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	form := templates.LoginForm{Email: email}
	switch {
	case email == "":
		form.ErrorKey = msgEmailRequired
	case password == "":
		form.ErrorKey = msgPasswordRequired
	}
	if form.ErrorKey != "" {
		h.renderLogin(w, r, http.StatusUnprocessableEntity, form)
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	res := c.SignIn(r.Context(), email, password)
	if !res.Success {
		form.ErrorKey = res.MessageKey
		h.renderLogin(w, r, resultStatus(res), form)
		return
	}
	h.flash.Write(w, r, flash.Success(res.MessageKey))
	h.redirectNext(w, r, c)
}

func (h *handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderRegister(w, r, http.StatusOK, templates.RegisterForm{})
}

func (h *handler) renderRegister(w http.ResponseWriter, r *http.Request, status int, form templates.RegisterForm) {
	form.GoogleEnabled = h.google != nil
	h.render(w, r, status, templates.RegisterPage(h.page(w, r), form))
}

func (h *handler) handleRegisterSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.PostForm.Get("name"))
	email := strings.TrimSpace(r.PostForm.Get("email"))
	password := r.PostForm.Get("password")
	form := templates.RegisterForm{Name: name, Email: email}
	switch {
	case email == "":
		form.ErrorKey = msgEmailRequired
	case password == "":
		form.ErrorKey = msgPasswordRequired
	case password != r.PostForm.Get("password_confirm"):
		form.ErrorKey = msgPasswordMismatch
	}
	if form.ErrorKey != "" {
		h.renderRegister(w, r, http.StatusUnprocessableEntity, form)
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	res := c.SignUp(r.Context(), email, password, name)
	if !res.Success {
		form.ErrorKey = res.MessageKey
		h.renderRegister(w, r, resultStatus(res), form)
		return
	}
	h.flash.Write(w, r, flash.Success(res.MessageKey))
	h.redirectNext(w, r, c)
}

func (h *handler) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.flash.Write(w, r, flash.Error(msgGoogleUnavailable))
		httpx.WriteRedirect(w, r, routepath.Login)
		return
	}
	browserID, _ := sessioncookie.BrowserID(r.Context())
	target, err := h.google.Start(browserID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "start google sign-in", "error", err)
		h.flash.Write(w, r, flash.Error(msgGoogleFailed))
		httpx.WriteRedirect(w, r, routepath.Login)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		h.flash.Write(w, r, flash.Error(msgGoogleUnavailable))
		httpx.WriteRedirect(w, r, routepath.Login)
		return
	}
	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		h.logger.InfoContext(r.Context(), "google sign-in declined", "reason", reason)
		h.flash.Write(w, r, flash.Error(msgGoogleFailed))
		httpx.WriteRedirect(w, r, routepath.Login)
		return
	}
	browserID, _ := sessioncookie.BrowserID(r.Context())
	assertion, err := h.google.Finish(r.Context(), browserID, query.Get("state"), query.Get("code"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "finish google sign-in", "error", err)
		h.flash.Write(w, r, flash.Error(msgGoogleFailed))
		httpx.WriteRedirect(w, r, routepath.Login)
		return
	}

	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	res := c.SignInWithFederatedProvider(r.Context(), assertion)
	if !res.Success {
		h.flash.Write(w, r, flash.Error(res.MessageKey))
		httpx.WriteRedirect(w, r, routepath.Login)
		return
	}
	h.flash.Write(w, r, flash.Success(res.MessageKey))
	h.redirectNext(w, r, c)
}

func (h *handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	res := c.SignOut(r.Context())
	h.flash.Write(w, r, flash.Info(res.MessageKey))
	httpx.WriteRedirect(w, r, routepath.Login)
}
