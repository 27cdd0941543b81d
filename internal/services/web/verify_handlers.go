package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/kumia-devs/onboarding/internal/services/web/guard"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/httpx"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/templates"
)

const (
	msgVerifyConfirmed = "verify.confirmed"
	msgVerifyPending   = "verify.pending"
	devCodeParam       = "code"
)

func (h *handler) handleVerifyPage(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	view := templates.VerifyView{Email: snap.Email}
	if h.devVerify != nil && !snap.IsEmailVerified {
		if code, ok := h.devVerify.PendingCode(snap.Email); ok {
			view.DevLink = routepath.DevVerifyEmail + "?" + url.Values{devCodeParam: {code}}.Encode()
		}
	}
	h.render(w, r, http.StatusOK, templates.VerifyEmailPage(h.page(w, r), view))
}

func (h *handler) handleVerifyResend(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	res := c.RequestEmailVerification(r.Context())
	if res.Success {
		h.flash.Write(w, r, flash.Success(res.MessageKey))
	} else {
		h.flash.Write(w, r, flash.Error(res.MessageKey))
	}
	httpx.WriteRedirect(w, r, routepath.VerifyEmail)
}

// handleVerifyConfirm is the "I've verified" action: it re-reads the
// provider and moves the user on only once the flag is set.
func (h *handler) handleVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	c, ok := h.controller(w, r)
	if !ok {
		return
	}
	if !c.ConfirmVerificationAndRefresh(r.Context()) {
		h.flash.Write(w, r, flash.Info(msgVerifyPending))
		httpx.WriteRedirect(w, r, routepath.VerifyEmail)
		return
	}
	h.flash.Write(w, r, flash.Success(msgVerifyConfirmed))
	h.redirectNext(w, r, c)
}

// handleDevVerify redeems a verification code of the in-memory identity
// provider.
func (h *handler) handleDevVerify(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.URL.Query().Get(devCodeParam))
	confirmed := code != "" && h.devVerify.ConfirmEmail(code) == nil
	status := http.StatusOK
	if !confirmed {
		status = http.StatusBadRequest
	}
	h.render(w, r, status, templates.DevVerifyResultPage(h.basePage(r), confirmed))
}
