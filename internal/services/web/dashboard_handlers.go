package web

import (
	"net/http"

	"github.com/kumia-devs/onboarding/internal/services/web/guard"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	"github.com/kumia-devs/onboarding/internal/services/web/templates"
)

func (h *handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap, _ := guard.SnapshotFromContext(r.Context())
	page := h.page(w, r)
	view := templates.DashboardView{
		Name:          snap.DisplayName,
		Email:         snap.Email,
		JustCompleted: page.Notice != nil && page.Notice.Key == session.MsgOnboardingComplete,
	}
	if p, err := h.profiles.GetProfile(r.Context(), snap.UserID); err != nil {
		h.logger.WarnContext(r.Context(), "load dashboard profile", "user_id", snap.UserID, "error", err)
	} else {
		if p.Name != "" {
			view.Name = p.Name
		}
		view.Stars = p.WalletStars
	}
	if view.Name == "" {
		view.Name = snap.Email
	}
	h.render(w, r, http.StatusOK, templates.DashboardPage(page, view))
}
