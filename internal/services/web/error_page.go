package web

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/kumia-devs/onboarding/internal/services/web/guard"
	webi18n "github.com/kumia-devs/onboarding/internal/services/web/i18n"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/httpx"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/templates"
)

// basePage builds the layout context without consuming the flash notice.
func (h *handler) basePage(r *http.Request) templates.PageContext {
	loc := webi18n.FromContext(r.Context())
	page := templates.PageContext{
		Lang:         loc.Lang(),
		Loc:          loc,
		CurrentPath:  r.URL.Path,
		CurrentQuery: r.URL.RawQuery,
	}
	if snap, ok := guard.SnapshotFromContext(r.Context()); ok && snap.IsAuthenticated {
		page.SignedIn = true
		page.UserName = snap.DisplayName
		if page.UserName == "" {
			page.UserName = snap.Email
		}
	}
	return page
}

// page builds the layout context and takes the pending flash notice.
func (h *handler) page(w http.ResponseWriter, r *http.Request) templates.PageContext {
	page := h.basePage(r)
	if notice, ok := h.flash.Take(w, r); ok {
		page.Notice = &notice
	}
	return page
}

func (h *handler) render(w http.ResponseWriter, r *http.Request, status int, component templ.Component) {
	if err := httpx.WriteComponent(w, r, status, component); err != nil {
		h.logger.ErrorContext(r.Context(), "render page", "path", r.URL.Path, "error", err)
	}
}

func (h *handler) renderError(w http.ResponseWriter, r *http.Request, status int) {
	h.render(w, r, status, templates.ErrorPage(h.basePage(r), status, templates.ErrorMessageKey(status)))
}

func (h *handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound)
}

// handleLoading answers requests whose session is still resolving. Page
// loads get a self-refreshing placeholder; form posts go back to the root,
// which routes the visitor once the session settles.
func (h *handler) handleLoading(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httpx.WriteRedirect(w, r, routepath.Root)
		return
	}
	h.render(w, r, http.StatusOK, templates.LoadingPage(h.basePage(r)))
}
