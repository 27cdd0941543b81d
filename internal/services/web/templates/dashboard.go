package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

type DashboardView struct {
	Name  string
	Email string
	Stars int
	// JustCompleted shows the onboarding completion message.
	JustCompleted bool
}

// DashboardPage is the landing screen after onboarding.
func DashboardPage(page PageContext, view DashboardView) templ.Component {
	return Layout(LayoutOptionsForPage(page, "dashboard.title"), templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="dashboard">`)
		h.element("h1", "", T(page.Loc, "dashboard.welcome", view.Name))
		if view.JustCompleted {
			h.element("h2", "", T(page.Loc, "onboarding.completion.title"))
			h.element("p", "", T(page.Loc, "onboarding.completion.message"))
		}
		h.element("p", "", T(page.Loc, "dashboard.coming_soon"))
		h.raw("<ul>")
		h.element("li", "", T(page.Loc, "dashboard.email", view.Email))
		h.element("li", "", T(page.Loc, "dashboard.stars", view.Stars))
		h.raw("</ul></section>")
		return h.err
	}))
}
