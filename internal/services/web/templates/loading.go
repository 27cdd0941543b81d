package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// LoadingRefreshSeconds is how often the loading page re-asks the guard.
const LoadingRefreshSeconds = 1

// LoadingPage is the neutral page served while the session is unresolved.
// It reloads itself and never reveals a protected screen.
func LoadingPage(page PageContext) templ.Component {
	opts := LayoutOptionsForPage(page, "core.loading.title")
	opts.RefreshSeconds = LoadingRefreshSeconds
	opts.MainClass = "loading"
	opts.Notice = nil
	return Layout(opts, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section aria-busy="true">`)
		h.element("h1", "", T(page.Loc, "core.loading.title"))
		h.element("p", "", T(page.Loc, "core.loading.message"))
		h.raw("<a")
		h.href(LanguageURL(page, normalizeTag(page.Lang).String()))
		h.raw(">")
		h.text(T(page.Loc, "core.loading.retry"))
		h.raw("</a></section>")
		return h.err
	}))
}
