package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
)

// Layout wraps body in the document shell: head, header with the language
// switcher and sign-out, and the pending notice.
func Layout(opts LayoutOptions, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw("<!DOCTYPE html><html")
		h.attr("lang", opts.Lang)
		h.raw(`><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		if opts.RefreshSeconds > 0 {
			h.raw(`<meta http-equiv="refresh"`)
			h.attr("content", strconv.Itoa(opts.RefreshSeconds))
			h.raw(">")
		}
		h.open("title", "")
		if opts.Title != "" && opts.Title != opts.AppName {
			h.text(opts.Title + " · ")
		}
		h.text(opts.AppName)
		h.close("title")
		h.raw(`<link rel="stylesheet"`)
		h.href(routepath.Static + "app.css")
		h.raw(`><script defer`)
		h.attr("src", routepath.Static+"app.js")
		h.raw("></script></head><body>")

		writeHeader(h, opts)

		h.raw("<main")
		if opts.MainClass != "" {
			h.attr("class", opts.MainClass)
		}
		h.raw(">")
		writeNotice(h, opts.Loc, opts.Notice)
		h.component(body)
		h.raw("</main></body></html>")
		return h.err
	})
}

func writeHeader(h *htmlWriter, opts LayoutOptions) {
	page := PageContext{Lang: opts.Lang, Loc: opts.Loc, CurrentPath: opts.CurrentPath, CurrentQuery: opts.CurrentQuery}
	h.raw(`<header class="site-header"><div><a class="brand"`)
	h.href(routepath.Root)
	h.raw(">")
	h.text(opts.AppName)
	h.raw("</a>")
	h.element("span", "slogan", T(opts.Loc, "core.slogan"))
	h.raw("</div><nav")
	h.attr("aria-label", T(opts.Loc, "core.lang.label"))
	h.raw(">")
	for _, option := range LanguageOptions(page) {
		h.raw("<a")
		h.href(option.URL)
		h.attr("hreflang", option.Tag)
		if option.Active {
			h.attr("aria-current", "true")
		}
		h.raw(">")
		h.text(option.Label)
		h.raw("</a>")
	}
	if opts.SignedIn {
		h.raw(`<form method="post"`)
		h.action(routepath.Logout)
		h.raw(`><button type="submit" class="secondary">`)
		h.text(T(opts.Loc, "core.sign_out"))
		h.raw("</button></form>")
	}
	h.raw("</nav></header>")
}

func writeNotice(h *htmlWriter, loc Localizer, notice *flash.Notice) {
	if notice == nil || notice.Key == "" {
		return
	}
	role := "status"
	if notice.Kind == flash.KindError {
		role = "alert"
	}
	h.raw("<div")
	h.attr("class", "notice notice-"+string(notice.Kind))
	h.attr("role", role)
	h.raw(">")
	h.text(T(loc, notice.Key))
	h.raw("</div>")
}
