package templates

import (
	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
	"golang.org/x/text/message"
)

type LayoutOptions struct {
	Title        string
	Lang         string
	AppName      string
	Loc          Localizer
	CurrentPath  string
	CurrentQuery string
	SignedIn     bool
	UserName     string
	Notice       *flash.Notice
	MainClass    string
	// RefreshSeconds adds a meta refresh when positive.
	RefreshSeconds int
}

// LayoutOptionsForPage builds the shared layout options from a page context and title key.
func LayoutOptionsForPage(page PageContext, titleKey message.Reference) LayoutOptions {
	return LayoutOptions{
		Title:        T(page.Loc, titleKey),
		Lang:         normalizeTag(page.Lang).String(),
		AppName:      page.appName(),
		Loc:          page.Loc,
		CurrentPath:  page.CurrentPath,
		CurrentQuery: page.CurrentQuery,
		SignedIn:     page.SignedIn,
		UserName:     page.UserName,
		Notice:       page.Notice,
	}
}
