package templates

import (
	"github.com/kumia-devs/onboarding/internal/services/web/platform/flash"
)

// AppNameKey localizes the product name.
const AppNameKey = "core.app_name"

// PageContext provides shared layout context for pages.
type PageContext struct {
	Lang         string
	Loc          Localizer
	CurrentPath  string
	CurrentQuery string
	SignedIn     bool
	UserName     string
	// Notice is the one-time flash message taken for this render.
	Notice *flash.Notice
}

func (p PageContext) appName() string {
	return T(p.Loc, AppNameKey)
}
