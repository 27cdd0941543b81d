package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

// ErrBrowserIDRequired is returned when a call carries an empty browser id.
var ErrBrowserIDRequired = errors.New("browser id is required")

// Store persists token records and new-user hints per browser.
type Store interface {
	identity.TokenStore
	LoadHint(ctx context.Context, browserID string) (session.Hint, bool, error)
	SaveHint(ctx context.Context, browserID string, hint session.Hint) error
	ClearHint(ctx context.Context, browserID string) error
	Close() error
}

// BindHints scopes the hint methods of store to one browser.
func BindHints(store Store, browserID string) session.HintStore {
	return boundHints{store: store, browserID: browserID}
}

type boundHints struct {
	store     Store
	browserID string
}

func (b boundHints) LoadHint(ctx context.Context) (session.Hint, bool, error) {
	return b.store.LoadHint(ctx, b.browserID)
}

func (b boundHints) SaveHint(ctx context.Context, hint session.Hint) error {
	return b.store.SaveHint(ctx, b.browserID, hint)
}

func (b boundHints) ClearHint(ctx context.Context) error {
	return b.store.ClearHint(ctx, b.browserID)
}

// NormalizeBrowserID trims browserID and rejects empty values.
func NormalizeBrowserID(browserID string) (string, error) {
	browserID = strings.TrimSpace(browserID)
	if browserID == "" {
		return "", ErrBrowserIDRequired
	}
	return browserID, nil
}
