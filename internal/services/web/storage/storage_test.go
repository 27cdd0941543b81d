package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
)

func TestMemoryStoreTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, ok, err := store.LoadTokens(ctx, "browser-1"); err != nil || ok {
		t.Fatalf("expected empty store, got ok=%v err=%v", ok, err)
	}
	record := identity.Record{
		UserID:    "user-1",
		Tokens:    identity.Tokens{IDToken: "id", RefreshToken: "refresh", ExpiresAt: time.Unix(100, 0)},
		UpdatedAt: time.Unix(50, 0),
	}
	if err := store.SaveTokens(ctx, " browser-1 ", record); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := store.LoadTokens(ctx, "browser-1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.UserID != "user-1" || got.Tokens.RefreshToken != "refresh" {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := store.DeleteTokens(ctx, "browser-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.LoadTokens(ctx, "browser-1"); ok {
		t.Fatal("expected record removed")
	}
}

func TestMemoryStoreRejectsEmptyBrowserID(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveTokens(context.Background(), "  ", identity.Record{}); !errors.Is(err, ErrBrowserIDRequired) {
		t.Fatalf("expected ErrBrowserIDRequired, got %v", err)
	}
	if _, _, err := store.LoadHint(context.Background(), ""); !errors.Is(err, ErrBrowserIDRequired) {
		t.Fatalf("expected ErrBrowserIDRequired, got %v", err)
	}
}

func TestBindHintsScopesToBrowser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	first := BindHints(store, "browser-1")
	second := BindHints(store, "browser-2")

	if err := first.SaveHint(ctx, session.Hint{UserID: "user-1", SetAt: time.Unix(10, 0)}); err != nil {
		t.Fatalf("save hint: %v", err)
	}
	if _, ok, err := second.LoadHint(ctx); err != nil || ok {
		t.Fatalf("expected other browser empty, got ok=%v err=%v", ok, err)
	}
	hint, ok, err := first.LoadHint(ctx)
	if err != nil || !ok || hint.UserID != "user-1" {
		t.Fatalf("unexpected hint %+v ok=%v err=%v", hint, ok, err)
	}
	if err := first.ClearHint(ctx); err != nil {
		t.Fatalf("clear hint: %v", err)
	}
	if _, ok, _ := first.LoadHint(ctx); ok {
		t.Fatal("expected hint cleared")
	}
}
