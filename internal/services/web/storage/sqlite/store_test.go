package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	_ "modernc.org/sqlite"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "web.db")
	openStore(t, path)

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() {
		_ = sqlDB.Close()
	}()

	assertTableExists(t, sqlDB, "web_sessions")
	assertTableExists(t, sqlDB, "web_session_hints")
}

func TestTokenPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "web.db"))

	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	record := identity.Record{
		UserID:    "user-1",
		Tokens:    identity.Tokens{IDToken: "id-1", RefreshToken: "refresh-1", ExpiresAt: expires},
		UpdatedAt: expires.Add(-time.Hour),
	}
	if err := store.SaveTokens(ctx, "browser-1", record); err != nil {
		t.Fatalf("save tokens: %v", err)
	}

	got, ok, err := store.LoadTokens(ctx, "browser-1")
	if err != nil {
		t.Fatalf("load tokens: %v", err)
	}
	if !ok {
		t.Fatal("expected record")
	}
	if got.UserID != "user-1" || got.Tokens.IDToken != "id-1" || got.Tokens.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected record %+v", got)
	}
	if !got.Tokens.ExpiresAt.Equal(expires) {
		t.Fatalf("expires_at = %v, want %v", got.Tokens.ExpiresAt, expires)
	}

	record.Tokens.IDToken = "id-2"
	if err := store.SaveTokens(ctx, "browser-1", record); err != nil {
		t.Fatalf("overwrite tokens: %v", err)
	}
	got, _, _ = store.LoadTokens(ctx, "browser-1")
	if got.Tokens.IDToken != "id-2" {
		t.Fatalf("expected overwritten id token, got %q", got.Tokens.IDToken)
	}

	if err := store.DeleteTokens(ctx, "browser-1"); err != nil {
		t.Fatalf("delete tokens: %v", err)
	}
	if _, ok, err := store.LoadTokens(ctx, "browser-1"); err != nil || ok {
		t.Fatalf("expected deleted record, ok=%v err=%v", ok, err)
	}
}

func TestSaveTokensRequiresUserID(t *testing.T) {
	store := openStore(t, filepath.Join(t.TempDir(), "web.db"))
	if err := store.SaveTokens(context.Background(), "browser-1", identity.Record{}); err == nil {
		t.Fatal("expected user id error")
	}
}

func TestHintPersistence(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "web.db"))

	if _, ok, err := store.LoadHint(ctx, "browser-1"); err != nil || ok {
		t.Fatalf("expected no hint, ok=%v err=%v", ok, err)
	}
	setAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := store.SaveHint(ctx, "browser-1", session.Hint{UserID: "user-1", SetAt: setAt}); err != nil {
		t.Fatalf("save hint: %v", err)
	}
	hint, ok, err := store.LoadHint(ctx, "browser-1")
	if err != nil || !ok {
		t.Fatalf("load hint ok=%v err=%v", ok, err)
	}
	if hint.UserID != "user-1" || !hint.SetAt.Equal(setAt) {
		t.Fatalf("unexpected hint %+v", hint)
	}
	if err := store.ClearHint(ctx, "browser-1"); err != nil {
		t.Fatalf("clear hint: %v", err)
	}
	if _, ok, _ := store.LoadHint(ctx, "browser-1"); ok {
		t.Fatal("expected hint cleared")
	}
}

func TestPurgeBefore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, filepath.Join(t.TempDir(), "web.db"))
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	old := identity.Record{UserID: "user-old", Tokens: identity.Tokens{IDToken: "a"}, UpdatedAt: cutoff.Add(-time.Hour)}
	fresh := identity.Record{UserID: "user-new", Tokens: identity.Tokens{IDToken: "b"}, UpdatedAt: cutoff.Add(time.Hour)}
	if err := store.SaveTokens(ctx, "browser-old", old); err != nil {
		t.Fatalf("save old: %v", err)
	}
	if err := store.SaveTokens(ctx, "browser-new", fresh); err != nil {
		t.Fatalf("save fresh: %v", err)
	}
	if err := store.SaveHint(ctx, "browser-old", session.Hint{UserID: "user-old", SetAt: cutoff.Add(-time.Hour)}); err != nil {
		t.Fatalf("save hint: %v", err)
	}

	removed, err := store.PurgeBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok, _ := store.LoadTokens(ctx, "browser-old"); ok {
		t.Fatal("expected old record purged")
	}
	if _, ok, _ := store.LoadTokens(ctx, "browser-new"); !ok {
		t.Fatal("expected fresh record kept")
	}
	if _, ok, _ := store.LoadHint(ctx, "browser-old"); ok {
		t.Fatal("expected old hint purged")
	}
}

func TestNilStoreReportsNotConfigured(t *testing.T) {
	var store *Store
	if _, _, err := store.LoadTokens(context.Background(), "browser-1"); err == nil {
		t.Fatal("expected not configured error")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func openStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	})
	return store
}

func assertTableExists(t *testing.T, sqlDB *sql.DB, table string) {
	t.Helper()
	var name string
	err := sqlDB.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	if err != nil {
		t.Fatalf("expected table %s: %v", table, err)
	}
}
