package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/kumia-devs/onboarding/internal/platform/storage/sqlitemigrate"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	webstorage "github.com/kumia-devs/onboarding/internal/services/web/storage"
	"github.com/kumia-devs/onboarding/internal/services/web/storage/sqlite/migrations"
)

var errNotConfigured = errors.New("storage is not configured")

// Store provides SQLite-backed persistence for browser-session state.
type Store struct {
	sqlDB *sql.DB
}

// Open opens and migrates a browser-session SQLite store.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sqlitemigrate.Open(ctx, filepath.Clean(path), migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open web session store: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// LoadTokens returns the token record for browserID.
func (s *Store) LoadTokens(ctx context.Context, browserID string) (identity.Record, bool, error) {
	if s == nil || s.sqlDB == nil {
		return identity.Record{}, false, errNotConfigured
	}
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return identity.Record{}, false, err
	}

	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, id_token, refresh_token, expires_at, updated_at
		 FROM web_sessions
		 WHERE browser_id = ?`,
		browserID,
	)
	var record identity.Record
	var expiresAt, updatedAt int64
	if err := row.Scan(&record.UserID, &record.Tokens.IDToken, &record.Tokens.RefreshToken, &expiresAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return identity.Record{}, false, nil
		}
		return identity.Record{}, false, fmt.Errorf("load web session: %w", err)
	}
	record.Tokens.ExpiresAt = unixMillisToTime(expiresAt)
	record.UpdatedAt = unixMillisToTime(updatedAt)
	return record, true, nil
}

// SaveTokens upserts the token record for browserID.
func (s *Store) SaveTokens(ctx context.Context, browserID string, record identity.Record) error {
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(record.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO web_sessions (browser_id, user_id, id_token, refresh_token, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(browser_id) DO UPDATE SET
		   user_id = excluded.user_id,
		   id_token = excluded.id_token,
		   refresh_token = excluded.refresh_token,
		   expires_at = excluded.expires_at,
		   updated_at = excluded.updated_at`,
		browserID,
		record.UserID,
		record.Tokens.IDToken,
		record.Tokens.RefreshToken,
		timeToUnixMillis(record.Tokens.ExpiresAt),
		updatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save web session: %w", err)
	}
	return nil
}

// DeleteTokens removes the token record for browserID.
func (s *Store) DeleteTokens(ctx context.Context, browserID string) error {
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM web_sessions WHERE browser_id = ?`, browserID); err != nil {
		return fmt.Errorf("delete web session: %w", err)
	}
	return nil
}

// LoadHint returns the new-user hint stored for browserID.
func (s *Store) LoadHint(ctx context.Context, browserID string) (session.Hint, bool, error) {
	if s == nil || s.sqlDB == nil {
		return session.Hint{}, false, errNotConfigured
	}
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return session.Hint{}, false, err
	}

	var hint session.Hint
	var setAt int64
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT user_id, set_at FROM web_session_hints WHERE browser_id = ?`,
		browserID,
	).Scan(&hint.UserID, &setAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Hint{}, false, nil
	}
	if err != nil {
		return session.Hint{}, false, fmt.Errorf("load session hint: %w", err)
	}
	hint.SetAt = unixMillisToTime(setAt)
	return hint, true, nil
}

// SaveHint upserts the new-user hint for browserID.
func (s *Store) SaveHint(ctx context.Context, browserID string, hint session.Hint) error {
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO web_session_hints (browser_id, user_id, set_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(browser_id) DO UPDATE SET
		   user_id = excluded.user_id,
		   set_at = excluded.set_at`,
		browserID,
		hint.UserID,
		timeToUnixMillis(hint.SetAt),
	)
	if err != nil {
		return fmt.Errorf("save session hint: %w", err)
	}
	return nil
}

// ClearHint removes the new-user hint for browserID.
func (s *Store) ClearHint(ctx context.Context, browserID string) error {
	if s == nil || s.sqlDB == nil {
		return errNotConfigured
	}
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM web_session_hints WHERE browser_id = ?`, browserID); err != nil {
		return fmt.Errorf("clear session hint: %w", err)
	}
	return nil
}

// PurgeBefore deletes token records and hints not touched since cutoff and
// returns the number of token records removed.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.sqlDB == nil {
		return 0, errNotConfigured
	}
	millis := cutoff.UTC().UnixMilli()
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM web_sessions WHERE updated_at < ?`, millis)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("purge web sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM web_session_hints WHERE set_at < ?`, millis); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("purge session hints: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	removed, _ := result.RowsAffected()
	return removed, nil
}

func timeToUnixMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func unixMillisToTime(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

var _ webstorage.Store = (*Store)(nil)
