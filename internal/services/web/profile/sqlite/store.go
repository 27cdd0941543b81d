// Package sqlite stores user profiles in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/kumia-devs/onboarding/internal/platform/storage/sqlitemigrate"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
	"github.com/kumia-devs/onboarding/internal/services/web/profile/sqlite/migrations"
)

const profileColumns = `user_id, name, email, status, provider, onboarding_complete, progress_json, wallet_stars, created_at, updated_at`

// Store implements profile.Store over SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sqlitemigrate.Open(ctx, filepath.Clean(path), migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// GetProfile implements profile.Store.
func (s *Store) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	userID, err := profile.ValidateUserID(userID)
	if err != nil {
		return profile.Profile{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)

	var (
		p          profile.Profile
		complete   int64
		progress   sql.NullString
		createdAt  int64
		updatedAt  int64
		walletStar int64
	)
	err = row.Scan(&p.UserID, &p.Name, &p.Email, &p.Status, &p.Provider, &complete, &progress, &walletStar, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	p.OnboardingComplete = complete != 0
	if progress.Valid && progress.String != "" {
		p.Progress = json.RawMessage(progress.String)
	}
	p.WalletStars = int(walletStar)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return p, nil
}

// UpsertProfile implements profile.Store. Absent rows are created active.
func (s *Store) UpsertProfile(ctx context.Context, userID string, patch profile.Patch) error {
	userID, err := profile.ValidateUserID(userID)
	if err != nil {
		return err
	}
	now := toMillis(s.now())
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, email, status, onboarding_complete, progress_json, created_at, updated_at)
		 VALUES (?1, COALESCE(?2, ''), COALESCE(?3, ''), 'active', COALESCE(?4, 0), ?5, ?6, ?6)
		 ON CONFLICT(user_id) DO UPDATE SET
		   name = COALESCE(?2, profiles.name),
		   email = COALESCE(?3, profiles.email),
		   onboarding_complete = COALESCE(?4, profiles.onboarding_complete),
		   progress_json = COALESCE(?5, profiles.progress_json),
		   updated_at = ?6`,
		userID,
		nullableString(patch.Name),
		nullableString(patch.Email),
		nullableBool(patch.OnboardingComplete),
		nullableJSON(patch.Progress),
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// CreateProfile implements profile.Store.
func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) error {
	userID, err := profile.ValidateUserID(p.UserID)
	if err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID,
		p.Name,
		p.Email,
		p.Status,
		p.Provider,
		boolToInt(p.OnboardingComplete),
		nullableJSON(p.Progress),
		p.WalletStars,
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create profile rows affected: %w", err)
	}
	if affected == 0 {
		return profile.ErrAlreadyExists
	}
	return nil
}

func nullableString(value *string) any {
	if value == nil {
		return nil
	}
	return *value
}

func nullableBool(value *bool) any {
	if value == nil {
		return nil
	}
	return boolToInt(*value)
}

func nullableJSON(value json.RawMessage) any {
	if value == nil {
		return nil
	}
	return string(value)
}

func boolToInt(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

var _ profile.Store = (*Store)(nil)
