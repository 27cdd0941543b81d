// Package postgres stores user profiles in PostgreSQL with the
// questionnaire progress in a JSONB column.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kumia-devs/onboarding/internal/services/web/profile"
)

// Schema creates the profiles table when missing.
const Schema = `CREATE TABLE IF NOT EXISTS profiles (
    user_id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    email TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    provider TEXT NOT NULL DEFAULT '',
    onboarding_complete BOOLEAN NOT NULL DEFAULT FALSE,
    progress JSONB,
    wallet_stars INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`

const selectProfile = `SELECT user_id, name, email, status, provider, onboarding_complete, progress, wallet_stars, created_at, updated_at
FROM profiles WHERE user_id = $1`

const upsertProfile = `INSERT INTO profiles (user_id, name, email, status, onboarding_complete, progress, created_at, updated_at)
VALUES ($1, COALESCE($2, ''), COALESCE($3, ''), 'active', COALESCE($4, FALSE), $5::jsonb, $6, $6)
ON CONFLICT (user_id) DO UPDATE SET
  name = COALESCE($2, profiles.name),
  email = COALESCE($3, profiles.email),
  onboarding_complete = COALESCE($4, profiles.onboarding_complete),
  progress = COALESCE($5::jsonb, profiles.progress),
  updated_at = $6`

const insertProfile = `INSERT INTO profiles (user_id, name, email, status, provider, onboarding_complete, progress, wallet_stars, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)
ON CONFLICT (user_id) DO NOTHING`

// Store implements profile.Store over PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open connects with the lib/pq driver, pings and ensures the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := New(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// EnsureSchema creates the profiles table if needed.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure profiles schema: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// GetProfile implements profile.Store.
func (s *Store) GetProfile(ctx context.Context, userID string) (profile.Profile, error) {
	userID, err := profile.ValidateUserID(userID)
	if err != nil {
		return profile.Profile{}, err
	}
	var (
		p        profile.Profile
		progress []byte
	)
	err = s.db.QueryRowContext(ctx, selectProfile, userID).Scan(
		&p.UserID, &p.Name, &p.Email, &p.Status, &p.Provider,
		&p.OnboardingComplete, &progress, &p.WalletStars, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.Profile{}, profile.ErrNotFound
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if len(progress) > 0 {
		p.Progress = json.RawMessage(progress)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// UpsertProfile implements profile.Store.
func (s *Store) UpsertProfile(ctx context.Context, userID string, patch profile.Patch) error {
	userID, err := profile.ValidateUserID(userID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertProfile,
		userID,
		nullableString(patch.Name),
		nullableString(patch.Email),
		nullableBool(patch.OnboardingComplete),
		nullableJSON(patch.Progress),
		s.now().UTC(),
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
	result, err := s.db.ExecContext(ctx, insertProfile,
		userID,
		p.Name,
		p.Email,
		p.Status,
		p.Provider,
		p.OnboardingComplete,
		nullableJSON(p.Progress),
		p.WalletStars,
		p.CreatedAt.UTC(),
		p.UpdatedAt.UTC(),
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
	return *value
}

func nullableJSON(value json.RawMessage) any {
	if value == nil {
		return nil
	}
	return string(value)
}

var _ profile.Store = (*Store)(nil)
