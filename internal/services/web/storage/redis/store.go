// Package redis stores browser-session tokens and new-user hints in Redis so
// several web replicas can share sign-in state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	webstorage "github.com/kumia-devs/onboarding/internal/services/web/storage"
)

const (
	defaultPrefix = "kumia:web"
	defaultTTL    = 30 * 24 * time.Hour
)

// Options configures a Store.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key. Defaults to "kumia:web".
	Prefix string
	// TTL bounds how long an untouched browser record survives.
	TTL time.Duration
}

// Store implements storage.Store over Redis string keys holding JSON.
type Store struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

// Open connects to Redis and verifies the connection with PING.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return New(client, opts), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient, opts Options) *Store {
	prefix := strings.TrimSuffix(strings.TrimSpace(opts.Prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

type tokenRecord struct {
	UserID       string    `json:"user_id"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type hintRecord struct {
	UserID string    `json:"user_id"`
	SetAt  time.Time `json:"set_at"`
}

func (s *Store) sessionKey(browserID string) string {
	return s.prefix + ":session:" + browserID
}

func (s *Store) hintKey(browserID string) string {
	return s.prefix + ":hint:" + browserID
}

// LoadTokens returns the token record for browserID.
func (s *Store) LoadTokens(ctx context.Context, browserID string) (identity.Record, bool, error) {
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return identity.Record{}, false, err
	}
	var stored tokenRecord
	ok, err := s.getJSON(ctx, s.sessionKey(browserID), &stored)
	if err != nil || !ok {
		return identity.Record{}, false, err
	}
	return identity.Record{
		UserID: stored.UserID,
		Tokens: identity.Tokens{
			IDToken:      stored.IDToken,
			RefreshToken: stored.RefreshToken,
			ExpiresAt:    stored.ExpiresAt,
		},
		UpdatedAt: stored.UpdatedAt,
	}, true, nil
}

// SaveTokens writes the token record for browserID and resets its TTL.
func (s *Store) SaveTokens(ctx context.Context, browserID string, record identity.Record) error {
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	return s.setJSON(ctx, s.sessionKey(browserID), tokenRecord{
		UserID:       record.UserID,
		IDToken:      record.Tokens.IDToken,
		RefreshToken: record.Tokens.RefreshToken,
		ExpiresAt:    record.Tokens.ExpiresAt.UTC(),
		UpdatedAt:    record.UpdatedAt.UTC(),
	})
}

// DeleteTokens removes the token record for browserID.
func (s *Store) DeleteTokens(ctx context.Context, browserID string) error {
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.sessionKey(browserID)).Err(); err != nil {
		return fmt.Errorf("delete web session: %w", err)
	}
	return nil
}

// LoadHint returns the new-user hint for browserID.
func (s *Store) LoadHint(ctx context.Context, browserID string) (session.Hint, bool, error) {
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return session.Hint{}, false, err
	}
	var stored hintRecord
	ok, err := s.getJSON(ctx, s.hintKey(browserID), &stored)
	if err != nil || !ok {
		return session.Hint{}, false, err
	}
	return session.Hint{UserID: stored.UserID, SetAt: stored.SetAt}, true, nil
}

// SaveHint writes the new-user hint for browserID.
func (s *Store) SaveHint(ctx context.Context, browserID string, hint session.Hint) error {
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	return s.setJSON(ctx, s.hintKey(browserID), hintRecord{UserID: hint.UserID, SetAt: hint.SetAt.UTC()})
}

// ClearHint removes the new-user hint for browserID.
func (s *Store) ClearHint(ctx context.Context, browserID string) error {
	browserID, err := webstorage.NormalizeBrowserID(browserID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.hintKey(browserID)).Err(); err != nil {
		return fmt.Errorf("clear session hint: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) getJSON(ctx context.Context, key string, dest any) (bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

var _ webstorage.Store = (*Store)(nil)
